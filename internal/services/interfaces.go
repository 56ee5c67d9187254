package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/config"
	"finledger/internal/models"
	"finledger/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id uint) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID uint, tokenHash string) error
	GetRefreshTokenHash(userID uint) (string, error)
	SetNotificationsEnabled(userID uint, enabled bool) (*models.User, error)
}

// CategoryServicer defines the contract for category-related business logic.
// ValidateMembership is the membership check budgets run before accepting
// a category name.
type CategoryServicer interface {
	CreateCategory(userID uint, name, description, icon, color string) (*models.Category, error)
	GetUserCategories(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(userID, categoryID uint) (*models.Category, error)
	UpdateCategory(userID, categoryID uint, name, description, icon, color string) (*models.Category, error)
	DeleteCategory(userID, categoryID uint) error
	ValidateMembership(userID uint, name string) error
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate  *time.Time
	ToDate    *time.Time
	Category  *string
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
}

// TransactionServicer defines the contract for transaction-related business
// logic. Transactions are immutable after creation except for
// RecategorizeTransaction, which also rewires budget links.
type TransactionServicer interface {
	CreateTransaction(userID uint, amount decimal.Decimal, category *string, date time.Time, description string) (*models.Transaction, error)
	GetUserTransactions(userID uint, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(userID, transactionID uint) (*models.Transaction, error)
	DeleteTransaction(userID, transactionID uint) error
	RecategorizeTransaction(userID, transactionID uint, category *string) (*models.Transaction, error)
}

// BudgetUpdate holds the optional fields of a budget update request.
type BudgetUpdate struct {
	Amount    *decimal.Decimal
	Period    *models.BudgetPeriod
	StartDate *time.Time
	EndDate   *time.Time
}

// CategorySummary contains the derived spend figures for one budget.
// PercentageUsed is rendered with two decimal places (e.g. "25.00").
type CategorySummary struct {
	BudgetID       uint            `json:"budget_id"`
	Category       string          `json:"category"`
	BudgetAmount   decimal.Decimal `json:"budget_amount"`
	Spent          decimal.Decimal `json:"spent"`
	Remaining      decimal.Decimal `json:"remaining"`
	PercentageUsed string          `json:"percentage_used"`
}

// BudgetSummary aggregates per-budget rows with portfolio totals. Spend
// figures are recomputed from the tracked transactions inside each
// budget's window; the stored spent cache is not consulted.
type BudgetSummary struct {
	Budgets        []CategorySummary `json:"budgets"`
	TotalBudgeted  decimal.Decimal   `json:"total_budgeted"`
	TotalSpent     decimal.Decimal   `json:"total_spent"`
	TotalRemaining decimal.Decimal   `json:"total_remaining"`
}

// BudgetServicer defines the contract for the budget ledger.
type BudgetServicer interface {
	CreateBudget(userID uint, category string, amount decimal.Decimal, period models.BudgetPeriod, startDate, endDate time.Time) (*models.Budget, error)
	GetUserBudgets(userID uint, page pagination.PageRequest, category *string, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(userID, budgetID uint) (*models.Budget, error)
	UpdateBudget(userID, budgetID uint, update BudgetUpdate) (*models.Budget, error)
	DeleteBudget(userID, budgetID uint) error
	LinkTransaction(userID, budgetID, transactionID uint) error
	UnlinkTransaction(userID, budgetID, transactionID uint) error
	GetSummary(userID uint) (*BudgetSummary, error)
	ApplyTransaction(txn *models.Transaction) error
	RemoveTransaction(txn *models.Transaction) error
}

// LinkStrategy selects the iteration order LinkAllTransactions uses when
// greedily linking transactions to a loan.
type LinkStrategy string

const (
	// LinkStrategyFirstFit links in arbitrary store order.
	LinkStrategyFirstFit LinkStrategy = "first_fit"
	// LinkStrategyOldestFirst links in ascending transaction-date order.
	LinkStrategyOldestFirst LinkStrategy = "oldest_first"
)

// LinkAllResult reports what a bulk link pass achieved.
type LinkAllResult struct {
	LinkedCount int             `json:"linked_count"`
	TotalLinked decimal.Decimal `json:"total_linked"`
}

// LoanServicer defines the contract for the loan installment tracker.
type LoanServicer interface {
	CreateLoan(userID uint, instalmentDates []time.Time, instalmentAmounts []decimal.Decimal, livingOption models.LivingOption, totalAmount decimal.Decimal) (*models.Loan, error)
	GetUserLoan(userID uint) (*models.Loan, error)
	DeleteLoan(userID, loanID uint) error
	LinkTransaction(userID, loanID, transactionID uint) (*models.Loan, error)
	UnlinkTransaction(userID, loanID, transactionID uint) (*models.Loan, error)
	LinkAllTransactions(userID, loanID uint, strategy LinkStrategy) (*LinkAllResult, error)
	UnlinkAllTransactions(userID, loanID uint) (*models.Loan, error)
	AvailableAmount(loan *models.Loan, asOf time.Time) decimal.Decimal
}

// RolloverResult describes one completed budget rollover.
type RolloverResult struct {
	History *models.BudgetHistoryRecord `json:"history"`
	Budget  *models.Budget              `json:"budget"`
	// Resumed is true when a retry found the history record already
	// written and only re-applied the budget reset.
	Resumed bool `json:"resumed"`
}

// RolloverServicer defines the contract for the rollover engine.
type RolloverServicer interface {
	RolloverBudget(ctx context.Context, userID, budgetID uint, policy config.RolloverPolicy) (*RolloverResult, error)
	SweepDueBudgets(ctx context.Context, now time.Time) (int, error)
}

// NotificationServicer is the threshold notifier. Check methods never
// return errors: emission failures are logged and swallowed so they
// cannot fail the originating ledger operation.
type NotificationServicer interface {
	ShouldNotify(user *models.User, spent, limit decimal.Decimal) bool
	NotifyBudgetThreshold(userID uint, category string, spent, limit decimal.Decimal)
	NotifyLoanSpending(loan *models.Loan, asOf time.Time)
	NotifyRollover(record *models.BudgetHistoryRecord)
	SweepInstalmentReminders(ctx context.Context, now time.Time) (int, error)
	GetHistory(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.NotificationHistory], error)
}

// Recommendation is the budget-sizing advice derived from history.
type Recommendation string

const (
	RecommendationIncrease Recommendation = "INCREASE_BUDGET"
	RecommendationDecrease Recommendation = "DECREASE_BUDGET"
	RecommendationNone     Recommendation = "NONE"
)

// BudgetTrends summarizes a category's closed periods.
type BudgetTrends struct {
	Category           string          `json:"category"`
	Records            int             `json:"records"`
	AverageUtilization decimal.Decimal `json:"average_utilization"`
	Recommendation     Recommendation  `json:"recommendation"`
	TotalSpent         decimal.Decimal `json:"total_spent"`
	AverageSpent       decimal.Decimal `json:"average_spent"`
	TotalRollovers     decimal.Decimal `json:"total_rollovers"`
}

// AnalyticsServicer defines the read-only aggregation contract.
type AnalyticsServicer interface {
	GetBudgetTrends(userID uint, category string, from, to time.Time) (*BudgetTrends, error)
}

// ReconciliationReport counts what a drift-correction pass touched.
type ReconciliationReport struct {
	BudgetsChecked   int `json:"budgets_checked"`
	BudgetsCorrected int `json:"budgets_corrected"`
	LoansChecked     int `json:"loans_checked"`
	LoansCorrected   int `json:"loans_corrected"`
}

// ReconciliationServicer recomputes cached aggregates from the tracked
// transaction sets and corrects drift left by partial multi-document writes.
type ReconciliationServicer interface {
	Run(ctx context.Context, now time.Time) (*ReconciliationReport, error)
}
