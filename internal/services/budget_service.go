package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
	"finledger/internal/pagination"
)

var oneHundred = decimal.NewFromInt(100)

// budgetService handles the budget ledger: ownership of budgets, the
// spent cache, and transaction linking.
type budgetService struct {
	db              *gorm.DB
	categoryService CategoryServicer
	notifier        NotificationServicer
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(db *gorm.DB, categoryService CategoryServicer, notifier NotificationServicer) BudgetServicer {
	return &budgetService{db: db, categoryService: categoryService, notifier: notifier}
}

// CreateBudget creates a budget for a category and back-links every existing
// transaction that matches the category inside the budget window. The spent
// cache starts at the sum of those transactions.
func (s *budgetService) CreateBudget(
	userID uint,
	category string,
	amount decimal.Decimal,
	period models.BudgetPeriod,
	startDate, endDate time.Time,
) (*models.Budget, error) {
	if category == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category is required")
	}
	if !amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	switch period {
	case models.BudgetPeriodWeekly, models.BudgetPeriodMonthly, models.BudgetPeriodYearly:
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "period must be weekly, monthly or yearly")
	}
	if !endDate.After(startDate) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end date must be after start date")
	}

	if err := s.categoryService.ValidateMembership(userID, category); err != nil {
		return nil, err
	}

	// Existing transactions matching the category inside the window seed
	// the tracked set and the spent cache.
	var matching []models.Transaction
	if err := s.db.
		Where("user_id = ? AND category = ? AND date >= ? AND date <= ?", userID, category, startDate, endDate).
		Find(&matching).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	spent := decimal.Zero
	for _, txn := range matching {
		spent = spent.Add(txn.Amount.Abs())
	}

	budget := &models.Budget{
		UserID:      userID,
		Category:    category,
		Amount:      amount,
		Spent:       spent,
		Period:      period,
		StartDate:   startDate,
		EndDate:     endDate,
		LastUpdated: time.Now(),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(budget).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		for _, txn := range matching {
			link := &models.BudgetTransaction{BudgetID: budget.ID, TransactionID: txn.ID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(link).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrDatabase, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if spent.IsPositive() {
		s.notifier.NotifyBudgetThreshold(userID, category, spent, amount)
	}

	return budget, nil
}

// GetUserBudgets returns a paginated list of budgets for the user with optional filters.
func (s *budgetService) GetUserBudgets(
	userID uint,
	page pagination.PageRequest,
	category *string,
	period *models.BudgetPeriod,
) (*pagination.PageResponse[models.Budget], error) {
	page.Defaults()

	base := s.db.Model(&models.Budget{}).Where("user_id = ?", userID)
	if category != nil {
		base = base.Where("category = ?", *category)
	}
	if period != nil {
		base = base.Where("period = ?", *period)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	var budgets []models.Budget
	if err := base.Preload("TrackedTransactions").Scopes(pagination.Paginate(page)).Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	result := pagination.NewPageResponse(budgets, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetBudgetByID returns a budget by ID if it belongs to the user.
func (s *budgetService) GetBudgetByID(userID, budgetID uint) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.Preload("TrackedTransactions").Where("id = ? AND user_id = ?", budgetID, userID).First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}
	return &budget, nil
}

// UpdateBudget merges the provided fields into an existing budget. When the
// resulting spent cache meets or exceeds the cap, the threshold notifier runs.
func (s *budgetService) UpdateBudget(userID, budgetID uint, update BudgetUpdate) (*models.Budget, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if update.Amount != nil {
		if !update.Amount.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		updates["amount"] = *update.Amount
	}
	if update.Period != nil {
		updates["period"] = *update.Period
	}
	if update.StartDate != nil {
		updates["start_date"] = *update.StartDate
	}
	if update.EndDate != nil {
		updates["end_date"] = *update.EndDate
	}

	if len(updates) > 0 {
		updates["last_updated"] = time.Now()
		if err := s.db.Model(budget).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
		}
	}

	if budget.Spent.GreaterThanOrEqual(budget.Amount) {
		s.notifier.NotifyBudgetThreshold(userID, budget.Category, budget.Spent, budget.Amount)
	}

	return budget, nil
}

// DeleteBudget removes a budget and its link rows. Tracked transactions are
// orphaned, not mutated.
func (s *budgetService) DeleteBudget(userID, budgetID uint) error {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("budget_id = ?", budget.ID).Delete(&models.BudgetTransaction{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		if err := tx.Delete(budget).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		return nil
	})
}

// LinkTransaction adds a transaction to the budget's tracked set. Idempotent:
// linking an already-linked transaction is a no-op. The spent cache is not
// recomputed here; callers that need it recompute and persist explicitly.
func (s *budgetService) LinkTransaction(userID, budgetID, transactionID uint) error {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return err
	}
	if _, err := s.getTransaction(userID, transactionID); err != nil {
		return err
	}

	link := &models.BudgetTransaction{BudgetID: budget.ID, TransactionID: transactionID}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(link).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	return s.stampLastUpdated(budget.ID)
}

// UnlinkTransaction removes a transaction from the budget's tracked set.
// Idempotent: unlinking an untracked transaction is a no-op.
func (s *budgetService) UnlinkTransaction(userID, budgetID, transactionID uint) error {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return err
	}

	if err := s.db.
		Where("budget_id = ? AND transaction_id = ?", budget.ID, transactionID).
		Delete(&models.BudgetTransaction{}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	return s.stampLastUpdated(budget.ID)
}

// GetSummary re-derives spend for every budget from the current tracked set
// filtered to the budget's window. The stored spent field is a cache that
// can lag; the recomputation here is the authoritative figure.
func (s *budgetService) GetSummary(userID uint) (*BudgetSummary, error) {
	var budgets []models.Budget
	if err := s.db.Where("user_id = ?", userID).Order("id ASC").Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	summary := &BudgetSummary{
		Budgets:        make([]CategorySummary, 0, len(budgets)),
		TotalBudgeted:  decimal.Zero,
		TotalSpent:     decimal.Zero,
		TotalRemaining: decimal.Zero,
	}

	for i := range budgets {
		budget := &budgets[i]
		spent, err := s.deriveSpent(budget)
		if err != nil {
			return nil, err
		}

		remaining := budget.Amount.Sub(spent)
		summary.Budgets = append(summary.Budgets, CategorySummary{
			BudgetID:       budget.ID,
			Category:       budget.Category,
			BudgetAmount:   budget.Amount,
			Spent:          spent,
			Remaining:      remaining,
			PercentageUsed: percentageUsed(spent, budget.Amount),
		})

		summary.TotalBudgeted = summary.TotalBudgeted.Add(budget.Amount)
		summary.TotalSpent = summary.TotalSpent.Add(spent)
		summary.TotalRemaining = summary.TotalRemaining.Add(remaining)
	}

	return summary, nil
}

// ApplyTransaction links a freshly categorized transaction into the first
// budget matching its category, bumps the spent cache, and runs the
// threshold check. A transaction without a category is ignored.
func (s *budgetService) ApplyTransaction(txn *models.Transaction) error {
	if txn.Category == nil || *txn.Category == "" {
		return nil
	}

	var budget models.Budget
	err := s.db.
		Where("user_id = ? AND category = ?", txn.UserID, *txn.Category).
		Order("id ASC").
		First(&budget).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No budget for this category; nothing to track.
			return nil
		}
		return apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	newSpent := budget.Spent.Add(txn.Amount.Abs())
	err = s.db.Transaction(func(tx *gorm.DB) error {
		link := &models.BudgetTransaction{BudgetID: budget.ID, TransactionID: txn.ID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(link).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		if err := tx.Model(&budget).Updates(map[string]interface{}{
			"spent":        newSpent,
			"last_updated": time.Now(),
		}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.NotifyBudgetThreshold(txn.UserID, budget.Category, newSpent, budget.Amount)
	return nil
}

// RemoveTransaction unlinks a deleted transaction from every budget that
// tracks it. The spent cache is only decremented when the budget's category
// matches the transaction's; the link row is removed in all cases.
func (s *budgetService) RemoveTransaction(txn *models.Transaction) error {
	var links []models.BudgetTransaction
	if err := s.db.Where("transaction_id = ?", txn.ID).Find(&links).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	for _, link := range links {
		var budget models.Budget
		if err := s.db.First(&budget, link.BudgetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}

		err := s.db.Transaction(func(tx *gorm.DB) error {
			if txn.Category != nil && budget.Category == *txn.Category {
				if err := tx.Model(&budget).Updates(map[string]interface{}{
					"spent":        budget.Spent.Sub(txn.Amount.Abs()),
					"last_updated": time.Now(),
				}).Error; err != nil {
					return apperrors.Wrap(apperrors.ErrDatabase, err)
				}
			}
			if err := tx.Delete(&models.BudgetTransaction{}, link.ID).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrDatabase, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// deriveSpent sums |amount| of the budget's tracked transactions that fall
// inside the budget window and still match its category.
func (s *budgetService) deriveSpent(budget *models.Budget) (decimal.Decimal, error) {
	var txns []models.Transaction
	err := s.db.
		Joins("JOIN budget_transactions bt ON bt.transaction_id = transactions.id").
		Where("bt.budget_id = ?", budget.ID).
		Find(&txns).Error
	if err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	spent := decimal.Zero
	for _, txn := range txns {
		if txn.Date.Before(budget.StartDate) || txn.Date.After(budget.EndDate) {
			continue
		}
		if txn.Category == nil || *txn.Category != budget.Category {
			continue
		}
		spent = spent.Add(txn.Amount.Abs())
	}
	return spent, nil
}

func (s *budgetService) getTransaction(userID, transactionID uint) (*models.Transaction, error) {
	var txn models.Transaction
	if err := s.db.Where("id = ? AND user_id = ?", transactionID, userID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}
	return &txn, nil
}

func (s *budgetService) stampLastUpdated(budgetID uint) error {
	if err := s.db.Model(&models.Budget{}).Where("id = ?", budgetID).
		Update("last_updated", time.Now()).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, err)
	}
	return nil
}

// percentageUsed renders spent/amount as a percentage with two decimal
// places, e.g. "25.00". A zero cap reads as fully unused.
func percentageUsed(spent, amount decimal.Decimal) string {
	if amount.IsZero() {
		return "0.00"
	}
	return spent.Div(amount).Mul(oneHundred).StringFixed(2)
}
