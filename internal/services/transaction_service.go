package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
	"finledger/internal/pagination"
)

// transactionService handles transaction lifecycle. Creating and deleting
// transactions drive the budget ledger hooks; recategorization is the only
// mutation allowed after creation.
type transactionService struct {
	db              *gorm.DB
	budgetService   BudgetServicer
	categoryService CategoryServicer
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB, budgetService BudgetServicer, categoryService CategoryServicer) TransactionServicer {
	return &transactionService{
		db:              db,
		budgetService:   budgetService,
		categoryService: categoryService,
	}
}

// CreateTransaction records a transaction. When it carries a category, the
// budget ledger links it into the first matching budget and runs the
// threshold check.
func (s *transactionService) CreateTransaction(
	userID uint,
	amount decimal.Decimal,
	category *string,
	date time.Time,
	description string,
) (*models.Transaction, error) {
	if amount.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be non-zero")
	}
	if date.IsZero() {
		date = time.Now()
	}
	if category != nil && *category != "" {
		if err := s.categoryService.ValidateMembership(userID, *category); err != nil {
			return nil, err
		}
	}

	transaction := &models.Transaction{
		UserID:      userID,
		Amount:      amount,
		Category:    category,
		Date:        date,
		Description: description,
	}

	if err := s.db.Create(transaction).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	if err := s.budgetService.ApplyTransaction(transaction); err != nil {
		return nil, err
	}

	return transaction, nil
}

// GetUserTransactions retrieves a paginated, filtered list of the user's transactions.
func (s *transactionService) GetUserTransactions(userID uint, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)
	base = applyTransactionFilters(base, filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	var transactions []models.Transaction
	if err := base.Scopes(pagination.Paginate(page)).
		Order("date DESC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", *f.ToDate)
	}
	if f.Category != nil {
		q = q.Where("category = ?", *f.Category)
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", *f.MaxAmount)
	}
	return q
}

// GetTransactionByID retrieves a transaction by ID for a specific user.
func (s *transactionService) GetTransactionByID(userID, transactionID uint) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Where("id = ? AND user_id = ?", transactionID, userID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}
	return &transaction, nil
}

// DeleteTransaction removes a transaction after unlinking it from every
// budget that tracks it.
func (s *transactionService) DeleteTransaction(userID, transactionID uint) error {
	transaction, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return err
	}

	if err := s.budgetService.RemoveTransaction(transaction); err != nil {
		return err
	}

	if err := s.db.Delete(transaction).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, err)
	}
	return nil
}

// RecategorizeTransaction moves a transaction to a new category (or clears
// it). Budget links follow: the transaction is removed from budgets of the
// old category and applied to the first budget of the new one.
func (s *transactionService) RecategorizeTransaction(userID, transactionID uint, category *string) (*models.Transaction, error) {
	transaction, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return nil, err
	}

	if category != nil && *category != "" {
		if err := s.categoryService.ValidateMembership(userID, *category); err != nil {
			return nil, err
		}
	}

	// Unwind links under the old category before the category changes.
	if err := s.budgetService.RemoveTransaction(transaction); err != nil {
		return nil, err
	}

	if err := s.db.Model(transaction).Update("category", category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}
	transaction.Category = category

	if err := s.budgetService.ApplyTransaction(transaction); err != nil {
		return nil, err
	}

	return transaction, nil
}
