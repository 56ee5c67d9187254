package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
)

// loanService tracks a user's loan against its fixed instalment schedule.
type loanService struct {
	db       *gorm.DB
	notifier NotificationServicer
}

// NewLoanService creates a new LoanServicer.
func NewLoanService(db *gorm.DB, notifier NotificationServicer) LoanServicer {
	return &loanService{db: db, notifier: notifier}
}

// CreateLoan creates the user's loan with its three-instalment schedule.
// Exactly one open loan per user is permitted.
func (s *loanService) CreateLoan(
	userID uint,
	instalmentDates []time.Time,
	instalmentAmounts []decimal.Decimal,
	livingOption models.LivingOption,
	totalAmount decimal.Decimal,
) (*models.Loan, error) {
	if len(instalmentDates) != models.InstalmentCount || len(instalmentAmounts) != models.InstalmentCount {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "exactly three instalment dates and amounts are required")
	}
	if livingOption != models.LivingOptionHome && livingOption != models.LivingOptionAway {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "living option must be home or away")
	}
	if !totalAmount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "total amount must be greater than zero")
	}

	sum := decimal.Zero
	for _, amount := range instalmentAmounts {
		sum = sum.Add(amount)
	}
	if !sum.Equal(totalAmount) {
		return nil, apperrors.ErrInstalmentMismatch
	}

	var count int64
	if err := s.db.Model(&models.Loan{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}
	if count > 0 {
		return nil, apperrors.ErrLoanExists
	}

	loan := &models.Loan{
		UserID:          userID,
		LivingOption:    livingOption,
		TotalAmount:     totalAmount,
		RemainingAmount: totalAmount,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(loan).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		for i := 0; i < models.InstalmentCount; i++ {
			instalment := &models.LoanInstalment{
				LoanID:   loan.ID,
				Sequence: i + 1,
				DueDate:  instalmentDates[i],
				Amount:   instalmentAmounts[i],
			}
			if err := tx.Create(instalment).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrDatabase, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.getLoan(userID, loan.ID)
}

// GetUserLoan returns the user's open loan.
func (s *loanService) GetUserLoan(userID uint) (*models.Loan, error) {
	var loan models.Loan
	err := s.db.
		Preload("Instalments", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		Preload("TrackedTransactions").
		Where("user_id = ?", userID).
		First(&loan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrLoanNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}
	return &loan, nil
}

// DeleteLoan removes a loan, its schedule, and its link rows. Loans are
// never deleted automatically; this is the explicit path only.
func (s *loanService) DeleteLoan(userID, loanID uint) error {
	loan, err := s.getLoan(userID, loanID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("loan_id = ?", loan.ID).Delete(&models.LoanTransaction{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		if err := tx.Where("loan_id = ?", loan.ID).Delete(&models.LoanInstalment{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		if err := tx.Delete(loan).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		return nil
	})
}

// LinkTransaction tracks a transaction against the loan and decrements the
// remaining amount. Fails when the transaction is already tracked or its
// amount exceeds what remains; the remaining amount is untouched on failure.
func (s *loanService) LinkTransaction(userID, loanID, transactionID uint) (*models.Loan, error) {
	loan, err := s.getLoan(userID, loanID)
	if err != nil {
		return nil, err
	}

	var txn models.Transaction
	if err := s.db.Where("id = ? AND user_id = ?", transactionID, userID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	var linked int64
	if err := s.db.Model(&models.LoanTransaction{}).
		Where("loan_id = ? AND transaction_id = ?", loan.ID, transactionID).
		Count(&linked).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}
	if linked > 0 {
		return nil, apperrors.ErrTransactionLinked
	}

	if txn.Amount.GreaterThan(loan.RemainingAmount) {
		return nil, apperrors.ErrInsufficientRemainder
	}

	newRemaining := loan.RemainingAmount.Sub(txn.Amount)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		link := &models.LoanTransaction{LoanID: loan.ID, TransactionID: transactionID}
		if err := tx.Create(link).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		if err := tx.Model(loan).Update("remaining_amount", newRemaining).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	loan.RemainingAmount = newRemaining
	s.notifier.NotifyLoanSpending(loan, time.Now())
	return s.getLoan(userID, loanID)
}

// UnlinkTransaction is the inverse of LinkTransaction: it restores the
// transaction's amount to the remaining balance and removes the link.
func (s *loanService) UnlinkTransaction(userID, loanID, transactionID uint) (*models.Loan, error) {
	loan, err := s.getLoan(userID, loanID)
	if err != nil {
		return nil, err
	}

	var link models.LoanTransaction
	if err := s.db.Where("loan_id = ? AND transaction_id = ?", loan.ID, transactionID).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "transaction is not linked to this loan")
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	var txn models.Transaction
	if err := s.db.First(&txn, transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.LoanTransaction{}, link.ID).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		if err := tx.Model(loan).Update("remaining_amount", loan.RemainingAmount.Add(txn.Amount)).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.getLoan(userID, loanID)
}

// LinkAllTransactions greedily links the user's transactions, skipping any
// whose amount would push the cumulative linked total past the remaining
// amount. First-fit by design: order-dependent and intentionally simple.
// The strategy parameter only decides iteration order.
func (s *loanService) LinkAllTransactions(userID, loanID uint, strategy LinkStrategy) (*LinkAllResult, error) {
	loan, err := s.getLoan(userID, loanID)
	if err != nil {
		return nil, err
	}

	query := s.db.Where("user_id = ?", userID)
	switch strategy {
	case LinkStrategyOldestFirst:
		query = query.Order("date ASC, id ASC")
	case LinkStrategyFirstFit, "":
		query = query.Order("id ASC")
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown link strategy")
	}

	var txns []models.Transaction
	if err := query.Find(&txns).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	tracked := make(map[uint]bool)
	for _, link := range loan.TrackedTransactions {
		tracked[link.TransactionID] = true
	}

	result := &LinkAllResult{TotalLinked: decimal.Zero}
	remaining := loan.RemainingAmount

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, txn := range txns {
			if tracked[txn.ID] {
				continue
			}
			if txn.Amount.GreaterThan(remaining) {
				continue
			}
			link := &models.LoanTransaction{LoanID: loan.ID, TransactionID: txn.ID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(link).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrDatabase, err)
			}
			remaining = remaining.Sub(txn.Amount)
			result.LinkedCount++
			result.TotalLinked = result.TotalLinked.Add(txn.Amount)
		}
		if err := tx.Model(loan).Update("remaining_amount", remaining).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	loan.RemainingAmount = remaining
	s.notifier.NotifyLoanSpending(loan, time.Now())
	return result, nil
}

// UnlinkAllTransactions clears the tracked set and restores the remaining
// amount to the loan total.
func (s *loanService) UnlinkAllTransactions(userID, loanID uint) (*models.Loan, error) {
	loan, err := s.getLoan(userID, loanID)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("loan_id = ?", loan.ID).Delete(&models.LoanTransaction{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		if err := tx.Model(loan).Update("remaining_amount", loan.TotalAmount).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.getLoan(userID, loanID)
}

// AvailableAmount sums the instalments whose due date has passed as of the
// given time. Loan funds become available at each instalment date,
// independent of how much has been spent.
func (s *loanService) AvailableAmount(loan *models.Loan, asOf time.Time) decimal.Decimal {
	available := decimal.Zero
	for _, instalment := range loan.Instalments {
		if !instalment.DueDate.After(asOf) {
			available = available.Add(instalment.Amount)
		}
	}
	return available
}

func (s *loanService) getLoan(userID, loanID uint) (*models.Loan, error) {
	var loan models.Loan
	err := s.db.
		Preload("Instalments", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		Preload("TrackedTransactions").
		Where("id = ? AND user_id = ?", loanID, userID).
		First(&loan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrLoanNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}
	return &loan, nil
}
