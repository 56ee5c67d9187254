package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "finledger/internal/errors"
	"finledger/internal/logger"
	"finledger/internal/models"
)

// reconciliationService corrects aggregate drift. Linking a transaction is
// two separate writes, so a crash between them can leave an amount
// double-counted or uncounted. This sweep recomputes every cached
// aggregate from the link tables and fixes what it finds.
type reconciliationService struct {
	db *gorm.DB
}

// NewReconciliationService creates a new ReconciliationServicer.
func NewReconciliationService(db *gorm.DB) ReconciliationServicer {
	return &reconciliationService{db: db}
}

// Run recomputes budget spent caches and loan remaining amounts from the
// tracked transaction sets, persisting corrections where the stored value
// drifted.
func (s *reconciliationService) Run(ctx context.Context, now time.Time) (*ReconciliationReport, error) {
	report := &ReconciliationReport{}

	var budgets []models.Budget
	if err := s.db.Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	for i := range budgets {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		budget := &budgets[i]
		report.BudgetsChecked++

		derived, err := s.deriveBudgetSpent(budget)
		if err != nil {
			return report, err
		}
		if derived.Equal(budget.Spent) {
			continue
		}

		logger.Get().Warnw("correcting budget spent drift",
			"budget_id", budget.ID,
			"stored", budget.Spent,
			"derived", derived,
		)
		if err := s.db.Model(budget).Updates(map[string]interface{}{
			"spent":        derived,
			"last_updated": now,
		}).Error; err != nil {
			return report, apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		report.BudgetsCorrected++
	}

	var loans []models.Loan
	if err := s.db.Find(&loans).Error; err != nil {
		return report, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	for i := range loans {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		loan := &loans[i]
		report.LoansChecked++

		linked, err := s.sumLoanLinked(loan.ID)
		if err != nil {
			return report, err
		}
		derived := loan.TotalAmount.Sub(linked)
		if derived.Equal(loan.RemainingAmount) {
			continue
		}

		logger.Get().Warnw("correcting loan remaining drift",
			"loan_id", loan.ID,
			"stored", loan.RemainingAmount,
			"derived", derived,
		)
		if err := s.db.Model(loan).Update("remaining_amount", derived).Error; err != nil {
			return report, apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		report.LoansCorrected++
	}

	return report, nil
}

// deriveBudgetSpent sums |amount| over tracked transactions inside the
// budget window whose category still matches.
func (s *reconciliationService) deriveBudgetSpent(budget *models.Budget) (decimal.Decimal, error) {
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

// sumLoanLinked sums the raw amounts of every transaction tracked by the loan.
func (s *reconciliationService) sumLoanLinked(loanID uint) (decimal.Decimal, error) {
	var txns []models.Transaction
	err := s.db.
		Joins("JOIN loan_transactions lt ON lt.transaction_id = transactions.id").
		Where("lt.loan_id = ?", loanID).
		Find(&txns).Error
	if err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	sum := decimal.Zero
	for _, txn := range txns {
		sum = sum.Add(txn.Amount)
	}
	return sum, nil
}
