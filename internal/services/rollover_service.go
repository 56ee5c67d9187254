package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"finledger/internal/config"
	apperrors "finledger/internal/errors"
	"finledger/internal/logger"
	"finledger/internal/models"
)

// rolloverService closes budget periods into history and opens the next
// period. A closed period is immutable; the budget itself is reset in place.
type rolloverService struct {
	db       *gorm.DB
	notifier NotificationServicer
}

// NewRolloverService creates a new RolloverServicer.
func NewRolloverService(db *gorm.DB, notifier NotificationServicer) RolloverServicer {
	return &rolloverService{db: db, notifier: notifier}
}

// RolloverBudget snapshots the budget's current period into a history record
// and resets the budget for the next period. Retrying after a partial
// failure is safe: the unique (budget_id, period_start) index means a
// surviving history record is reused and only the reset is re-applied.
func (s *rolloverService) RolloverBudget(ctx context.Context, userID, budgetID uint, policy config.RolloverPolicy) (*RolloverResult, error) {
	var budget models.Budget
	if err := s.db.Where("id = ? AND user_id = ?", budgetID, userID).First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	if budget.EndDate.After(time.Now()) {
		return nil, apperrors.ErrBudgetNotDue
	}

	record, resumed, err := s.snapshot(&budget)
	if err != nil {
		return nil, err
	}

	nextStart := budget.EndDate.AddDate(0, 0, 1)
	nextEnd := nextPeriodEnd(budget.Period, nextStart)

	nextAmount := budget.Amount
	if policy == config.RolloverPolicyCarryForward && record.UnspentAmount.IsPositive() {
		nextAmount = nextAmount.Add(record.UnspentAmount)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("budget_id = ?", budget.ID).Delete(&models.BudgetTransaction{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		if err := tx.Model(&budget).Updates(map[string]interface{}{
			"amount":       nextAmount,
			"spent":        decimal.Zero,
			"start_date":   nextStart,
			"end_date":     nextEnd,
			"last_updated": time.Now(),
		}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyRollover(record)

	refreshed := budget
	refreshed.Amount = nextAmount
	refreshed.Spent = decimal.Zero
	refreshed.StartDate = nextStart
	refreshed.EndDate = nextEnd

	return &RolloverResult{History: record, Budget: &refreshed, Resumed: resumed}, nil
}

// SweepDueBudgets rolls over every budget whose end date has passed,
// using the configured default policy. Individual failures are logged and
// do not stop the sweep; the count of successful rollovers is returned.
func (s *rolloverService) SweepDueBudgets(ctx context.Context, now time.Time) (int, error) {
	policy := config.Get().RolloverPolicy

	var due []models.Budget
	if err := s.db.Where("end_date < ?", now).Find(&due).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	rolled := 0
	for _, budget := range due {
		if ctx.Err() != nil {
			return rolled, ctx.Err()
		}
		if _, err := s.RolloverBudget(ctx, budget.UserID, budget.ID, policy); err != nil {
			logger.Get().Errorw("rollover failed",
				"budget_id", budget.ID,
				"user_id", budget.UserID,
				"error", err,
			)
			continue
		}
		rolled++
	}
	return rolled, nil
}

// snapshot writes the history record for the budget's current period, or
// returns the existing record when a prior attempt already wrote it.
func (s *rolloverService) snapshot(budget *models.Budget) (*models.BudgetHistoryRecord, bool, error) {
	var existing models.BudgetHistoryRecord
	err := s.db.Where("budget_id = ? AND period_start = ?", budget.ID, budget.StartDate).First(&existing).Error
	if err == nil {
		return &existing, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	var links []models.BudgetTransaction
	if err := s.db.Where("budget_id = ?", budget.ID).Find(&links).Error; err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrDatabase, err)
	}
	trackedIDs := make([]uint, 0, len(links))
	for _, link := range links {
		trackedIDs = append(trackedIDs, link.TransactionID)
	}

	unspent := budget.Amount.Sub(budget.Spent)
	utilization := decimal.Zero
	if !budget.Amount.IsZero() {
		utilization = budget.Spent.Div(budget.Amount).Mul(oneHundred).Round(2)
	}
	status := models.HistoryStatusWithinLimit
	if utilization.GreaterThan(oneHundred) {
		status = models.HistoryStatusExceeded
	}

	record := &models.BudgetHistoryRecord{
		UserID:                budget.UserID,
		BudgetID:              budget.ID,
		Category:              budget.Category,
		Period:                budget.Period,
		PeriodStart:           budget.StartDate,
		PeriodEnd:             budget.EndDate,
		YearMonth:             budget.StartDate.Format("2006-01"),
		OriginalAmount:        budget.Amount,
		ActualSpent:           budget.Spent,
		UnspentAmount:         unspent,
		UtilizationPct:        utilization,
		Status:                status,
		TrackedTransactionIDs: trackedIDs,
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrDatabase, err)
	}
	return record, false, nil
}

// nextPeriodEnd computes the closing date of the period starting at
// nextStart: six days later for weekly budgets, the last day of the month
// for monthly, and one year minus a day for yearly.
func nextPeriodEnd(period models.BudgetPeriod, nextStart time.Time) time.Time {
	switch period {
	case models.BudgetPeriodWeekly:
		return nextStart.AddDate(0, 0, 6)
	case models.BudgetPeriodMonthly:
		firstOfMonth := time.Date(nextStart.Year(), nextStart.Month(), 1, 0, 0, 0, 0, nextStart.Location())
		return firstOfMonth.AddDate(0, 1, -1)
	case models.BudgetPeriodYearly:
		return nextStart.AddDate(1, 0, -1)
	}
	return nextStart.AddDate(0, 0, 6)
}
