package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"finledger/internal/config"
	"finledger/internal/models"
	"finledger/internal/testutil"
)

// createClosedBudget inserts a budget whose period has already ended, ready
// for rollover.
func createClosedBudget(t *testing.T, db *gorm.DB, userID uint, amount, spent decimal.Decimal, start, end time.Time) *models.Budget {
	t.Helper()

	budget := &models.Budget{
		UserID:      userID,
		Category:    "Groceries",
		Amount:      amount,
		Spent:       spent,
		Period:      models.BudgetPeriodMonthly,
		StartDate:   start,
		EndDate:     end,
		LastUpdated: end,
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create closed budget: %v", err)
	}
	return budget
}

func TestRolloverBudget(t *testing.T) {
	ctx := context.Background()
	janStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	janEnd := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	t.Run("reset_policy", func(t *testing.T) {
		deps := newTestDeps(t)
		user := testutil.CreateTestUser(t, deps.db)
		budget := createClosedBudget(t, deps.db, user.ID, decimal.NewFromInt(100), decimal.NewFromInt(25), janStart, janEnd)
		txn := testutil.CreateTestTransactionOn(t, deps.db, user.ID, nil, decimal.NewFromInt(25), janStart.AddDate(0, 0, 5))
		deps.db.Create(&models.BudgetTransaction{BudgetID: budget.ID, TransactionID: txn.ID})

		result, err := deps.rollover.RolloverBudget(ctx, user.ID, budget.ID, config.RolloverPolicyReset)
		testutil.AssertNoError(t, err)

		if result.Resumed {
			t.Error("expected a fresh rollover, got resumed")
		}
		history := result.History
		testutil.AssertDecimalEqual(t, decimal.NewFromInt(100), history.OriginalAmount)
		testutil.AssertDecimalEqual(t, decimal.NewFromInt(25), history.ActualSpent)
		testutil.AssertDecimalEqual(t, decimal.NewFromInt(75), history.UnspentAmount)
		testutil.AssertDecimalEqual(t, decimal.NewFromInt(25), history.UtilizationPct)
		if history.Status != models.HistoryStatusWithinLimit {
			t.Errorf("expected status %s, got %s", models.HistoryStatusWithinLimit, history.Status)
		}
		if history.YearMonth != "2026-01" {
			t.Errorf("expected year_month 2026-01, got %s", history.YearMonth)
		}
		if len(history.TrackedTransactionIDs) != 1 || history.TrackedTransactionIDs[0] != txn.ID {
			t.Errorf("expected tracked IDs [%d], got %v", txn.ID, history.TrackedTransactionIDs)
		}

		testutil.AssertDecimalEqual(t, decimal.NewFromInt(100), result.Budget.Amount)
		testutil.AssertDecimalEqual(t, decimal.Zero, result.Budget.Spent)
		wantStart := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		wantEnd := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
		if !result.Budget.StartDate.Equal(wantStart) || !result.Budget.EndDate.Equal(wantEnd) {
			t.Errorf("expected window %s..%s, got %s..%s",
				wantStart, wantEnd, result.Budget.StartDate, result.Budget.EndDate)
		}

		var links int64
		deps.db.Model(&models.BudgetTransaction{}).Where("budget_id = ?", budget.ID).Count(&links)
		if links != 0 {
			t.Errorf("expected links cleared, got %d", links)
		}

		events := deps.sender.sent()
		if len(events) != 1 || events[0].Kind != models.NotificationKindBudgetRollover {
			t.Errorf("expected one rollover event, got %+v", events)
		}
	})

	t.Run("overspent_period_marked_exceeded", func(t *testing.T) {
		deps := newTestDeps(t)
		user := testutil.CreateTestUser(t, deps.db)
		budget := createClosedBudget(t, deps.db, user.ID, decimal.NewFromInt(100), decimal.NewFromInt(150), janStart, janEnd)

		result, err := deps.rollover.RolloverBudget(ctx, user.ID, budget.ID, config.RolloverPolicyReset)
		testutil.AssertNoError(t, err)

		if result.History.Status != models.HistoryStatusExceeded {
			t.Errorf("expected status %s, got %s", models.HistoryStatusExceeded, result.History.Status)
		}
		testutil.AssertDecimalEqual(t, decimal.NewFromInt(150), result.History.UtilizationPct)
		testutil.AssertDecimalEqual(t, decimal.NewFromInt(-50), result.History.UnspentAmount)
	})

	t.Run("carry_forward_adds_unspent", func(t *testing.T) {
		deps := newTestDeps(t)
		user := testutil.CreateTestUser(t, deps.db)
		budget := createClosedBudget(t, deps.db, user.ID, decimal.NewFromInt(100), decimal.NewFromInt(40), janStart, janEnd)

		result, err := deps.rollover.RolloverBudget(ctx, user.ID, budget.ID, config.RolloverPolicyCarryForward)
		testutil.AssertNoError(t, err)
		testutil.AssertDecimalEqual(t, decimal.NewFromInt(160), result.Budget.Amount)
	})

	t.Run("carry_forward_ignores_overspend", func(t *testing.T) {
		deps := newTestDeps(t)
		user := testutil.CreateTestUser(t, deps.db)
		budget := createClosedBudget(t, deps.db, user.ID, decimal.NewFromInt(100), decimal.NewFromInt(130), janStart, janEnd)

		result, err := deps.rollover.RolloverBudget(ctx, user.ID, budget.ID, config.RolloverPolicyCarryForward)
		testutil.AssertNoError(t, err)
		testutil.AssertDecimalEqual(t, decimal.NewFromInt(100), result.Budget.Amount)
	})

	t.Run("not_yet_due", func(t *testing.T) {
		deps := newTestDeps(t)
		user := testutil.CreateTestUser(t, deps.db)
		start := time.Now().AddDate(0, 0, -10)
		end := time.Now().AddDate(0, 0, 10)
		budget := createClosedBudget(t, deps.db, user.ID, decimal.NewFromInt(100), decimal.Zero, start, end)

		_, err := deps.rollover.RolloverBudget(ctx, user.ID, budget.ID, config.RolloverPolicyReset)
		testutil.AssertAppError(t, err, "BUDGET_NOT_DUE")
	})

	t.Run("retry_reuses_existing_history", func(t *testing.T) {
		deps := newTestDeps(t)
		user := testutil.CreateTestUser(t, deps.db)
		budget := createClosedBudget(t, deps.db, user.ID, decimal.NewFromInt(100), decimal.NewFromInt(25), janStart, janEnd)

		// A prior attempt wrote the snapshot but failed before the reset.
		prior := &models.BudgetHistoryRecord{
			UserID:         user.ID,
			BudgetID:       budget.ID,
			Category:       budget.Category,
			Period:         budget.Period,
			PeriodStart:    janStart,
			PeriodEnd:      janEnd,
			YearMonth:      "2026-01",
			OriginalAmount: decimal.NewFromInt(100),
			ActualSpent:    decimal.NewFromInt(25),
			UnspentAmount:  decimal.NewFromInt(75),
			UtilizationPct: decimal.NewFromInt(25),
			Status:         models.HistoryStatusWithinLimit,
		}
		if err := deps.db.Create(prior).Error; err != nil {
			t.Fatalf("failed to seed history record: %v", err)
		}

		result, err := deps.rollover.RolloverBudget(ctx, user.ID, budget.ID, config.RolloverPolicyReset)
		testutil.AssertNoError(t, err)
		if !result.Resumed {
			t.Error("expected resumed rollover")
		}
		if result.History.ID != prior.ID {
			t.Errorf("expected history record %d reused, got %d", prior.ID, result.History.ID)
		}
		testutil.AssertDecimalEqual(t, decimal.Zero, result.Budget.Spent)

		var count int64
		deps.db.Model(&models.BudgetHistoryRecord{}).Where("budget_id = ?", budget.ID).Count(&count)
		if count != 1 {
			t.Errorf("expected a single history record, got %d", count)
		}
	})

	t.Run("missing_budget", func(t *testing.T) {
		deps := newTestDeps(t)
		user := testutil.CreateTestUser(t, deps.db)

		_, err := deps.rollover.RolloverBudget(ctx, user.ID, 9999, config.RolloverPolicyReset)
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
	})
}

func TestSweepDueBudgets(t *testing.T) {
	deps := newTestDeps(t)
	user := testutil.CreateTestUser(t, deps.db)

	janStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	janEnd := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	createClosedBudget(t, deps.db, user.ID, decimal.NewFromInt(100), decimal.NewFromInt(20), janStart, janEnd)
	createClosedBudget(t, deps.db, user.ID, decimal.NewFromInt(50), decimal.NewFromInt(50), janStart, janEnd)

	sweepAt := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	rolled, err := deps.rollover.SweepDueBudgets(context.Background(), sweepAt)
	testutil.AssertNoError(t, err)
	if rolled != 2 {
		t.Fatalf("expected 2 budgets rolled, got %d", rolled)
	}

	// Both budgets now cover February; a second sweep at the same instant
	// finds nothing due.
	rolled, err = deps.rollover.SweepDueBudgets(context.Background(), sweepAt)
	testutil.AssertNoError(t, err)
	if rolled != 0 {
		t.Errorf("expected 0 budgets rolled on second sweep, got %d", rolled)
	}
}

func TestNextPeriodEnd(t *testing.T) {
	tests := []struct {
		name   string
		period models.BudgetPeriod
		start  time.Time
		want   time.Time
	}{
		{
			name:   "weekly",
			period: models.BudgetPeriodWeekly,
			start:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			want:   time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "monthly_short_month",
			period: models.BudgetPeriodMonthly,
			start:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			want:   time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "monthly_leap_february",
			period: models.BudgetPeriodMonthly,
			start:  time.Date(2028, 2, 1, 0, 0, 0, 0, time.UTC),
			want:   time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "yearly",
			period: models.BudgetPeriodYearly,
			start:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			want:   time.Date(2027, 2, 28, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextPeriodEnd(tt.period, tt.start)
			if !got.Equal(tt.want) {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
