package services

import (
	"context"
	"sync"
	"testing"

	"gorm.io/gorm"

	"finledger/internal/notify"
	"finledger/internal/testutil"
)

// recordingSender captures every event sent through it.
type recordingSender struct {
	mu     sync.Mutex
	events []notify.Event
}

func (s *recordingSender) Send(_ context.Context, event notify.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSender) Close() error { return nil }

func (s *recordingSender) sent() []notify.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notify.Event, len(s.events))
	copy(out, s.events)
	return out
}

// testDeps wires the full service graph over one in-memory database, the
// same way the entrypoints do.
type testDeps struct {
	db           *gorm.DB
	sender       *recordingSender
	users        UserServicer
	categories   CategoryServicer
	notifier     NotificationServicer
	budgets      BudgetServicer
	transactions TransactionServicer
	loans        LoanServicer
	rollover     RolloverServicer
	analytics    AnalyticsServicer
	reconciler   ReconciliationServicer
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	sender := &recordingSender{}
	users := NewUserService(db)
	categories := NewCategoryService(db)
	notifier := NewNotificationService(db, sender)
	budgets := NewBudgetService(db, categories, notifier)
	transactions := NewTransactionService(db, budgets, categories)
	loans := NewLoanService(db, notifier)
	rollover := NewRolloverService(db, notifier)
	analytics := NewAnalyticsService(db)
	reconciler := NewReconciliationService(db)

	return &testDeps{
		db:           db,
		sender:       sender,
		users:        users,
		categories:   categories,
		notifier:     notifier,
		budgets:      budgets,
		transactions: transactions,
		loans:        loans,
		rollover:     rollover,
		analytics:    analytics,
		reconciler:   reconciler,
	}
}
