package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/models"
	"finledger/internal/pagination"
	"finledger/internal/testutil"
)

func TestCreateTransaction(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		deps := newTestDeps(t)
		user := testutil.CreateTestUser(t, deps.db)

		txn, err := deps.transactions.CreateTransaction(user.ID, decimal.NewFromInt(50), nil, time.Now(), "coffee")
		testutil.AssertNoError(t, err)
		if txn.ID == 0 {
			t.Fatal("expected non-zero transaction ID")
		}
		if txn.Description != "coffee" {
			t.Errorf("expected description coffee, got %s", txn.Description)
		}
	})

	t.Run("zero_amount", func(t *testing.T) {
		deps := newTestDeps(t)
		user := testutil.CreateTestUser(t, deps.db)

		_, err := deps.transactions.CreateTransaction(user.ID, decimal.Zero, nil, time.Now(), "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("unknown_category", func(t *testing.T) {
		deps := newTestDeps(t)
		user := testutil.CreateTestUser(t, deps.db)
		category := "Nonexistent"

		_, err := deps.transactions.CreateTransaction(user.ID, decimal.NewFromInt(50), &category, time.Now(), "")
		testutil.AssertAppError(t, err, "UNKNOWN_CATEGORY")
	})

	t.Run("categorized_spend_updates_budget", func(t *testing.T) {
		deps := newTestDeps(t)
		user := testutil.CreateTestUser(t, deps.db)
		testutil.CreateTestCategoryWithName(t, deps.db, user.ID, "Groceries")
		budget := testutil.CreateTestBudget(t, deps.db, user.ID, "Groceries", decimal.NewFromInt(100))
		category := "Groceries"

		_, err := deps.transactions.CreateTransaction(user.ID, decimal.NewFromInt(30), &category,
			budget.StartDate.AddDate(0, 0, 1), "weekly shop")
		testutil.AssertNoError(t, err)

		var reloaded models.Budget
		deps.db.First(&reloaded, budget.ID)
		testutil.AssertDecimalEqual(t, decimal.NewFromInt(30), reloaded.Spent)

		var links int64
		deps.db.Model(&models.BudgetTransaction{}).Where("budget_id = ?", budget.ID).Count(&links)
		if links != 1 {
			t.Errorf("expected 1 budget link, got %d", links)
		}
	})
}

func TestGetUserTransactions(t *testing.T) {
	deps := newTestDeps(t)
	user := testutil.CreateTestUser(t, deps.db)
	other := testutil.CreateTestUser(t, deps.db)
	testutil.CreateTestCategoryWithName(t, deps.db, user.ID, "Groceries")
	category := "Groceries"

	now := time.Now()
	testutil.CreateTestTransactionOn(t, deps.db, user.ID, &category, decimal.NewFromInt(20), now.AddDate(0, 0, -5))
	testutil.CreateTestTransactionOn(t, deps.db, user.ID, nil, decimal.NewFromInt(80), now.AddDate(0, 0, -1))
	testutil.CreateTestTransaction(t, deps.db, other.ID, nil, decimal.NewFromInt(99))

	t.Run("scoped_to_user", func(t *testing.T) {
		page, err := deps.transactions.GetUserTransactions(user.ID, pagination.PageRequest{}, TransactionFilter{})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 2 {
			t.Errorf("expected 2 transactions, got %d", page.TotalItems)
		}
	})

	t.Run("category_filter", func(t *testing.T) {
		page, err := deps.transactions.GetUserTransactions(user.ID, pagination.PageRequest{},
			TransactionFilter{Category: &category})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 1 {
			t.Errorf("expected 1 transaction, got %d", page.TotalItems)
		}
	})

	t.Run("amount_filter", func(t *testing.T) {
		min := decimal.NewFromInt(50)
		page, err := deps.transactions.GetUserTransactions(user.ID, pagination.PageRequest{},
			TransactionFilter{MinAmount: &min})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 1 {
			t.Errorf("expected 1 transaction, got %d", page.TotalItems)
		}
	})

	t.Run("date_filter", func(t *testing.T) {
		from := now.AddDate(0, 0, -2)
		page, err := deps.transactions.GetUserTransactions(user.ID, pagination.PageRequest{},
			TransactionFilter{FromDate: &from})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 1 {
			t.Errorf("expected 1 transaction, got %d", page.TotalItems)
		}
	})
}

func TestDeleteTransaction(t *testing.T) {
	t.Run("unlinks_and_decrements_budget", func(t *testing.T) {
		deps := newTestDeps(t)
		user := testutil.CreateTestUser(t, deps.db)
		testutil.CreateTestCategoryWithName(t, deps.db, user.ID, "Groceries")
		budget := testutil.CreateTestBudget(t, deps.db, user.ID, "Groceries", decimal.NewFromInt(100))
		category := "Groceries"

		txn, err := deps.transactions.CreateTransaction(user.ID, decimal.NewFromInt(30), &category,
			budget.StartDate.AddDate(0, 0, 1), "")
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, deps.transactions.DeleteTransaction(user.ID, txn.ID))

		var reloaded models.Budget
		deps.db.First(&reloaded, budget.ID)
		testutil.AssertDecimalEqual(t, decimal.Zero, reloaded.Spent)

		var links int64
		deps.db.Model(&models.BudgetTransaction{}).Where("transaction_id = ?", txn.ID).Count(&links)
		if links != 0 {
			t.Errorf("expected links removed, got %d", links)
		}

		_, err = deps.transactions.GetTransactionByID(user.ID, txn.ID)
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})

	t.Run("missing", func(t *testing.T) {
		deps := newTestDeps(t)
		user := testutil.CreateTestUser(t, deps.db)

		err := deps.transactions.DeleteTransaction(user.ID, 9999)
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})
}

func TestRecategorizeTransaction(t *testing.T) {
	t.Run("moves_spend_between_budgets", func(t *testing.T) {
		deps := newTestDeps(t)
		user := testutil.CreateTestUser(t, deps.db)
		testutil.CreateTestCategoryWithName(t, deps.db, user.ID, "Groceries")
		testutil.CreateTestCategoryWithName(t, deps.db, user.ID, "Dining")
		groceries := testutil.CreateTestBudget(t, deps.db, user.ID, "Groceries", decimal.NewFromInt(100))
		dining := testutil.CreateTestBudget(t, deps.db, user.ID, "Dining", decimal.NewFromInt(100))
		category := "Groceries"

		txn, err := deps.transactions.CreateTransaction(user.ID, decimal.NewFromInt(30), &category,
			groceries.StartDate.AddDate(0, 0, 1), "")
		testutil.AssertNoError(t, err)

		newCategory := "Dining"
		updated, err := deps.transactions.RecategorizeTransaction(user.ID, txn.ID, &newCategory)
		testutil.AssertNoError(t, err)
		if updated.Category == nil || *updated.Category != "Dining" {
			t.Errorf("expected category Dining, got %v", updated.Category)
		}

		var reloadedGroceries, reloadedDining models.Budget
		deps.db.First(&reloadedGroceries, groceries.ID)
		deps.db.First(&reloadedDining, dining.ID)
		testutil.AssertDecimalEqual(t, decimal.Zero, reloadedGroceries.Spent)
		testutil.AssertDecimalEqual(t, decimal.NewFromInt(30), reloadedDining.Spent)
	})

	t.Run("clearing_category_unlinks", func(t *testing.T) {
		deps := newTestDeps(t)
		user := testutil.CreateTestUser(t, deps.db)
		testutil.CreateTestCategoryWithName(t, deps.db, user.ID, "Groceries")
		budget := testutil.CreateTestBudget(t, deps.db, user.ID, "Groceries", decimal.NewFromInt(100))
		category := "Groceries"

		txn, err := deps.transactions.CreateTransaction(user.ID, decimal.NewFromInt(30), &category,
			budget.StartDate.AddDate(0, 0, 1), "")
		testutil.AssertNoError(t, err)

		updated, err := deps.transactions.RecategorizeTransaction(user.ID, txn.ID, nil)
		testutil.AssertNoError(t, err)
		if updated.Category != nil {
			t.Errorf("expected cleared category, got %v", *updated.Category)
		}

		var reloaded models.Budget
		deps.db.First(&reloaded, budget.ID)
		testutil.AssertDecimalEqual(t, decimal.Zero, reloaded.Spent)
	})

	t.Run("unknown_target_category", func(t *testing.T) {
		deps := newTestDeps(t)
		user := testutil.CreateTestUser(t, deps.db)
		txn := testutil.CreateTestTransaction(t, deps.db, user.ID, nil, decimal.NewFromInt(30))
		category := "Nonexistent"

		_, err := deps.transactions.RecategorizeTransaction(user.ID, txn.ID, &category)
		testutil.AssertAppError(t, err, "UNKNOWN_CATEGORY")
	})
}
