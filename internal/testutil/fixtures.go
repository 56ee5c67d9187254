package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"finledger/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:                email,
		Password:             string(hash),
		IsActive:             true,
		NotificationsEnabled: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCategory creates a category with a unique name.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID uint) *models.Category {
	t.Helper()
	return CreateTestCategoryWithName(t, db, userID, fmt.Sprintf("Test Category %d", nextID()))
}

// CreateTestCategoryWithName creates a category with the given name.
func CreateTestCategoryWithName(t *testing.T, db *gorm.DB, userID uint, name string) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   name,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestTransaction creates a transaction with the given category and amount.
// Pass nil for an uncategorized transaction.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID uint, category *string, amount decimal.Decimal) *models.Transaction {
	t.Helper()
	return CreateTestTransactionOn(t, db, userID, category, amount, time.Now())
}

// CreateTestTransactionOn creates a transaction with an explicit date.
func CreateTestTransactionOn(t *testing.T, db *gorm.DB, userID uint, category *string, amount decimal.Decimal, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:   userID,
		Amount:   amount,
		Category: category,
		Date:     date,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestBudget creates a monthly budget for the given category covering
// the current month.
func CreateTestBudget(t *testing.T, db *gorm.DB, userID uint, category string, amount decimal.Decimal) *models.Budget {
	t.Helper()

	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	budget := &models.Budget{
		UserID:      userID,
		Category:    category,
		Amount:      amount,
		Spent:       decimal.Zero,
		Period:      models.BudgetPeriodMonthly,
		StartDate:   start,
		EndDate:     end,
		LastUpdated: now,
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestLoan creates a loan with three equal instalments around the
// given anchor date: one month before, the anchor, and one month after.
func CreateTestLoan(t *testing.T, db *gorm.DB, userID uint, total decimal.Decimal, anchor time.Time) *models.Loan {
	t.Helper()

	per := total.Div(decimal.NewFromInt(3)).Round(2)
	last := total.Sub(per).Sub(per)

	loan := &models.Loan{
		UserID:          userID,
		LivingOption:    models.LivingOptionHome,
		TotalAmount:     total,
		RemainingAmount: total,
	}
	if err := db.Create(loan).Error; err != nil {
		t.Fatalf("failed to create test loan: %v", err)
	}

	instalments := []models.LoanInstalment{
		{LoanID: loan.ID, Sequence: 1, DueDate: anchor.AddDate(0, -1, 0), Amount: per},
		{LoanID: loan.ID, Sequence: 2, DueDate: anchor, Amount: per},
		{LoanID: loan.ID, Sequence: 3, DueDate: anchor.AddDate(0, 1, 0), Amount: last},
	}
	if err := db.Create(&instalments).Error; err != nil {
		t.Fatalf("failed to create test instalments: %v", err)
	}
	loan.Instalments = instalments
	return loan
}
