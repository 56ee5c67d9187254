package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetPeriod represents the period type for a budget
type BudgetPeriod string

const (
	BudgetPeriodWeekly  BudgetPeriod = "weekly"
	BudgetPeriodMonthly BudgetPeriod = "monthly"
	BudgetPeriodYearly  BudgetPeriod = "yearly"
)

// Budget represents a spending cap for one category over one period.
// Spent is a cached aggregate over the tracked transactions; summary
// queries re-derive it from the link table and treat the cache as
// advisory only.
type Budget struct {
	Base
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	Category    string          `gorm:"not null" json:"category"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Spent       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"spent"`
	Period      BudgetPeriod    `gorm:"not null" json:"period"`
	StartDate   time.Time       `gorm:"not null" json:"start_date"`
	EndDate     time.Time       `gorm:"not null" json:"end_date"`
	LastUpdated time.Time       `json:"last_updated"`

	TrackedTransactions []BudgetTransaction `gorm:"foreignKey:BudgetID" json:"tracked_transactions,omitempty"`
}

// BudgetTransaction links a transaction to a budget. The composite unique
// index gives the tracked set its set semantics: inserting the same pair
// twice is a no-op for callers using OnConflict DoNothing.
type BudgetTransaction struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	BudgetID      uint      `gorm:"not null;uniqueIndex:idx_budget_transaction" json:"budget_id"`
	TransactionID uint      `gorm:"not null;uniqueIndex:idx_budget_transaction" json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
}
