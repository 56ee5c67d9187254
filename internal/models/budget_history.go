package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryStatus records whether a closed budget period stayed within its cap.
type HistoryStatus string

const (
	HistoryStatusWithinLimit HistoryStatus = "WITHIN_LIMIT"
	HistoryStatusExceeded    HistoryStatus = "EXCEEDED"
)

// BudgetHistoryRecord is an immutable snapshot of a budget at rollover.
// The unique index on (budget_id, period_start) makes rollover retries
// idempotent: a retry that finds the record reuses it instead of writing
// a duplicate.
type BudgetHistoryRecord struct {
	Base
	UserID                uint            `gorm:"not null;index" json:"user_id"`
	BudgetID              uint            `gorm:"not null;uniqueIndex:idx_history_budget_period" json:"budget_id"`
	Category              string          `gorm:"not null;index" json:"category"`
	Period                BudgetPeriod    `gorm:"not null" json:"period"`
	PeriodStart           time.Time       `gorm:"not null;uniqueIndex:idx_history_budget_period" json:"period_start"`
	PeriodEnd             time.Time       `gorm:"not null" json:"period_end"`
	YearMonth             string          `gorm:"size:7;index" json:"year_month"`
	OriginalAmount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"original_amount"`
	ActualSpent           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"actual_spent"`
	UnspentAmount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unspent_amount"`
	UtilizationPct        decimal.Decimal `gorm:"type:decimal(7,2);not null" json:"utilization_percentage"`
	Status                HistoryStatus   `gorm:"not null" json:"status"`
	TrackedTransactionIDs []uint          `gorm:"serializer:json" json:"tracked_transaction_ids"`
}
