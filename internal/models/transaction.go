package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a financial transaction in the system.
// Transactions are immutable once created except for explicit
// recategorization, which also updates budget and loan links.
type Transaction struct {
	Base
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Category    *string         `json:"category,omitempty"`
	Date        time.Time       `gorm:"not null" json:"date"`
	Description string          `json:"description"`
}
