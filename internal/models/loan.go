package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LivingOption represents the borrower's living situation, which decides
// the maintenance rate a loan was issued at.
type LivingOption string

const (
	LivingOptionHome LivingOption = "home"
	LivingOptionAway LivingOption = "away"
)

// InstalmentCount is the fixed number of scheduled disbursements per loan.
const InstalmentCount = 3

// Loan represents a fixed-schedule loan. Exactly one open loan per user.
// RemainingAmount is a cached aggregate: total minus the sum of tracked
// transaction amounts.
type Loan struct {
	Base
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	LivingOption    LivingOption    `gorm:"not null" json:"living_option"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"remaining_amount"`

	Instalments         []LoanInstalment  `gorm:"foreignKey:LoanID" json:"instalments,omitempty"`
	TrackedTransactions []LoanTransaction `gorm:"foreignKey:LoanID" json:"tracked_transactions,omitempty"`
}

// LoanInstalment is one scheduled disbursement. Sequence runs 1..3 and
// instalment amounts sum to the loan's total.
type LoanInstalment struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	LoanID   uint            `gorm:"not null;uniqueIndex:idx_loan_instalment_seq" json:"loan_id"`
	Sequence int             `gorm:"not null;uniqueIndex:idx_loan_instalment_seq" json:"sequence"`
	DueDate  time.Time       `gorm:"not null" json:"due_date"`
	Amount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
}

// LoanTransaction links a transaction to a loan.
type LoanTransaction struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	LoanID        uint      `gorm:"not null;uniqueIndex:idx_loan_transaction" json:"loan_id"`
	TransactionID uint      `gorm:"not null;uniqueIndex:idx_loan_transaction" json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
}
