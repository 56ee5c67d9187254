package models

// NotificationKind identifies what triggered a notification event.
type NotificationKind string

const (
	NotificationKindBudgetLimit    NotificationKind = "budget_limit"
	NotificationKindLoanSpending   NotificationKind = "loan_spending"
	NotificationKindInstalmentDue  NotificationKind = "instalment_due"
	NotificationKindBudgetRollover NotificationKind = "budget_rollover"
)

// NotificationChannel is the delivery channel requested for an event.
type NotificationChannel string

const (
	NotificationChannelEmail NotificationChannel = "email"
	NotificationChannelSMS   NotificationChannel = "sms"
)

// NotificationHistory records every emitted notification event. Delivery is
// best-effort; the history row is written even when the publish fails.
type NotificationHistory struct {
	Base
	UserID   uint                `gorm:"not null;index" json:"user_id"`
	EventID  string              `gorm:"size:36;index" json:"event_id"`
	Kind     NotificationKind    `gorm:"not null" json:"kind"`
	Channel  NotificationChannel `gorm:"not null" json:"channel"`
	Category string              `json:"category,omitempty"`
	Payload  string              `json:"payload"`
}
