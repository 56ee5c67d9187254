// Package notify is the outbound delivery collaborator. The ledger emits
// notification events through a Sender; delivery itself (email, SMS) happens
// downstream of the message queue and is never part of the ledger's
// consistency guarantees.
package notify

import (
	"context"
	"time"

	"finledger/internal/logger"
	"finledger/internal/models"
)

// Event is the envelope published for every notification.
type Event struct {
	EventID   string                     `json:"event_id"`
	UserID    uint                       `json:"user_id"`
	Kind      models.NotificationKind    `json:"kind"`
	Channel   models.NotificationChannel `json:"channel"`
	Payload   map[string]any             `json:"payload"`
	Timestamp time.Time                  `json:"timestamp"`
}

// Sender delivers notification events. Implementations must be safe for
// concurrent use and should fail fast rather than block the caller.
type Sender interface {
	Send(ctx context.Context, event Event) error
	Close() error
}

// LogSender writes events to the application log. It is the fallback when
// no message broker is configured.
type LogSender struct{}

// NewLogSender creates a Sender that only logs events.
func NewLogSender() *LogSender {
	return &LogSender{}
}

// Send logs the event and always succeeds.
func (s *LogSender) Send(_ context.Context, event Event) error {
	logger.Get().Infow("notification event",
		"event_id", event.EventID,
		"user_id", event.UserID,
		"kind", event.Kind,
		"channel", event.Channel,
	)
	return nil
}

// Close is a no-op.
func (s *LogSender) Close() error { return nil }
