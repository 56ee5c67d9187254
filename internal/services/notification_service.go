package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "finledger/internal/errors"
	"finledger/internal/logger"
	"finledger/internal/models"
	"finledger/internal/notify"
	"finledger/internal/pagination"
)

// loanSpendingThreshold is the spend-vs-available percentage at which a
// loan spending notification fires.
var loanSpendingThreshold = decimal.NewFromInt(80)

// instalmentReminderDays is how many days before a due date the reminder
// window opens.
const instalmentReminderDays = 3

// notificationService evaluates spend thresholds and emits notification
// events. Delivery is best-effort: every failure on this path is logged
// and swallowed so it can never fail the originating ledger operation.
type notificationService struct {
	db     *gorm.DB
	sender notify.Sender
}

// NewNotificationService creates a new NotificationServicer.
func NewNotificationService(db *gorm.DB, sender notify.Sender) NotificationServicer {
	return &notificationService{db: db, sender: sender}
}

// ShouldNotify reports whether a budget threshold event should fire:
// spent has reached the limit and the user has notifications enabled.
func (s *notificationService) ShouldNotify(user *models.User, spent, limit decimal.Decimal) bool {
	return user.NotificationsEnabled && spent.GreaterThanOrEqual(limit)
}

// NotifyBudgetThreshold emits a budget limit event when spend has reached
// the budget cap.
func (s *notificationService) NotifyBudgetThreshold(userID uint, category string, spent, limit decimal.Decimal) {
	user, ok := s.loadUser(userID)
	if !ok {
		return
	}
	if !s.ShouldNotify(user, spent, limit) {
		return
	}

	s.emit(userID, models.NotificationKindBudgetLimit, models.NotificationChannelEmail, category, map[string]any{
		"category": category,
		"spent":    spent.StringFixed(2),
		"limit":    limit.StringFixed(2),
	})
}

// NotifyLoanSpending emits a loan spending event when spend has reached 80%
// of the amount available as of the given time. Available amount follows
// the instalment schedule, not the remaining balance.
func (s *notificationService) NotifyLoanSpending(loan *models.Loan, asOf time.Time) {
	user, ok := s.loadUser(loan.UserID)
	if !ok || !user.NotificationsEnabled {
		return
	}

	available := decimal.Zero
	for _, instalment := range loan.Instalments {
		if !instalment.DueDate.After(asOf) {
			available = available.Add(instalment.Amount)
		}
	}
	if available.IsZero() {
		return
	}

	spent := loan.TotalAmount.Sub(loan.RemainingAmount)
	pct := spent.Div(available).Mul(oneHundred)
	if pct.LessThan(loanSpendingThreshold) {
		return
	}

	s.emit(loan.UserID, models.NotificationKindLoanSpending, models.NotificationChannelEmail, "", map[string]any{
		"spent":               spent.StringFixed(2),
		"available":           available.StringFixed(2),
		"spending_percentage": pct.StringFixed(2),
	})
}

// NotifyRollover emits a rollover summary for a freshly closed period.
func (s *notificationService) NotifyRollover(record *models.BudgetHistoryRecord) {
	user, ok := s.loadUser(record.UserID)
	if !ok || !user.NotificationsEnabled {
		return
	}

	s.emit(record.UserID, models.NotificationKindBudgetRollover, models.NotificationChannelEmail, record.Category, map[string]any{
		"category":    record.Category,
		"period":      string(record.Period),
		"spent":       record.ActualSpent.StringFixed(2),
		"unspent":     record.UnspentAmount.StringFixed(2),
		"utilization": record.UtilizationPct.StringFixed(2),
		"status":      string(record.Status),
	})
}

// SweepInstalmentReminders emits a reminder for every loan whose next
// instalment is due within the next three days. Returns the number of
// reminders emitted.
func (s *notificationService) SweepInstalmentReminders(ctx context.Context, now time.Time) (int, error) {
	var loans []models.Loan
	if err := s.db.Preload("Instalments").Find(&loans).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	emitted := 0
	for i := range loans {
		if ctx.Err() != nil {
			return emitted, ctx.Err()
		}
		loan := &loans[i]

		next := nextInstalment(loan, now)
		if next == nil {
			continue
		}

		days := int(math.Ceil(next.DueDate.Sub(now).Hours() / 24))
		if days <= 0 || days > instalmentReminderDays {
			continue
		}

		user, ok := s.loadUser(loan.UserID)
		if !ok || !user.NotificationsEnabled {
			continue
		}

		s.emit(loan.UserID, models.NotificationKindInstalmentDue, models.NotificationChannelSMS, "", map[string]any{
			"due_date":   next.DueDate.Format("2006-01-02"),
			"amount":     next.Amount.StringFixed(2),
			"days_until": days,
		})
		emitted++
	}
	return emitted, nil
}

// GetHistory returns the user's notification history, newest first.
func (s *notificationService) GetHistory(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.NotificationHistory], error) {
	page.Defaults()

	base := s.db.Model(&models.NotificationHistory{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	var history []models.NotificationHistory
	if err := base.Scopes(pagination.Paginate(page)).Order("created_at DESC").Find(&history).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, err)
	}

	result := pagination.NewPageResponse(history, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// emit publishes one event and records it in the notification history.
// Nothing on this path returns an error to the caller.
func (s *notificationService) emit(userID uint, kind models.NotificationKind, channel models.NotificationChannel, category string, payload map[string]any) {
	event := notify.Event{
		EventID:   newEventID(),
		UserID:    userID,
		Kind:      kind,
		Channel:   channel,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	if err := s.sender.Send(context.Background(), event); err != nil {
		logger.Get().Errorw("notification send failed",
			"event_id", event.EventID,
			"user_id", userID,
			"kind", kind,
			"error", err,
		)
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		logger.Get().Errorw("failed to marshal notification payload", "error", err, "kind", kind)
		payloadJSON = []byte("{}")
	}

	entry := &models.NotificationHistory{
		UserID:   userID,
		EventID:  event.EventID,
		Kind:     kind,
		Channel:  channel,
		Category: category,
		Payload:  string(payloadJSON),
	}
	if err := s.db.Create(entry).Error; err != nil {
		logger.Get().Errorw("failed to record notification history",
			"event_id", event.EventID,
			"user_id", userID,
			"kind", kind,
			"error", err,
		)
	}
}

func (s *notificationService) loadUser(userID uint) (*models.User, bool) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Get().Errorw("failed to load user for notification", "user_id", userID, "error", err)
		}
		return nil, false
	}
	return &user, true
}

// nextInstalment returns the earliest instalment strictly after now.
func nextInstalment(loan *models.Loan, now time.Time) *models.LoanInstalment {
	var next *models.LoanInstalment
	for i := range loan.Instalments {
		instalment := &loan.Instalments[i]
		if !instalment.DueDate.After(now) {
			continue
		}
		if next == nil || instalment.DueDate.Before(next.DueDate) {
			next = instalment
		}
	}
	return next
}

// newEventID returns a time-ordered UUIDv7, falling back to UUIDv4 when
// the system clock or entropy source misbehaves.
func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
