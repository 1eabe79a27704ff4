package services

import (
	"context"
	"log/slog"

	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/metrics"
	"github.com/tradeshield/escrow-backend/internal/models"
	repo "github.com/tradeshield/escrow-backend/internal/repository"
	"github.com/tradeshield/escrow-backend/internal/worker"
)

// Event is one lifecycle occurrence fanned out to every recipient.
type Event struct {
	Type       models.NotificationType
	EscrowID   string
	Amount     *int64
	Title      string
	Message    string
	Link       string
	Recipients []string
}

// Notifier decouples escrow/payment/dispute services from notification
// persistence.
type Notifier interface {
	Dispatch(ctx context.Context, ev Event)
}

type NotificationService struct {
	r  repo.Notifications
	wp *worker.Pool
}

func NewNotificationService(r repo.Notifications, wp *worker.Pool) *NotificationService {
	return &NotificationService{r: r, wp: wp}
}

// Dispatch writes one notification row per recipient through the worker
// pool. Delivery is best-effort and at-most-once: a failed write is logged
// and dropped, never surfaced to the caller or retried.
func (s *NotificationService) Dispatch(ctx context.Context, ev Event) {
	// The triggering request finishes before the fan-out does; detach from
	// its cancellation.
	bg := context.WithoutCancel(ctx)
	for _, userID := range ev.Recipients {
		uid := userID
		s.wp.Submit(func() {
			n := models.Notification{
				UserID:  uid,
				Type:    ev.Type,
				Title:   ev.Title,
				Message: ev.Message,
				Link:    ev.Link,
				Amount:  ev.Amount,
			}
			if ev.EscrowID != "" {
				id := ev.EscrowID
				n.EscrowID = &id
			}
			if _, err := s.r.Create(bg, n); err != nil {
				metrics.NotificationsFailed.Inc()
				slog.Error("notification write failed", "type", ev.Type, "user", uid, "err", err)
				return
			}
			metrics.NotificationsTotal.Inc()
		})
	}
}

func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, page, limit int) (repo.NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.r.List(ctx, userID, unreadOnly, limit, (page-1)*limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) (models.Notification, error) {
	return s.r.MarkRead(ctx, userID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.r.MarkAllRead(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	return s.r.Delete(ctx, userID, id)
}

func (s *NotificationService) ClearRead(ctx context.Context, userID string) (int, error) {
	return s.r.DeleteRead(ctx, userID)
}

func (s *NotificationService) Settings(ctx context.Context, userID string) (models.NotificationSettings, error) {
	return s.r.GetSettings(ctx, userID)
}

func (s *NotificationService) UpdateSettings(ctx context.Context, userID string, email, push bool) (models.NotificationSettings, error) {
	if userID == "" {
		return models.NotificationSettings{}, apperr.Unauthorized("missing user")
	}
	return s.r.UpdateSettings(ctx, models.NotificationSettings{
		UserID:       userID,
		EmailEnabled: email,
		PushEnabled:  push,
	})
}
