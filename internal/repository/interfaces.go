package repository

import (
	"context"
	"time"

	"github.com/tradeshield/escrow-backend/internal/models"
)

// StatusTransition describes one guarded escrow status change. From lists
// the statuses the escrow must currently hold; the store applies the change
// as a single conditional update so concurrent conflicting transitions
// cannot both win. Optional documents are attached in the same write, and
// the once-only timestamp for the destination status is stamped there too.
type StatusTransition struct {
	EscrowID   string
	From       []models.EscrowStatus
	To         models.EscrowStatus
	Delivery   *models.DeliveryProof
	Dispute    *models.Dispute
	Resolution *models.Resolution
}

type Escrows interface {
	Create(ctx context.Context, e models.Escrow) (models.Escrow, error)
	GetByID(ctx context.Context, id string) (models.Escrow, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Escrow, error)

	// Transition applies t atomically. It returns apperr.NotFound when the
	// id is unknown and apperr.Conflict when the current status is outside
	// t.From.
	Transition(ctx context.Context, t StatusTransition) (models.Escrow, error)

	// UpdateDeliveryProof replaces proof fields on a delivered escrow
	// without a status change.
	UpdateDeliveryProof(ctx context.Context, id string, proof models.DeliveryProof) (models.Escrow, error)

	// AppendDisputeResponse adds a response to an open dispute.
	AppendDisputeResponse(ctx context.Context, id string, resp models.DisputeResponse) (models.Escrow, error)

	// ListAutoReleasable returns delivered escrows whose delivered_at is
	// before the cutoff.
	ListAutoReleasable(ctx context.Context, cutoff time.Time, limit int) ([]models.Escrow, error)
}

type Payments interface {
	Create(ctx context.Context, p models.Payment) (models.Payment, error)
	GetByReference(ctx context.Context, ref string) (models.Payment, error)
	// Confirm flips pending -> confirmed. The bool is false when the payment
	// was already confirmed, letting the caller short-circuit idempotent
	// replays.
	Confirm(ctx context.Context, ref string) (models.Payment, bool, error)
	MarkFailed(ctx context.Context, ref string) error
}

type NotificationPage struct {
	Items       []models.Notification
	Total       int
	UnreadCount int
}

type Notifications interface {
	Create(ctx context.Context, n models.Notification) (models.Notification, error)
	// List is ownership-scoped; it never returns another user's rows.
	List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) (NotificationPage, error)
	MarkRead(ctx context.Context, userID, id string) (models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteRead(ctx context.Context, userID string) (int, error)
	GetSettings(ctx context.Context, userID string) (models.NotificationSettings, error)
	UpdateSettings(ctx context.Context, s models.NotificationSettings) (models.NotificationSettings, error)
}

type BankAccounts interface {
	Create(ctx context.Context, a models.BankAccount) (models.BankAccount, error)
	ListByUser(ctx context.Context, userID string) ([]models.BankAccount, error)
	GetPrimary(ctx context.Context, userID string) (models.BankAccount, error)
	SetPrimary(ctx context.Context, userID, id string) (models.BankAccount, error)
	// Delete removes the account; when the primary is deleted the most
	// recently added remaining account is promoted.
	Delete(ctx context.Context, userID, id string) error
}

type Payouts interface {
	Create(ctx context.Context, p models.Payout) (models.Payout, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Payout, error)
}

type KYC interface {
	GetByUser(ctx context.Context, userID string) (models.KYCVerification, error)
	// Submit upserts the user's record into pending with the given
	// documents; allowed only from unverified or rejected.
	Submit(ctx context.Context, userID string, tier models.KYCTier, docs []models.KYCDocument) (models.KYCVerification, error)
	// AdvanceStatus is a guarded from->to change recording the reviewer.
	AdvanceStatus(ctx context.Context, userID string, from []models.KYCStatus, to models.KYCStatus, reviewerID, note string) (models.KYCVerification, error)
	ListByStatus(ctx context.Context, status models.KYCStatus, limit, offset int) ([]models.KYCVerification, error)
}

type APIKeys interface {
	Create(ctx context.Context, k models.APIKey) (models.APIKey, error)
	ListByUser(ctx context.Context, userID string) ([]models.APIKey, error)
	GetByHash(ctx context.Context, secretHash string) (models.APIKey, error)
	Revoke(ctx context.Context, userID, id string) (models.APIKey, error)
	// TouchUsage increments the rate-limit window counter, resetting the
	// window when it has elapsed, and reports whether the call is allowed.
	TouchUsage(ctx context.Context, id string, windowSize time.Duration) (bool, error)
}

type Users interface {
	Create(ctx context.Context, username, email, passwordHash, role string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}
