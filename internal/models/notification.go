package models

import "time"

type NotificationType string

const (
	NotifyEscrowCreated   NotificationType = "escrow_created"
	NotifyEscrowAccepted  NotificationType = "escrow_accepted"
	NotifyEscrowFunded    NotificationType = "escrow_funded"
	NotifyEscrowDelivered NotificationType = "escrow_delivered"
	NotifyEscrowCompleted NotificationType = "escrow_completed"
	NotifyEscrowCancelled NotificationType = "escrow_cancelled"
	NotifyDisputeRaised   NotificationType = "dispute_raised"
	NotifyDisputeResolved NotificationType = "dispute_resolved"
	NotifyPayoutSent      NotificationType = "payout_sent"
	NotifyKYCReviewed     NotificationType = "kyc_reviewed"
)

// Notification is one user-facing event row. Created by the dispatcher as an
// escrow side effect, mutated only by the owning user's read/delete actions.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      string           `json:"link,omitempty"`
	EscrowID  *string          `json:"escrow_id,omitempty"`
	Amount    *int64           `json:"amount,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
}

// NotificationSettings holds per-channel opt-in flags. Rows are created
// lazily; a missing row means both channels enabled.
type NotificationSettings struct {
	UserID       string    `json:"user_id"`
	EmailEnabled bool      `json:"email_enabled"`
	PushEnabled  bool      `json:"push_enabled"`
	UpdatedAt    time.Time `json:"updated_at"`
}
