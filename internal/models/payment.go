package models

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment correlates a provider-issued reference to one escrow funding
// attempt. The reference is unique; confirming it twice must not re-run the
// funded transition.
type Payment struct {
	ID          string        `json:"id"`
	EscrowID    string        `json:"escrow_id"`
	PayerID     string        `json:"payer_id"`
	Reference   string        `json:"reference"`
	Amount      int64         `json:"amount"`
	Currency    Currency      `json:"currency"`
	Method      PaymentMethod `json:"method"`
	Status      PaymentStatus `json:"status"`
	CheckoutURL string        `json:"checkout_url,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	ConfirmedAt *time.Time    `json:"confirmed_at,omitempty"`
}
