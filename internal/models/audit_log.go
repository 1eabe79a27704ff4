package models

import "time"

// AuditLog captures one escrow lifecycle event for after-the-fact review.
// Writes are best-effort and never block the triggering operation.
type AuditLog struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entity_type"` // escrow, dispute, payment, kyc
	EntityID   *string        `json:"entity_id"`
	ActorID    *string        `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}
