package models

import "time"

type KYCStatus string

const (
	KYCUnverified  KYCStatus = "unverified"
	KYCPending     KYCStatus = "pending"
	KYCUnderReview KYCStatus = "under_review"
	KYCApproved    KYCStatus = "approved"
	KYCRejected    KYCStatus = "rejected"
)

type KYCTier string

const (
	KYCTierBasic KYCTier = "basic"
	KYCTierFull  KYCTier = "full"
)

// KYCDocument is a reference to an uploaded identity document.
type KYCDocument struct {
	Type string `json:"type"` // passport, id_card, utility_bill
	URL  string `json:"url"`
}

// KYCVerification is one record per user, created lazily on first
// submission. Status is advanced only by an authorized reviewer.
type KYCVerification struct {
	ID         string        `json:"id"`
	UserID     string        `json:"user_id"`
	Tier       KYCTier       `json:"tier"`
	Status     KYCStatus     `json:"status"`
	Documents  []KYCDocument `json:"documents,omitempty"`
	ReviewerID *string       `json:"reviewer_id,omitempty"`
	Note       string        `json:"note,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
