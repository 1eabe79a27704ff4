package models

import "time"

// BankAccount is a seller's registered payout destination. The account
// number is stored masked; the full value never persists.
type BankAccount struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	BankName      string    `json:"bank_name"`
	AccountName   string    `json:"account_name"`
	AccountNumber string    `json:"account_number"` // masked, e.g. ****1234
	Currency      Currency  `json:"currency"`
	IsPrimary     bool      `json:"is_primary"`
	CreatedAt     time.Time `json:"created_at"`
}

// MaskAccountNumber keeps the last four digits.
func MaskAccountNumber(n string) string {
	if len(n) <= 4 {
		return "****"
	}
	return "****" + n[len(n)-4:]
}

type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	PayoutSent    PayoutStatus = "sent"
	PayoutFailed  PayoutStatus = "failed"
)

// Payout records a transfer of released escrow funds to a bank account.
type Payout struct {
	ID            string       `json:"id"`
	EscrowID      string       `json:"escrow_id"`
	UserID        string       `json:"user_id"`
	BankAccountID string       `json:"bank_account_id"`
	Amount        int64        `json:"amount"`
	Currency      Currency     `json:"currency"`
	Status        PayoutStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
}
