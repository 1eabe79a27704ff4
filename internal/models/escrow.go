package models

import "time"

type EscrowStatus string

const (
	EscrowCreated   EscrowStatus = "created"
	EscrowAccepted  EscrowStatus = "accepted"
	EscrowFunded    EscrowStatus = "funded"
	EscrowDelivered EscrowStatus = "delivered"
	EscrowDisputed  EscrowStatus = "disputed"
	EscrowCompleted EscrowStatus = "completed"
	EscrowCancelled EscrowStatus = "cancelled"
	EscrowRefunded  EscrowStatus = "refunded"
)

// Terminal reports whether no further transition may leave the status.
func (s EscrowStatus) Terminal() bool {
	switch s {
	case EscrowCompleted, EscrowCancelled, EscrowRefunded:
		return true
	}
	return false
}

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyNGN Currency = "NGN"
)

func ValidCurrency(c Currency) bool {
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyNGN:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PayByCard         PaymentMethod = "card"
	PayByBankTransfer PaymentMethod = "bank_transfer"
	PayByWallet       PaymentMethod = "wallet"
)

func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PayByCard, PayByBankTransfer, PayByWallet:
		return true
	}
	return false
}

// DeliveryProof is attached by the seller when marking an escrow delivered.
type DeliveryProof struct {
	TrackingNumber string    `json:"tracking_number,omitempty"`
	Carrier        string    `json:"carrier,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	Evidence       []string  `json:"evidence,omitempty"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

type DisputeResponse struct {
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Dispute is attached when a party raises a dispute on a funded or delivered
// escrow. Responses accumulate until an admin resolves it.
type Dispute struct {
	RaisedBy    string            `json:"raised_by"`
	Reason      string            `json:"reason"`
	Description string            `json:"description,omitempty"`
	Evidence    []string          `json:"evidence,omitempty"`
	Responses   []DisputeResponse `json:"responses,omitempty"`
	RaisedAt    time.Time         `json:"raised_at"`
}

type ResolutionOutcome string

const (
	RefundToBuyer   ResolutionOutcome = "refund_to_buyer"
	ReleaseToSeller ResolutionOutcome = "release_to_seller"
	PartialRefund   ResolutionOutcome = "partial_refund"
	RejectDispute   ResolutionOutcome = "reject_dispute"
)

func ValidResolutionOutcome(o ResolutionOutcome) bool {
	switch o {
	case RefundToBuyer, ReleaseToSeller, PartialRefund, RejectDispute:
		return true
	}
	return false
}

// Resolution is written exactly once by the dispute resolver and never
// mutated afterwards. Amounts are split so refund + release = escrow amount.
type Resolution struct {
	Outcome       ResolutionOutcome `json:"outcome"`
	ResolvedBy    string            `json:"resolved_by"`
	RefundAmount  int64             `json:"refund_amount"`
	ReleaseAmount int64             `json:"release_amount"`
	Note          string            `json:"note,omitempty"`
	ResolvedAt    time.Time         `json:"resolved_at"`
}

// Escrow is one held-funds transaction between a buyer and a seller. Parties
// and amount are fixed at creation; only status, the attached documents and
// the once-only timestamps change afterwards.
type Escrow struct {
	ID            string        `json:"id"`
	BuyerID       string        `json:"buyer_id"`
	SellerID      string        `json:"seller_id"`
	Description   string        `json:"description"`
	Amount        int64         `json:"amount"` // minor units
	Currency      Currency      `json:"currency"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Status        EscrowStatus  `json:"status"`

	Delivery   *DeliveryProof `json:"delivery,omitempty"`
	Dispute    *Dispute       `json:"dispute,omitempty"`
	Resolution *Resolution    `json:"resolution,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	FundedAt    *time.Time `json:"funded_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// IsParty reports whether userID is the buyer or the seller.
func (e *Escrow) IsParty(userID string) bool {
	return userID == e.BuyerID || userID == e.SellerID
}

// Counterparty returns the other side of the escrow, or "" when userID is
// not a party.
func (e *Escrow) Counterparty(userID string) string {
	switch userID {
	case e.BuyerID:
		return e.SellerID
	case e.SellerID:
		return e.BuyerID
	}
	return ""
}
