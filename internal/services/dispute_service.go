package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/metrics"
	"github.com/tradeshield/escrow-backend/internal/models"
	repo "github.com/tradeshield/escrow-backend/internal/repository"
)

// DisputeService handles raising, responding to and resolving disputes. The
// dispute document lives on the escrow row, so every operation rides the
// same conditional-update guard as the status lifecycle.
type DisputeService struct {
	escrows  repo.Escrows
	payouts  repo.Payouts
	banks    repo.BankAccounts
	audit    repo.AuditLogs
	notifier Notifier
}

func NewDisputeService(escrows repo.Escrows, payouts repo.Payouts, banks repo.BankAccounts, audit repo.AuditLogs, notifier Notifier) *DisputeService {
	return &DisputeService{escrows: escrows, payouts: payouts, banks: banks, audit: audit, notifier: notifier}
}

type RaiseDisputeInput struct {
	EscrowID    string   `json:"escrow_id"`
	Reason      string   `json:"reason"`
	Description string   `json:"description"`
	Evidence    []string `json:"evidence"`
}

// Raise moves a funded or delivered escrow into disputed and attaches the
// dispute record.
func (s *DisputeService) Raise(ctx context.Context, actorID string, in RaiseDisputeInput) (models.Escrow, error) {
	if in.Reason == "" {
		return models.Escrow{}, apperr.Validation("reason is required")
	}
	e, err := s.escrows.GetByID(ctx, in.EscrowID)
	if err != nil {
		return models.Escrow{}, err
	}
	if !e.IsParty(actorID) {
		return models.Escrow{}, apperr.Forbidden("not a party to this escrow")
	}

	e, err = s.escrows.Transition(ctx, repo.StatusTransition{
		EscrowID: in.EscrowID,
		From:     []models.EscrowStatus{models.EscrowFunded, models.EscrowDelivered},
		To:       models.EscrowDisputed,
		Dispute: &models.Dispute{
			RaisedBy:    actorID,
			Reason:      in.Reason,
			Description: in.Description,
			Evidence:    in.Evidence,
			RaisedAt:    time.Now().UTC(),
		},
	})
	if err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			metrics.EscrowTransitionConflicts.Inc()
		}
		return models.Escrow{}, err
	}
	metrics.EscrowTransitionsTotal.WithLabelValues(string(models.EscrowDisputed)).Inc()
	s.auditLog(ctx, e.ID, actorID, "dispute_raised", map[string]any{"reason": in.Reason})

	s.notifier.Dispatch(ctx, Event{
		Type:       models.NotifyDisputeRaised,
		EscrowID:   e.ID,
		Title:      "Dispute raised",
		Message:    "A dispute was raised on your escrow; funds are frozen until resolution",
		Link:       "/escrow/" + e.ID,
		Recipients: []string{e.Counterparty(actorID)},
	})
	return e, nil
}

// Get returns the escrow with its dispute for a party or an admin.
func (s *DisputeService) Get(ctx context.Context, actorID, role, escrowID string) (models.Escrow, error) {
	e, err := s.escrows.GetByID(ctx, escrowID)
	if err != nil {
		return models.Escrow{}, err
	}
	if role != models.RoleAdmin && !e.IsParty(actorID) {
		return models.Escrow{}, apperr.Forbidden("not a party to this escrow")
	}
	if e.Dispute == nil {
		return models.Escrow{}, apperr.NotFound("no dispute on this escrow")
	}
	return e, nil
}

// Respond appends a message to an open dispute.
func (s *DisputeService) Respond(ctx context.Context, actorID, escrowID, message string) (models.Escrow, error) {
	if message == "" {
		return models.Escrow{}, apperr.Validation("message is required")
	}
	e, err := s.escrows.GetByID(ctx, escrowID)
	if err != nil {
		return models.Escrow{}, err
	}
	if !e.IsParty(actorID) {
		return models.Escrow{}, apperr.Forbidden("not a party to this escrow")
	}
	return s.escrows.AppendDisputeResponse(ctx, escrowID, models.DisputeResponse{
		UserID:    actorID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
}

type ResolveDisputeInput struct {
	Outcome       models.ResolutionOutcome `json:"outcome"`
	PartialAmount int64                    `json:"partial_amount,omitempty"`
	Note          string                   `json:"note,omitempty"`
}

// Resolve is the admin-only terminal transition out of disputed. The
// outcome decides the refund/release split; the resolution record is
// written once and never amended.
func (s *DisputeService) Resolve(ctx context.Context, adminID, escrowID string, in ResolveDisputeInput) (models.Escrow, error) {
	if !models.ValidResolutionOutcome(in.Outcome) {
		return models.Escrow{}, apperr.Validationf("unknown outcome %q", in.Outcome)
	}
	e, err := s.escrows.GetByID(ctx, escrowID)
	if err != nil {
		return models.Escrow{}, err
	}

	var refund, release int64
	var to models.EscrowStatus
	switch in.Outcome {
	case models.RefundToBuyer:
		refund, release, to = e.Amount, 0, models.EscrowRefunded
	case models.ReleaseToSeller, models.RejectDispute:
		refund, release, to = 0, e.Amount, models.EscrowCompleted
	case models.PartialRefund:
		if in.PartialAmount <= 0 || in.PartialAmount > e.Amount {
			return models.Escrow{}, apperr.Validation("partial amount must be positive and at most the escrow amount")
		}
		// The remainder goes back to the seller.
		refund, release, to = in.PartialAmount, e.Amount-in.PartialAmount, models.EscrowRefunded
	}

	e, err = s.escrows.Transition(ctx, repo.StatusTransition{
		EscrowID: escrowID,
		From:     []models.EscrowStatus{models.EscrowDisputed},
		To:       to,
		Resolution: &models.Resolution{
			Outcome:       in.Outcome,
			ResolvedBy:    adminID,
			RefundAmount:  refund,
			ReleaseAmount: release,
			Note:          in.Note,
			ResolvedAt:    time.Now().UTC(),
		},
	})
	if err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			metrics.EscrowTransitionConflicts.Inc()
		}
		return models.Escrow{}, err
	}
	metrics.EscrowTransitionsTotal.WithLabelValues(string(to)).Inc()
	s.auditLog(ctx, e.ID, adminID, "dispute_resolved", map[string]any{
		"outcome": in.Outcome, "refund": refund, "release": release,
	})

	if release > 0 {
		s.recordReleasePayout(ctx, e, release)
	}
	s.notifier.Dispatch(ctx, Event{
		Type:       models.NotifyDisputeResolved,
		EscrowID:   e.ID,
		Title:      "Dispute resolved",
		Message:    "An arbiter resolved the dispute on your escrow",
		Link:       "/escrow/" + e.ID,
		Recipients: []string{e.BuyerID, e.SellerID},
	})
	return e, nil
}

func (s *DisputeService) recordReleasePayout(ctx context.Context, e models.Escrow, amount int64) {
	acct, err := s.banks.GetPrimary(ctx, e.SellerID)
	if err != nil {
		slog.Warn("resolution payout skipped: no primary bank account", "escrow", e.ID, "seller", e.SellerID)
		return
	}
	if _, err := s.payouts.Create(ctx, models.Payout{
		EscrowID:      e.ID,
		UserID:        e.SellerID,
		BankAccountID: acct.ID,
		Amount:        amount,
		Currency:      e.Currency,
	}); err != nil {
		slog.Error("resolution payout record failed", "escrow", e.ID, "err", err)
	}
}

func (s *DisputeService) auditLog(ctx context.Context, escrowID, actorID, action string, details map[string]any) {
	if err := s.audit.Create(ctx, models.AuditLog{
		EntityType: "dispute",
		EntityID:   &escrowID,
		ActorID:    &actorID,
		Action:     action,
		Details:    details,
	}); err != nil {
		slog.Error("audit write failed", "escrow", escrowID, "action", action, "err", err)
	}
}
