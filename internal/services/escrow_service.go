package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/metrics"
	"github.com/tradeshield/escrow-backend/internal/models"
	repo "github.com/tradeshield/escrow-backend/internal/repository"
)

// EscrowService owns the escrow status lifecycle. Authorization is checked
// against the stored record first; the status precondition itself is
// enforced by the repository's conditional update, so two conflicting
// requests racing on the same escrow cannot both transition it.
type EscrowService struct {
	escrows  repo.Escrows
	users    repo.Users
	banks    repo.BankAccounts
	payouts  repo.Payouts
	audit    repo.AuditLogs
	notifier Notifier

	autoReleaseWindow time.Duration
}

func NewEscrowService(
	escrows repo.Escrows,
	users repo.Users,
	banks repo.BankAccounts,
	payouts repo.Payouts,
	audit repo.AuditLogs,
	notifier Notifier,
	autoReleaseWindow time.Duration,
) *EscrowService {
	return &EscrowService{
		escrows:           escrows,
		users:             users,
		banks:             banks,
		payouts:           payouts,
		audit:             audit,
		notifier:          notifier,
		autoReleaseWindow: autoReleaseWindow,
	}
}

type CreateEscrowInput struct {
	SellerID      string               `json:"seller_id"`
	Description   string               `json:"description"`
	Amount        int64                `json:"amount"`
	Currency      models.Currency      `json:"currency"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
}

func (s *EscrowService) Create(ctx context.Context, buyerID string, in CreateEscrowInput) (models.Escrow, error) {
	switch {
	case in.Amount <= 0:
		return models.Escrow{}, apperr.Validation("amount must be positive")
	case !models.ValidCurrency(in.Currency):
		return models.Escrow{}, apperr.Validationf("unsupported currency %q", in.Currency)
	case !models.ValidPaymentMethod(in.PaymentMethod):
		return models.Escrow{}, apperr.Validationf("unsupported payment method %q", in.PaymentMethod)
	case in.SellerID == "":
		return models.Escrow{}, apperr.Validation("seller_id is required")
	case in.SellerID == buyerID:
		return models.Escrow{}, apperr.Validation("buyer and seller must differ")
	case in.Description == "":
		return models.Escrow{}, apperr.Validation("description is required")
	}
	if _, err := s.users.GetByID(ctx, in.SellerID); err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return models.Escrow{}, apperr.Validation("seller does not exist")
		}
		return models.Escrow{}, err
	}

	e, err := s.escrows.Create(ctx, models.Escrow{
		BuyerID:       buyerID,
		SellerID:      in.SellerID,
		Description:   in.Description,
		Amount:        in.Amount,
		Currency:      in.Currency,
		PaymentMethod: in.PaymentMethod,
	})
	if err != nil {
		return models.Escrow{}, err
	}

	s.auditLog(ctx, e.ID, buyerID, "escrow_created", map[string]any{"amount": e.Amount, "currency": e.Currency})
	s.notifier.Dispatch(ctx, Event{
		Type:       models.NotifyEscrowCreated,
		EscrowID:   e.ID,
		Amount:     &e.Amount,
		Title:      "New escrow",
		Message:    fmt.Sprintf("You have been added as the seller on escrow %s", e.ID),
		Link:       "/escrow/" + e.ID,
		Recipients: []string{e.SellerID},
	})
	metrics.EscrowTransitionsTotal.WithLabelValues(string(models.EscrowCreated)).Inc()
	return e, nil
}

// Get returns the escrow to its parties or an admin.
func (s *EscrowService) Get(ctx context.Context, actorID, role, id string) (models.Escrow, error) {
	e, err := s.escrows.GetByID(ctx, id)
	if err != nil {
		return models.Escrow{}, err
	}
	if role != models.RoleAdmin && !e.IsParty(actorID) {
		return models.Escrow{}, apperr.Forbidden("not a party to this escrow")
	}
	return e, nil
}

func (s *EscrowService) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Escrow, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.escrows.ListByUser(ctx, userID, limit, offset)
}

// Accept is the seller acknowledging the terms: created -> accepted.
func (s *EscrowService) Accept(ctx context.Context, actorID, id string) (models.Escrow, error) {
	e, err := s.escrows.GetByID(ctx, id)
	if err != nil {
		return models.Escrow{}, err
	}
	if actorID != e.SellerID {
		return models.Escrow{}, apperr.Forbidden("only the seller can accept")
	}

	e, err = s.transition(ctx, repo.StatusTransition{
		EscrowID: id,
		From:     []models.EscrowStatus{models.EscrowCreated},
		To:       models.EscrowAccepted,
	}, actorID)
	if err != nil {
		return models.Escrow{}, err
	}

	s.notifier.Dispatch(ctx, Event{
		Type:       models.NotifyEscrowAccepted,
		EscrowID:   e.ID,
		Title:      "Escrow accepted",
		Message:    "The seller accepted your escrow; you can fund it now",
		Link:       "/escrow/" + e.ID,
		Recipients: []string{e.BuyerID},
	})
	return e, nil
}

// Cancel is available to either party while no money has moved:
// created|accepted -> cancelled.
func (s *EscrowService) Cancel(ctx context.Context, actorID, id string) (models.Escrow, error) {
	e, err := s.escrows.GetByID(ctx, id)
	if err != nil {
		return models.Escrow{}, err
	}
	if !e.IsParty(actorID) {
		return models.Escrow{}, apperr.Forbidden("not a party to this escrow")
	}

	e, err = s.transition(ctx, repo.StatusTransition{
		EscrowID: id,
		From:     []models.EscrowStatus{models.EscrowCreated, models.EscrowAccepted},
		To:       models.EscrowCancelled,
	}, actorID)
	if err != nil {
		return models.Escrow{}, err
	}

	s.notifier.Dispatch(ctx, Event{
		Type:       models.NotifyEscrowCancelled,
		EscrowID:   e.ID,
		Title:      "Escrow cancelled",
		Message:    "The escrow was cancelled before funding",
		Link:       "/escrow/" + e.ID,
		Recipients: []string{e.Counterparty(actorID)},
	})
	return e, nil
}

// MarkFunded is invoked by the payment verification bridge once the
// provider confirms funds: created|accepted -> funded.
func (s *EscrowService) MarkFunded(ctx context.Context, id string) (models.Escrow, error) {
	e, err := s.transition(ctx, repo.StatusTransition{
		EscrowID: id,
		From:     []models.EscrowStatus{models.EscrowCreated, models.EscrowAccepted},
		To:       models.EscrowFunded,
	}, "")
	if err != nil {
		return models.Escrow{}, err
	}

	s.notifier.Dispatch(ctx, Event{
		Type:       models.NotifyEscrowFunded,
		EscrowID:   e.ID,
		Amount:     &e.Amount,
		Title:      "Escrow funded",
		Message:    "Funds are held in escrow; the seller can deliver",
		Link:       "/escrow/" + e.ID,
		Recipients: []string{e.BuyerID, e.SellerID},
	})
	return e, nil
}

type DeliveryInput struct {
	TrackingNumber string   `json:"tracking_number"`
	Carrier        string   `json:"carrier"`
	Notes          string   `json:"notes"`
	Evidence       []string `json:"evidence"`
}

// MarkDelivered attaches the delivery proof and moves funded -> delivered.
func (s *EscrowService) MarkDelivered(ctx context.Context, actorID, id string, in DeliveryInput) (models.Escrow, error) {
	e, err := s.escrows.GetByID(ctx, id)
	if err != nil {
		return models.Escrow{}, err
	}
	if actorID != e.SellerID {
		return models.Escrow{}, apperr.Forbidden("only the seller can mark delivered")
	}
	if in.TrackingNumber == "" && len(in.Evidence) == 0 {
		return models.Escrow{}, apperr.Validation("a tracking number or evidence is required")
	}

	e, err = s.transition(ctx, repo.StatusTransition{
		EscrowID: id,
		From:     []models.EscrowStatus{models.EscrowFunded},
		To:       models.EscrowDelivered,
		Delivery: &models.DeliveryProof{
			TrackingNumber: in.TrackingNumber,
			Carrier:        in.Carrier,
			Notes:          in.Notes,
			Evidence:       in.Evidence,
			SubmittedAt:    time.Now().UTC(),
		},
	}, actorID)
	if err != nil {
		return models.Escrow{}, err
	}

	s.notifier.Dispatch(ctx, Event{
		Type:       models.NotifyEscrowDelivered,
		EscrowID:   e.ID,
		Title:      "Delivery submitted",
		Message:    "The seller marked the escrow delivered; confirm receipt to release funds",
		Link:       "/escrow/" + e.ID,
		Recipients: []string{e.BuyerID},
	})
	return e, nil
}

// UpdateTracking replaces proof fields on an already-delivered escrow
// without touching the status.
func (s *EscrowService) UpdateTracking(ctx context.Context, actorID, id string, in DeliveryInput) (models.Escrow, error) {
	e, err := s.escrows.GetByID(ctx, id)
	if err != nil {
		return models.Escrow{}, err
	}
	if actorID != e.SellerID {
		return models.Escrow{}, apperr.Forbidden("only the seller can update tracking")
	}

	proof := models.DeliveryProof{
		TrackingNumber: in.TrackingNumber,
		Carrier:        in.Carrier,
		Notes:          in.Notes,
		Evidence:       in.Evidence,
		SubmittedAt:    time.Now().UTC(),
	}
	if e.Delivery != nil {
		proof.SubmittedAt = e.Delivery.SubmittedAt
		if proof.Notes == "" {
			proof.Notes = e.Delivery.Notes
		}
		if len(proof.Evidence) == 0 {
			proof.Evidence = e.Delivery.Evidence
		}
	}
	return s.escrows.UpdateDeliveryProof(ctx, id, proof)
}

// ConfirmReceipt is the buyer releasing funds: delivered -> completed.
func (s *EscrowService) ConfirmReceipt(ctx context.Context, actorID, id string) (models.Escrow, error) {
	e, err := s.escrows.GetByID(ctx, id)
	if err != nil {
		return models.Escrow{}, err
	}
	if actorID != e.BuyerID {
		return models.Escrow{}, apperr.Forbidden("only the buyer can confirm receipt")
	}

	e, err = s.transition(ctx, repo.StatusTransition{
		EscrowID: id,
		From:     []models.EscrowStatus{models.EscrowDelivered},
		To:       models.EscrowCompleted,
	}, actorID)
	if err != nil {
		return models.Escrow{}, err
	}
	s.complete(ctx, e, e.Amount)
	return e, nil
}

// AutoReleaseDue completes delivered escrows whose window has elapsed. A
// dispute raised between listing and transition loses nothing: the
// conditional update simply misses and the escrow is skipped.
func (s *EscrowService) AutoReleaseDue(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.autoReleaseWindow)
	due, err := s.escrows.ListAutoReleasable(ctx, cutoff, 100)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, e := range due {
		out, err := s.transition(ctx, repo.StatusTransition{
			EscrowID: e.ID,
			From:     []models.EscrowStatus{models.EscrowDelivered},
			To:       models.EscrowCompleted,
		}, "")
		if err != nil {
			if apperr.IsKind(err, apperr.KindConflict) {
				continue
			}
			return released, err
		}
		s.complete(ctx, out, out.Amount)
		released++
	}
	return released, nil
}

// RunAutoRelease drives AutoReleaseDue on a ticker until ctx is done.
func (s *EscrowService) RunAutoRelease(ctx context.Context, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			n, err := s.AutoReleaseDue(ctx)
			if err != nil {
				slog.Error("auto-release sweep", "err", err)
				continue
			}
			if n > 0 {
				slog.Info("auto-released escrows", "count", n)
			}
		}
	}
}

// complete runs the post-completion side effects: payout to the seller's
// primary bank account and the completion notification pair.
func (s *EscrowService) complete(ctx context.Context, e models.Escrow, releaseAmount int64) {
	s.recordPayout(ctx, e, releaseAmount)
	s.notifier.Dispatch(ctx, Event{
		Type:       models.NotifyEscrowCompleted,
		EscrowID:   e.ID,
		Amount:     &e.Amount,
		Title:      "Escrow completed",
		Message:    "The escrow completed and funds were released to the seller",
		Link:       "/escrow/" + e.ID,
		Recipients: []string{e.BuyerID, e.SellerID},
	})
}

// recordPayout is best-effort: a seller without a primary bank account does
// not block completion, the payout is simply not scheduled yet.
func (s *EscrowService) recordPayout(ctx context.Context, e models.Escrow, amount int64) {
	if amount <= 0 {
		return
	}
	acct, err := s.banks.GetPrimary(ctx, e.SellerID)
	if err != nil {
		slog.Warn("payout skipped: no primary bank account", "escrow", e.ID, "seller", e.SellerID, "err", err)
		return
	}
	p, err := s.payouts.Create(ctx, models.Payout{
		EscrowID:      e.ID,
		UserID:        e.SellerID,
		BankAccountID: acct.ID,
		Amount:        amount,
		Currency:      e.Currency,
	})
	if err != nil {
		slog.Error("payout record failed", "escrow", e.ID, "err", err)
		return
	}
	s.notifier.Dispatch(ctx, Event{
		Type:       models.NotifyPayoutSent,
		EscrowID:   e.ID,
		Amount:     &p.Amount,
		Title:      "Payout scheduled",
		Message:    fmt.Sprintf("A payout to %s %s was scheduled", acct.BankName, acct.AccountNumber),
		Recipients: []string{e.SellerID},
	})
}

// transition funnels every guarded status change through one place so the
// audit trail and metrics stay consistent.
func (s *EscrowService) transition(ctx context.Context, t repo.StatusTransition, actorID string) (models.Escrow, error) {
	e, err := s.escrows.Transition(ctx, t)
	if err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			metrics.EscrowTransitionConflicts.Inc()
		}
		return models.Escrow{}, err
	}
	metrics.EscrowTransitionsTotal.WithLabelValues(string(t.To)).Inc()
	s.auditLog(ctx, e.ID, actorID, "status_"+string(t.To), map[string]any{"status": t.To})
	return e, nil
}

func (s *EscrowService) auditLog(ctx context.Context, escrowID, actorID, action string, details map[string]any) {
	l := models.AuditLog{
		EntityType: "escrow",
		EntityID:   &escrowID,
		Action:     action,
		Details:    details,
	}
	if actorID != "" {
		l.ActorID = &actorID
	}
	if err := s.audit.Create(ctx, l); err != nil {
		slog.Error("audit write failed", "escrow", escrowID, "action", action, "err", err)
	}
}
