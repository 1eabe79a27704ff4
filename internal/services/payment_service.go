package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/metrics"
	"github.com/tradeshield/escrow-backend/internal/models"
	"github.com/tradeshield/escrow-backend/internal/payments"
	repo "github.com/tradeshield/escrow-backend/internal/repository"
)

// escrowFunder is the slice of EscrowService the payment bridge needs.
type escrowFunder interface {
	MarkFunded(ctx context.Context, id string) (models.Escrow, error)
}

// PaymentService bridges the external processor to the escrow lifecycle.
// Verification is idempotent: the payment row's pending->confirmed update is
// the gate, so replaying a reference cannot double-transition the escrow.
type PaymentService struct {
	payments repo.Payments
	escrows  repo.Escrows
	provider payments.Provider
	funder   escrowFunder
}

func NewPaymentService(p repo.Payments, e repo.Escrows, provider payments.Provider, funder escrowFunder) *PaymentService {
	return &PaymentService{payments: p, escrows: e, provider: provider, funder: funder}
}

// Initialize registers a pending charge for an escrow and hands back the
// provider checkout URL.
func (s *PaymentService) Initialize(ctx context.Context, actorID, escrowID string) (models.Payment, error) {
	e, err := s.escrows.GetByID(ctx, escrowID)
	if err != nil {
		return models.Payment{}, err
	}
	if actorID != e.BuyerID {
		return models.Payment{}, apperr.Forbidden("only the buyer can fund the escrow")
	}
	if e.Status != models.EscrowCreated && e.Status != models.EscrowAccepted {
		return models.Payment{}, apperr.Conflict("escrow is not awaiting funding")
	}

	ref := uuid.NewString()
	checkoutURL, err := s.provider.Initialize(ctx, ref, e.Amount, string(e.Currency))
	if err != nil {
		return models.Payment{}, err
	}

	return s.payments.Create(ctx, models.Payment{
		EscrowID:    e.ID,
		PayerID:     actorID,
		Reference:   ref,
		Amount:      e.Amount,
		Currency:    e.Currency,
		Method:      e.PaymentMethod,
		CheckoutURL: checkoutURL,
	})
}

// Verify confirms a provider reference and funds the escrow. Provider
// failures are retryable and change nothing; a second verification of the
// same reference returns the stored result without a second transition or
// notification fan-out.
func (s *PaymentService) Verify(ctx context.Context, reference string) (models.Payment, error) {
	p, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		return models.Payment{}, err
	}
	if p.Status == models.PaymentConfirmed {
		metrics.PaymentVerificationsTotal.WithLabelValues("replay").Inc()
		return p, nil
	}

	res, err := s.provider.VerifyReference(ctx, reference)
	if err != nil {
		metrics.PaymentVerificationsTotal.WithLabelValues("upstream_error").Inc()
		return models.Payment{}, err
	}
	if !res.Paid {
		metrics.PaymentVerificationsTotal.WithLabelValues("rejected").Inc()
		return models.Payment{}, apperr.Conflict("provider has not confirmed this payment")
	}
	if res.Amount != p.Amount || res.Currency != string(p.Currency) {
		metrics.PaymentVerificationsTotal.WithLabelValues("rejected").Inc()
		return models.Payment{}, apperr.Conflict("provider amount does not match the escrow")
	}

	p, fresh, err := s.payments.Confirm(ctx, reference)
	if err != nil {
		return models.Payment{}, err
	}
	if !fresh {
		// A concurrent verify won the confirm; the escrow transition is
		// theirs.
		metrics.PaymentVerificationsTotal.WithLabelValues("replay").Inc()
		return p, nil
	}

	if _, err := s.funder.MarkFunded(ctx, p.EscrowID); err != nil {
		// The payment stays confirmed: there is no cross-service rollback,
		// and the conflict means the escrow already moved on.
		if apperr.IsKind(err, apperr.KindConflict) {
			slog.Warn("payment confirmed but escrow not fundable", "escrow", p.EscrowID, "reference", reference, "err", err)
			metrics.PaymentVerificationsTotal.WithLabelValues("confirmed").Inc()
			return p, nil
		}
		return models.Payment{}, err
	}
	metrics.PaymentVerificationsTotal.WithLabelValues("confirmed").Inc()
	return p, nil
}
