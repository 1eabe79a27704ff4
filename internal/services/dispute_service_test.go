package services

import (
	"context"
	"testing"

	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/models"
)

type disputeFixture struct {
	svc    *DisputeService
	escrow *escrowFixture
}

func newDisputeFixture(t *testing.T) *disputeFixture {
	t.Helper()
	ef := newEscrowFixture(t, "buyer", "seller")
	return &disputeFixture{
		svc:    NewDisputeService(ef.escrows, ef.payouts, ef.banks, ef.audit, ef.notifier),
		escrow: ef,
	}
}

// funded creates an escrow and walks it to funded.
func (f *disputeFixture) funded(t *testing.T) models.Escrow {
	t.Helper()
	ctx := context.Background()
	e := f.escrow.create(t, "buyer", "seller")
	if _, err := f.escrow.svc.MarkFunded(ctx, e.ID); err != nil {
		t.Fatalf("fund: %v", err)
	}
	e, _ = f.escrow.escrows.GetByID(ctx, e.ID)
	return e
}

func (f *disputeFixture) disputed(t *testing.T) models.Escrow {
	t.Helper()
	e := f.funded(t)
	out, err := f.svc.Raise(context.Background(), "buyer", RaiseDisputeInput{
		EscrowID: e.ID,
		Reason:   "item not as described",
	})
	if err != nil {
		t.Fatalf("raise dispute: %v", err)
	}
	return out
}

func TestDisputeRaise(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	e := f.funded(t)

	out, err := f.svc.Raise(ctx, "buyer", RaiseDisputeInput{
		EscrowID:    e.ID,
		Reason:      "item not as described",
		Description: "the guitar arrived with a cracked neck",
		Evidence:    []string{"https://img.example.com/crack.jpg"},
	})
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	if out.Status != models.EscrowDisputed {
		t.Fatalf("status = %s, want disputed", out.Status)
	}
	if out.Dispute == nil || out.Dispute.RaisedBy != "buyer" {
		t.Fatalf("dispute record = %+v", out.Dispute)
	}

	// The counterparty is told.
	if n := f.escrow.notifier.byType(models.NotifyDisputeRaised); len(n) != 1 || n[0].Recipients[0] != "seller" {
		t.Fatalf("dispute notification = %+v", n)
	}
}

func TestDisputeRaiseGuards(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()

	e := f.escrow.create(t, "buyer", "seller")
	// Escrow still created: nothing to freeze.
	if _, err := f.svc.Raise(ctx, "buyer", RaiseDisputeInput{EscrowID: e.ID, Reason: "x"}); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("raise on created err = %v, want conflict", err)
	}

	funded := f.funded(t)
	if _, err := f.svc.Raise(ctx, "stranger", RaiseDisputeInput{EscrowID: funded.ID, Reason: "x"}); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("stranger raise err = %v, want forbidden", err)
	}
	if _, err := f.svc.Raise(ctx, "buyer", RaiseDisputeInput{EscrowID: funded.ID}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("missing reason err = %v, want validation", err)
	}
}

func TestDisputeRespond(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	e := f.disputed(t)

	out, err := f.svc.Respond(ctx, "seller", e.ID, "the neck was fine when shipped")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if len(out.Dispute.Responses) != 1 || out.Dispute.Responses[0].UserID != "seller" {
		t.Fatalf("responses = %+v", out.Dispute.Responses)
	}

	if _, err := f.svc.Respond(ctx, "stranger", e.ID, "hi"); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("stranger respond err = %v, want forbidden", err)
	}
	if _, err := f.svc.Respond(ctx, "buyer", e.ID, ""); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("empty respond err = %v, want validation", err)
	}
}

func TestDisputeResolveRefund(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	e := f.disputed(t)

	out, err := f.svc.Resolve(ctx, "admin-1", e.ID, ResolveDisputeInput{Outcome: models.RefundToBuyer, Note: "clear damage"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out.Status != models.EscrowRefunded {
		t.Fatalf("status = %s, want refunded", out.Status)
	}
	r := out.Resolution
	if r == nil || r.RefundAmount != e.Amount || r.ReleaseAmount != 0 || r.ResolvedBy != "admin-1" {
		t.Fatalf("resolution = %+v", r)
	}
	if len(f.escrow.payouts.all()) != 0 {
		t.Fatal("full refund must not create a seller payout")
	}

	// Terminal: confirming receipt afterwards conflicts.
	if _, err := f.escrow.svc.ConfirmReceipt(ctx, "buyer", e.ID); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("confirm after refund err = %v, want conflict", err)
	}
	// And resolving twice conflicts too.
	if _, err := f.svc.Resolve(ctx, "admin-1", e.ID, ResolveDisputeInput{Outcome: models.RefundToBuyer}); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("second resolve err = %v, want conflict", err)
	}
}

func TestDisputeResolveRelease(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	e := f.disputed(t)
	if _, err := f.escrow.banks.Create(ctx, models.BankAccount{UserID: "seller", BankName: "First Bank", AccountNumber: "****1111", Currency: models.CurrencyUSD}); err != nil {
		t.Fatalf("bank account: %v", err)
	}

	out, err := f.svc.Resolve(ctx, "admin-1", e.ID, ResolveDisputeInput{Outcome: models.ReleaseToSeller})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out.Status != models.EscrowCompleted {
		t.Fatalf("status = %s, want completed", out.Status)
	}
	payouts := f.escrow.payouts.all()
	if len(payouts) != 1 || payouts[0].Amount != e.Amount || payouts[0].UserID != "seller" {
		t.Fatalf("payouts = %+v", payouts)
	}
	if n := f.escrow.notifier.byType(models.NotifyDisputeResolved); len(n) != 1 || len(n[0].Recipients) != 2 {
		t.Fatalf("resolution notification = %+v", n)
	}
}

func TestDisputeResolvePartial(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	e := f.disputed(t)
	if _, err := f.escrow.banks.Create(ctx, models.BankAccount{UserID: "seller", BankName: "First Bank", AccountNumber: "****1111", Currency: models.CurrencyUSD}); err != nil {
		t.Fatalf("bank account: %v", err)
	}

	partial := e.Amount / 4
	out, err := f.svc.Resolve(ctx, "admin-1", e.ID, ResolveDisputeInput{Outcome: models.PartialRefund, PartialAmount: partial})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out.Status != models.EscrowRefunded {
		t.Fatalf("status = %s, want refunded", out.Status)
	}
	r := out.Resolution
	if r.RefundAmount != partial || r.ReleaseAmount != e.Amount-partial {
		t.Fatalf("split = refund %d / release %d, want %d / %d", r.RefundAmount, r.ReleaseAmount, partial, e.Amount-partial)
	}
	if r.RefundAmount+r.ReleaseAmount != e.Amount {
		t.Fatalf("split does not sum to the escrow amount")
	}
	payouts := f.escrow.payouts.all()
	if len(payouts) != 1 || payouts[0].Amount != e.Amount-partial {
		t.Fatalf("payouts = %+v", payouts)
	}
}

func TestDisputeResolveValidation(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	e := f.disputed(t)

	cases := []struct {
		name string
		in   ResolveDisputeInput
	}{
		{"unknown outcome", ResolveDisputeInput{Outcome: "split_the_baby"}},
		{"partial zero", ResolveDisputeInput{Outcome: models.PartialRefund}},
		{"partial negative", ResolveDisputeInput{Outcome: models.PartialRefund, PartialAmount: -1}},
		{"partial overflow", ResolveDisputeInput{Outcome: models.PartialRefund, PartialAmount: e.Amount + 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Resolve(ctx, "admin-1", e.ID, tc.in); !apperr.IsKind(err, apperr.KindValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
		})
	}
}

func TestDisputeGet(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()

	plain := f.funded(t)
	if _, err := f.svc.Get(ctx, "buyer", models.RoleUser, plain.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("get without dispute err = %v, want not found", err)
	}

	e := f.disputed(t)
	if _, err := f.svc.Get(ctx, "buyer", models.RoleUser, e.ID); err != nil {
		t.Fatalf("party get: %v", err)
	}
	if _, err := f.svc.Get(ctx, "stranger", models.RoleUser, e.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("stranger get err = %v, want forbidden", err)
	}
	if _, err := f.svc.Get(ctx, "someone", models.RoleAdmin, e.ID); err != nil {
		t.Fatalf("admin get: %v", err)
	}
}
