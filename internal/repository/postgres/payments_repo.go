package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/models"
)

type paymentsRepo struct{ pool *pgxpool.Pool }

const paymentCols = `id, escrow_id, payer_id, reference, amount, currency, method, status, checkout_url, created_at, confirmed_at`

func (r *paymentsRepo) Create(ctx context.Context, p models.Payment) (models.Payment, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO payments (id, escrow_id, payer_id, reference, amount, currency, method, status, checkout_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+paymentCols,
		p.ID, p.EscrowID, p.PayerID, p.Reference, p.Amount, p.Currency, p.Method, models.PaymentPending, p.CheckoutURL,
	)
	return scanPayment(row)
}

func (r *paymentsRepo) GetByReference(ctx context.Context, ref string) (models.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE reference=$1`, ref)
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Payment{}, apperr.NotFound("payment not found")
	}
	return p, err
}

// Confirm is the idempotency gate for payment verification: only the caller
// that wins the pending->confirmed update observes freshly=true.
func (r *paymentsRepo) Confirm(ctx context.Context, ref string) (models.Payment, bool, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE payments SET status=$2, confirmed_at=now()
		WHERE reference=$1 AND status=$3
		RETURNING `+paymentCols,
		ref, models.PaymentConfirmed, models.PaymentPending,
	)
	p, err := scanPayment(row)
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Payment{}, false, fmt.Errorf("payments: confirm: %w", err)
	}

	p, err = r.GetByReference(ctx, ref)
	if err != nil {
		return models.Payment{}, false, err
	}
	if p.Status == models.PaymentConfirmed {
		return p, false, nil
	}
	return models.Payment{}, false, apperr.Conflict(fmt.Sprintf("payment is %s", p.Status))
}

func (r *paymentsRepo) MarkFailed(ctx context.Context, ref string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments SET status=$2 WHERE reference=$1 AND status=$3`,
		ref, models.PaymentFailed, models.PaymentPending,
	)
	return err
}

func scanPayment(row pgx.Row) (models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.EscrowID, &p.PayerID, &p.Reference, &p.Amount, &p.Currency, &p.Method, &p.Status, &p.CheckoutURL, &p.CreatedAt, &p.ConfirmedAt)
	return p, err
}
