package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeshield/escrow-backend/internal/models"
)

type payoutsRepo struct{ pool *pgxpool.Pool }

func (r *payoutsRepo) Create(ctx context.Context, p models.Payout) (models.Payout, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO payouts (id, escrow_id, user_id, bank_account_id, amount, currency, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, escrow_id, user_id, bank_account_id, amount, currency, status, created_at`,
		p.ID, p.EscrowID, p.UserID, p.BankAccountID, p.Amount, p.Currency, models.PayoutPending,
	).Scan(&p.ID, &p.EscrowID, &p.UserID, &p.BankAccountID, &p.Amount, &p.Currency, &p.Status, &p.CreatedAt)
	return p, err
}

func (r *payoutsRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Payout, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, escrow_id, user_id, bank_account_id, amount, currency, status, created_at
		FROM payouts WHERE user_id=$1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("payouts: list: %w", err)
	}
	defer rows.Close()

	out := make([]models.Payout, 0, limit)
	for rows.Next() {
		var p models.Payout
		if err := rows.Scan(&p.ID, &p.EscrowID, &p.UserID, &p.BankAccountID, &p.Amount, &p.Currency, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("payouts: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
