package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/models"
	"github.com/tradeshield/escrow-backend/internal/repository"
)

type escrowsRepo struct{ pool *pgxpool.Pool }

const escrowCols = `id, buyer_id, seller_id, description, amount, currency, payment_method, status,
	delivery, dispute, resolution, created_at, funded_at, delivered_at, completed_at, resolved_at`

func (r *escrowsRepo) Create(ctx context.Context, e models.Escrow) (models.Escrow, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO escrows (id, buyer_id, seller_id, description, amount, currency, payment_method, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+escrowCols,
		e.ID, e.BuyerID, e.SellerID, e.Description, e.Amount, e.Currency, e.PaymentMethod, models.EscrowCreated,
	)
	return scanEscrow(row)
}

func (r *escrowsRepo) GetByID(ctx context.Context, id string) (models.Escrow, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+escrowCols+` FROM escrows WHERE id=$1`, id)
	e, err := scanEscrow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Escrow{}, apperr.NotFound("escrow not found")
	}
	return e, err
}

func (r *escrowsRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Escrow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+escrowCols+` FROM escrows
		WHERE buyer_id=$1 OR seller_id=$1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("escrows: list: %w", err)
	}
	defer rows.Close()
	return collectEscrows(rows)
}

// Transition applies the guarded status change as one conditional UPDATE so
// concurrent conflicting requests cannot both pass the precondition.
func (r *escrowsRepo) Transition(ctx context.Context, t repository.StatusTransition) (models.Escrow, error) {
	set := []string{"status=$2"}
	args := []any{t.EscrowID, t.To}

	switch t.To {
	case models.EscrowFunded:
		set = append(set, "funded_at=now()")
	case models.EscrowDelivered:
		set = append(set, "delivered_at=now()")
	case models.EscrowCompleted:
		set = append(set, "completed_at=now()")
	}
	if t.Resolution != nil {
		set = append(set, "resolved_at=now()")
		args = append(args, mustJSON(t.Resolution))
		set = append(set, fmt.Sprintf("resolution=$%d", len(args)))
	}
	if t.Delivery != nil {
		args = append(args, mustJSON(t.Delivery))
		set = append(set, fmt.Sprintf("delivery=$%d", len(args)))
	}
	if t.Dispute != nil {
		args = append(args, mustJSON(t.Dispute))
		set = append(set, fmt.Sprintf("dispute=$%d", len(args)))
	}

	from := make([]string, len(t.From))
	for i, s := range t.From {
		from[i] = string(s)
	}
	args = append(args, from)

	q := fmt.Sprintf(`UPDATE escrows SET %s WHERE id=$1 AND status = ANY($%d) RETURNING %s`,
		strings.Join(set, ", "), len(args), escrowCols)

	e, err := scanEscrow(r.pool.QueryRow(ctx, q, args...))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Escrow{}, fmt.Errorf("escrows: transition: %w", err)
	}

	// Zero rows: distinguish an unknown id from a status precondition miss.
	var current string
	if err := r.pool.QueryRow(ctx, `SELECT status FROM escrows WHERE id=$1`, t.EscrowID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Escrow{}, apperr.NotFound("escrow not found")
		}
		return models.Escrow{}, fmt.Errorf("escrows: transition status fetch: %w", err)
	}
	return models.Escrow{}, apperr.Conflict(fmt.Sprintf("escrow is %s, cannot move to %s", current, t.To))
}

func (r *escrowsRepo) UpdateDeliveryProof(ctx context.Context, id string, proof models.DeliveryProof) (models.Escrow, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE escrows SET delivery=$2 WHERE id=$1 AND status=$3
		RETURNING `+escrowCols,
		id, mustJSON(proof), models.EscrowDelivered,
	)
	e, err := scanEscrow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Escrow{}, r.noRowsReason(ctx, id, "delivery proof update requires a delivered escrow")
	}
	return e, err
}

func (r *escrowsRepo) AppendDisputeResponse(ctx context.Context, id string, resp models.DisputeResponse) (models.Escrow, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE escrows
		SET dispute = jsonb_set(dispute, '{responses}', coalesce(dispute->'responses', '[]'::jsonb) || $2::jsonb)
		WHERE id=$1 AND status=$3 AND dispute IS NOT NULL
		RETURNING `+escrowCols,
		id, mustJSON(resp), models.EscrowDisputed,
	)
	e, err := scanEscrow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Escrow{}, r.noRowsReason(ctx, id, "escrow has no open dispute")
	}
	return e, err
}

func (r *escrowsRepo) ListAutoReleasable(ctx context.Context, cutoff time.Time, limit int) ([]models.Escrow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+escrowCols+` FROM escrows
		WHERE status=$1 AND delivered_at < $2
		ORDER BY delivered_at ASC
		LIMIT $3`,
		models.EscrowDelivered, cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("escrows: auto-releasable: %w", err)
	}
	defer rows.Close()
	return collectEscrows(rows)
}

func (r *escrowsRepo) noRowsReason(ctx context.Context, id, conflictMsg string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM escrows WHERE id=$1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("escrows: existence check: %w", err)
	}
	if !exists {
		return apperr.NotFound("escrow not found")
	}
	return apperr.Conflict(conflictMsg)
}

func scanEscrow(row pgx.Row) (models.Escrow, error) {
	var (
		e                             models.Escrow
		delivery, dispute, resolution []byte
	)
	err := row.Scan(&e.ID, &e.BuyerID, &e.SellerID, &e.Description, &e.Amount, &e.Currency, &e.PaymentMethod, &e.Status,
		&delivery, &dispute, &resolution, &e.CreatedAt, &e.FundedAt, &e.DeliveredAt, &e.CompletedAt, &e.ResolvedAt)
	if err != nil {
		return models.Escrow{}, err
	}
	if delivery != nil {
		e.Delivery = &models.DeliveryProof{}
		if err := json.Unmarshal(delivery, e.Delivery); err != nil {
			return models.Escrow{}, fmt.Errorf("escrows: decode delivery: %w", err)
		}
	}
	if dispute != nil {
		e.Dispute = &models.Dispute{}
		if err := json.Unmarshal(dispute, e.Dispute); err != nil {
			return models.Escrow{}, fmt.Errorf("escrows: decode dispute: %w", err)
		}
	}
	if resolution != nil {
		e.Resolution = &models.Resolution{}
		if err := json.Unmarshal(resolution, e.Resolution); err != nil {
			return models.Escrow{}, fmt.Errorf("escrows: decode resolution: %w", err)
		}
	}
	return e, nil
}

func collectEscrows(rows pgx.Rows) ([]models.Escrow, error) {
	out := make([]models.Escrow, 0, 16)
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, fmt.Errorf("escrows: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
