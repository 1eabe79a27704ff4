package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/models"
)

type kycRepo struct{ pool *pgxpool.Pool }

const kycCols = `id, user_id, tier, status, documents, reviewer_id, note, created_at, updated_at`

func (r *kycRepo) GetByUser(ctx context.Context, userID string) (models.KYCVerification, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+kycCols+` FROM kyc_verifications WHERE user_id=$1`, userID)
	v, err := scanKYC(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// No submission yet reads as an unverified record.
		return models.KYCVerification{UserID: userID, Tier: models.KYCTierBasic, Status: models.KYCUnverified}, nil
	}
	return v, err
}

func (r *kycRepo) Submit(ctx context.Context, userID string, tier models.KYCTier, docs []models.KYCDocument) (models.KYCVerification, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO kyc_verifications (id, user_id, tier, status, documents)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (user_id) DO UPDATE
		SET tier=EXCLUDED.tier, status=$4, documents=EXCLUDED.documents, reviewer_id=NULL, note='', updated_at=now()
		WHERE kyc_verifications.status IN ('unverified','rejected')
		RETURNING `+kycCols,
		uuid.NewString(), userID, tier, models.KYCPending, mustJSON(docs),
	)
	v, err := scanKYC(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.KYCVerification{}, apperr.Conflict("verification already in progress")
	}
	return v, err
}

func (r *kycRepo) AdvanceStatus(ctx context.Context, userID string, from []models.KYCStatus, to models.KYCStatus, reviewerID, note string) (models.KYCVerification, error) {
	fromStr := make([]string, len(from))
	for i, s := range from {
		fromStr[i] = string(s)
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE kyc_verifications
		SET status=$2, reviewer_id=$3, note=$4, updated_at=now()
		WHERE user_id=$1 AND status = ANY($5)
		RETURNING `+kycCols,
		userID, to, reviewerID, note, fromStr,
	)
	v, err := scanKYC(row)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.KYCVerification{}, fmt.Errorf("kyc: advance: %w", err)
	}

	var current string
	if err := r.pool.QueryRow(ctx, `SELECT status FROM kyc_verifications WHERE user_id=$1`, userID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.KYCVerification{}, apperr.NotFound("no verification submitted")
		}
		return models.KYCVerification{}, fmt.Errorf("kyc: status fetch: %w", err)
	}
	return models.KYCVerification{}, apperr.Conflict(fmt.Sprintf("verification is %s, cannot move to %s", current, to))
}

func (r *kycRepo) ListByStatus(ctx context.Context, status models.KYCStatus, limit, offset int) ([]models.KYCVerification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+kycCols+` FROM kyc_verifications
		WHERE status=$1 ORDER BY updated_at ASC LIMIT $2 OFFSET $3`,
		status, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("kyc: list: %w", err)
	}
	defer rows.Close()

	out := make([]models.KYCVerification, 0, limit)
	for rows.Next() {
		v, err := scanKYC(rows)
		if err != nil {
			return nil, fmt.Errorf("kyc: scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanKYC(row pgx.Row) (models.KYCVerification, error) {
	var (
		v    models.KYCVerification
		docs []byte
	)
	err := row.Scan(&v.ID, &v.UserID, &v.Tier, &v.Status, &docs, &v.ReviewerID, &v.Note, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return models.KYCVerification{}, err
	}
	if docs != nil {
		if err := json.Unmarshal(docs, &v.Documents); err != nil {
			return models.KYCVerification{}, fmt.Errorf("kyc: decode documents: %w", err)
		}
	}
	return v, nil
}
