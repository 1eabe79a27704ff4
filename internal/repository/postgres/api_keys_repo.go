package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/models"
)

type apiKeysRepo struct{ pool *pgxpool.Pool }

const apiKeyCols = `id, user_id, name, prefix, last4, secret_hash, environment, permissions, status,
	rate_limit_per_min, window_count, window_reset_at, created_at, last_used_at, revoked_at`

func (r *apiKeysRepo) Create(ctx context.Context, k models.APIKey) (models.APIKey, error) {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO api_keys (id, user_id, name, prefix, last4, secret_hash, environment, permissions, status, rate_limit_per_min, window_reset_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
		RETURNING `+apiKeyCols,
		k.ID, k.UserID, k.Name, k.Prefix, k.Last4, k.SecretHash, k.Environment, k.Permissions, models.APIKeyActive, k.RateLimitPerMin,
	)
	return scanAPIKey(row)
}

func (r *apiKeysRepo) ListByUser(ctx context.Context, userID string) ([]models.APIKey, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apiKeyCols+` FROM api_keys WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("apikeys: list: %w", err)
	}
	defer rows.Close()

	out := make([]models.APIKey, 0, 4)
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("apikeys: scan: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *apiKeysRepo) GetByHash(ctx context.Context, secretHash string) (models.APIKey, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+apiKeyCols+` FROM api_keys WHERE secret_hash=$1`, secretHash)
	k, err := scanAPIKey(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.APIKey{}, apperr.Unauthorized("unknown api key")
	}
	return k, err
}

func (r *apiKeysRepo) Revoke(ctx context.Context, userID, id string) (models.APIKey, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE api_keys SET status=$3, revoked_at=now()
		WHERE id=$1 AND user_id=$2 AND status=$4
		RETURNING `+apiKeyCols,
		id, userID, models.APIKeyRevoked, models.APIKeyActive,
	)
	k, err := scanAPIKey(row)
	if err == nil {
		return k, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.APIKey{}, fmt.Errorf("apikeys: revoke: %w", err)
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM api_keys WHERE id=$1 AND user_id=$2)`, id, userID).Scan(&exists); err != nil {
		return models.APIKey{}, err
	}
	if !exists {
		return models.APIKey{}, apperr.NotFound("api key not found")
	}
	return models.APIKey{}, apperr.Conflict("api key already revoked")
}

// TouchUsage advances the rate-limit window in a single statement: an
// elapsed window restarts the count, otherwise it increments, and the
// returned count decides whether the call is allowed.
func (r *apiKeysRepo) TouchUsage(ctx context.Context, id string, windowSize time.Duration) (bool, error) {
	var count, limit int
	err := r.pool.QueryRow(ctx, `
		UPDATE api_keys
		SET window_count = CASE WHEN window_reset_at <= now() THEN 1 ELSE window_count + 1 END,
		    window_reset_at = CASE WHEN window_reset_at <= now() THEN now() + $2 ELSE window_reset_at END,
		    last_used_at = now()
		WHERE id=$1
		RETURNING window_count, rate_limit_per_min`,
		id, windowSize,
	).Scan(&count, &limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, apperr.NotFound("api key not found")
	}
	if err != nil {
		return false, fmt.Errorf("apikeys: touch: %w", err)
	}
	return limit <= 0 || count <= limit, nil
}

func scanAPIKey(row pgx.Row) (models.APIKey, error) {
	var k models.APIKey
	err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.Prefix, &k.Last4, &k.SecretHash, &k.Environment, &k.Permissions, &k.Status,
		&k.RateLimitPerMin, &k.WindowCount, &k.WindowResetAt, &k.CreatedAt, &k.LastUsedAt, &k.RevokedAt)
	return k, err
}
