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
	"github.com/tradeshield/escrow-backend/internal/repository"
)

type notificationsRepo struct{ pool *pgxpool.Pool }

const notificationCols = `id, user_id, type, title, message, link, escrow_id, amount, is_read, created_at, read_at`

func (r *notificationsRepo) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, link, escrow_id, amount)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+notificationCols,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Link, n.EscrowID, n.Amount,
	)
	return scanNotification(row)
}

func (r *notificationsRepo) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) (repository.NotificationPage, error) {
	var page repository.NotificationPage

	q := `SELECT ` + notificationCols + ` FROM notifications WHERE user_id=$1`
	if unreadOnly {
		q += ` AND is_read=false`
	}
	q += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return page, fmt.Errorf("notifications: list: %w", err)
	}
	defer rows.Close()

	page.Items = make([]models.Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return page, fmt.Errorf("notifications: scan: %w", err)
		}
		page.Items = append(page.Items, n)
	}
	if err := rows.Err(); err != nil {
		return page, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE is_read=false)
		FROM notifications WHERE user_id=$1`, userID,
	).Scan(&page.Total, &page.UnreadCount)
	if err != nil {
		return page, fmt.Errorf("notifications: counts: %w", err)
	}
	return page, nil
}

func (r *notificationsRepo) MarkRead(ctx context.Context, userID, id string) (models.Notification, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE notifications SET is_read=true, read_at=coalesce(read_at, now())
		WHERE id=$1 AND user_id=$2
		RETURNING `+notificationCols,
		id, userID,
	)
	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Ownership-scoped: a foreign id is indistinguishable from a
		// missing one.
		return models.Notification{}, apperr.NotFound("notification not found")
	}
	return n, err
}

func (r *notificationsRepo) MarkAllRead(ctx context.Context, userID string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET is_read=true, read_at=coalesce(read_at, now())
		WHERE user_id=$1 AND is_read=false`, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *notificationsRepo) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification not found")
	}
	return nil
}

func (r *notificationsRepo) DeleteRead(ctx context.Context, userID string) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE user_id=$1 AND is_read=true`, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *notificationsRepo) GetSettings(ctx context.Context, userID string) (models.NotificationSettings, error) {
	var s models.NotificationSettings
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, email_enabled, push_enabled, updated_at
		FROM notification_settings WHERE user_id=$1`, userID,
	).Scan(&s.UserID, &s.EmailEnabled, &s.PushEnabled, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Defaults until the user writes a preference.
		return models.NotificationSettings{UserID: userID, EmailEnabled: true, PushEnabled: true}, nil
	}
	return s, err
}

func (r *notificationsRepo) UpdateSettings(ctx context.Context, s models.NotificationSettings) (models.NotificationSettings, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notification_settings (user_id, email_enabled, push_enabled, updated_at)
		VALUES ($1,$2,$3,now())
		ON CONFLICT (user_id) DO UPDATE
		SET email_enabled=EXCLUDED.email_enabled, push_enabled=EXCLUDED.push_enabled, updated_at=now()
		RETURNING user_id, email_enabled, push_enabled, updated_at`,
		s.UserID, s.EmailEnabled, s.PushEnabled,
	).Scan(&s.UserID, &s.EmailEnabled, &s.PushEnabled, &s.UpdatedAt)
	return s, err
}

func scanNotification(row pgx.Row) (models.Notification, error) {
	var n models.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Link, &n.EscrowID, &n.Amount, &n.IsRead, &n.CreatedAt, &n.ReadAt)
	return n, err
}
