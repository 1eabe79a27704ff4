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

type bankAccountsRepo struct{ pool *pgxpool.Pool }

const bankCols = `id, user_id, bank_name, account_name, account_number, currency, is_primary, created_at`

func (r *bankAccountsRepo) Create(ctx context.Context, a models.BankAccount) (models.BankAccount, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.BankAccount{}, err
	}
	defer tx.Rollback(ctx)

	// First account for a user becomes the primary.
	var count int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM bank_accounts WHERE user_id=$1`, a.UserID).Scan(&count); err != nil {
		return models.BankAccount{}, fmt.Errorf("bank: count: %w", err)
	}
	a.IsPrimary = a.IsPrimary || count == 0
	if a.IsPrimary {
		if _, err := tx.Exec(ctx, `UPDATE bank_accounts SET is_primary=false WHERE user_id=$1`, a.UserID); err != nil {
			return models.BankAccount{}, fmt.Errorf("bank: demote primary: %w", err)
		}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO bank_accounts (id, user_id, bank_name, account_name, account_number, currency, is_primary)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+bankCols,
		a.ID, a.UserID, a.BankName, a.AccountName, a.AccountNumber, a.Currency, a.IsPrimary,
	)
	out, err := scanBankAccount(row)
	if err != nil {
		return models.BankAccount{}, fmt.Errorf("bank: create: %w", err)
	}
	return out, tx.Commit(ctx)
}

func (r *bankAccountsRepo) ListByUser(ctx context.Context, userID string) ([]models.BankAccount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bankCols+` FROM bank_accounts
		WHERE user_id=$1 ORDER BY is_primary DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("bank: list: %w", err)
	}
	defer rows.Close()

	out := make([]models.BankAccount, 0, 4)
	for rows.Next() {
		a, err := scanBankAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("bank: scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *bankAccountsRepo) GetPrimary(ctx context.Context, userID string) (models.BankAccount, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bankCols+` FROM bank_accounts WHERE user_id=$1 AND is_primary=true`, userID)
	a, err := scanBankAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.BankAccount{}, apperr.NotFound("no primary bank account")
	}
	return a, err
}

func (r *bankAccountsRepo) SetPrimary(ctx context.Context, userID, id string) (models.BankAccount, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.BankAccount{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE bank_accounts SET is_primary=false WHERE user_id=$1`, userID); err != nil {
		return models.BankAccount{}, fmt.Errorf("bank: demote primary: %w", err)
	}
	row := tx.QueryRow(ctx, `
		UPDATE bank_accounts SET is_primary=true WHERE id=$1 AND user_id=$2
		RETURNING `+bankCols, id, userID)
	a, err := scanBankAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.BankAccount{}, apperr.NotFound("bank account not found")
	}
	if err != nil {
		return models.BankAccount{}, fmt.Errorf("bank: set primary: %w", err)
	}
	return a, tx.Commit(ctx)
}

func (r *bankAccountsRepo) Delete(ctx context.Context, userID, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var wasPrimary bool
	err = tx.QueryRow(ctx, `
		DELETE FROM bank_accounts WHERE id=$1 AND user_id=$2 RETURNING is_primary`,
		id, userID,
	).Scan(&wasPrimary)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("bank account not found")
	}
	if err != nil {
		return fmt.Errorf("bank: delete: %w", err)
	}

	if wasPrimary {
		// Promote the most recently added remaining account.
		if _, err := tx.Exec(ctx, `
			UPDATE bank_accounts SET is_primary=true
			WHERE id = (SELECT id FROM bank_accounts WHERE user_id=$1 ORDER BY created_at DESC LIMIT 1)`,
			userID); err != nil {
			return fmt.Errorf("bank: promote: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func scanBankAccount(row pgx.Row) (models.BankAccount, error) {
	var a models.BankAccount
	err := row.Scan(&a.ID, &a.UserID, &a.BankName, &a.AccountName, &a.AccountNumber, &a.Currency, &a.IsPrimary, &a.CreatedAt)
	return a, err
}
