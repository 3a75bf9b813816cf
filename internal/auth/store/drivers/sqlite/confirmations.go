package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/lockstead/authgate/internal/auth/domain"
)

type confirmationsRepo struct {
	db dbtx
}

const confirmationColumns = `account_id, code, retries, blocked_until, expires_at, created_at`

func scanConfirmation(row *sql.Row) (domain.ConfirmationRecord, error) {
	var (
		rec     domain.ConfirmationRecord
		blocked sql.NullTime
	)
	err := row.Scan(&rec.AccountID, &rec.Code, &rec.Retries, &blocked, &rec.ExpiresAt, &rec.CreatedAt)
	if err != nil {
		return domain.ConfirmationRecord{}, mapNotFound(err)
	}
	rec.BlockedUntil = mapNullTimePtr(blocked)
	return rec, nil
}

// CreateIfAbsent is the single-flight issuance primitive: INSERT OR IGNORE
// against the account_id primary key means exactly one of any number of
// concurrent issuers creates the record; the rest observe created=false.
func (r *confirmationsRepo) CreateIfAbsent(ctx context.Context, rec domain.ConfirmationRecord) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO confirmations (`+confirmationColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.AccountID, rec.Code, rec.Retries, mapOptionalTime(rec.BlockedUntil),
		rec.ExpiresAt, rec.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *confirmationsRepo) FindByAccountID(ctx context.Context, accountID string) (domain.ConfirmationRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+confirmationColumns+` FROM confirmations WHERE account_id = ?`, accountID)
	return scanConfirmation(row)
}

func (r *confirmationsRepo) FindByCode(ctx context.Context, code string) (domain.ConfirmationRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+confirmationColumns+` FROM confirmations WHERE code = ?`, code)
	return scanConfirmation(row)
}

func (r *confirmationsRepo) Update(ctx context.Context, rec domain.ConfirmationRecord) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE confirmations SET retries = ?, blocked_until = ? WHERE account_id = ?`,
		rec.Retries, mapOptionalTime(rec.BlockedUntil), rec.AccountID)
	return err
}

func (r *confirmationsRepo) Delete(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM confirmations WHERE account_id = ?`, accountID)
	return err
}

func (r *confirmationsRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM confirmations WHERE expires_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
