package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/lockstead/authgate/internal/auth/domain"
	"github.com/lockstead/authgate/internal/auth/store"
)

type usersRepo struct {
	db dbtx
}

const accountColumns = `id, username, email, first_name, last_name, phone, role, secret, enabled, created_at, updated_at`

func scanAccount(row *sql.Row) (domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.FirstName, &a.LastName,
		&a.Phone, &a.Role, &a.Secret, &a.Enabled, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (r *usersRepo) FindByID(ctx context.Context, accountID string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, accountID)
	return scanAccount(row)
}

func (r *usersRepo) FindByUsername(ctx context.Context, username string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ?`,
		strings.ToLower(username))
	return scanAccount(row)
}

func (r *usersRepo) FindByUsernameOrEmail(ctx context.Context, username, email string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ? OR email = ?`,
		strings.ToLower(username), email)
	return scanAccount(row)
}

func (r *usersRepo) Create(ctx context.Context, a domain.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, strings.ToLower(a.Username), a.Email, a.FirstName, a.LastName,
		a.Phone, a.Role, a.Secret, a.Enabled, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *usersRepo) SetEnabled(ctx context.Context, accountID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET enabled = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), accountID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) SetSecret(ctx context.Context, accountID, secret string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET secret = ?, updated_at = ? WHERE id = ?`,
		secret, time.Now().UTC(), accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *usersRepo) Delete(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, accountID)
	return err
}

func (r *usersRepo) DeleteDisabledBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM accounts WHERE enabled = 0 AND created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// isUniqueViolation detects sqlite's UNIQUE constraint error without
// depending on driver-specific error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
