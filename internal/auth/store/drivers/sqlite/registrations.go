package sqlite

import (
	"context"
	"time"

	"github.com/lockstead/authgate/internal/auth/domain"
	"github.com/lockstead/authgate/internal/auth/store"
)

type registrationsRepo struct {
	db dbtx
}

const registrationColumns = `code, account_id, username, email, secret, created_at`

func (r *registrationsRepo) Create(ctx context.Context, p domain.PendingRegistration) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pending_registrations (`+registrationColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		p.Code, p.AccountID, p.Username, p.Email, p.Secret, p.CreatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *registrationsRepo) FindByCode(ctx context.Context, code string) (domain.PendingRegistration, error) {
	var p domain.PendingRegistration
	err := r.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM pending_registrations WHERE code = ?`, code,
	).Scan(&p.Code, &p.AccountID, &p.Username, &p.Email, &p.Secret, &p.CreatedAt)
	if err != nil {
		return domain.PendingRegistration{}, mapNotFound(err)
	}
	return p, nil
}

func (r *registrationsRepo) Delete(ctx context.Context, code string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_registrations WHERE code = ?`, code)
	return err
}

func (r *registrationsRepo) DeleteStaleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_registrations WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
