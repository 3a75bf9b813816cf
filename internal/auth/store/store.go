package store

import (
	"context"
	"errors"
	"time"

	"github.com/lockstead/authgate/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Users() Users
	Confirmations() Confirmations
	Registrations() Registrations

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction; rollback on error, commit on nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// FindByID returns an account by its opaque public id.
	FindByID(ctx context.Context, accountID string) (domain.Account, error)

	// FindByUsername looks up by the case-folded username.
	FindByUsername(ctx context.Context, username string) (domain.Account, error)

	// FindByUsernameOrEmail is the duplicate check used during registration.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (domain.Account, error)

	// Create inserts a new account. Returns ErrAlreadyExists on a
	// username/email uniqueness violation.
	Create(ctx context.Context, a domain.Account) error

	// SetEnabled flips the account to enabled.
	SetEnabled(ctx context.Context, accountID string) error

	// SetSecret replaces the stored secret and reports how many rows changed.
	SetSecret(ctx context.Context, accountID, secret string) (int64, error)

	// Delete removes a single account.
	Delete(ctx context.Context, accountID string) error

	// DeleteDisabledBefore removes accounts that never activated and were
	// created before the cutoff. Returns the number of rows removed.
	DeleteDisabledBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Confirmations interface {
	// CreateIfAbsent inserts the record unless one already exists for the
	// account. Reports whether this call created the record; false means a
	// live record was already present.
	CreateIfAbsent(ctx context.Context, r domain.ConfirmationRecord) (bool, error)

	// FindByAccountID returns the live record for an account.
	FindByAccountID(ctx context.Context, accountID string) (domain.ConfirmationRecord, error)

	// FindByCode returns the record holding the given code (reset flows,
	// where the caller is identified only by code).
	FindByCode(ctx context.Context, code string) (domain.ConfirmationRecord, error)

	// Update persists retries and blocked_until for an existing record.
	Update(ctx context.Context, r domain.ConfirmationRecord) error

	// Delete removes the record for an account. Deleting an absent record is
	// not an error.
	Delete(ctx context.Context, accountID string) error

	// DeleteExpiredBefore removes every record whose expiry has passed.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Registrations interface {
	// Create stages a pending registration. Returns ErrAlreadyExists if the
	// activation code is already taken.
	Create(ctx context.Context, p domain.PendingRegistration) error

	// FindByCode is a non-destructive lookup.
	FindByCode(ctx context.Context, code string) (domain.PendingRegistration, error)

	// Delete consumes a staged entry. Deleting an absent entry is not an error.
	Delete(ctx context.Context, code string) error

	// DeleteStaleBefore removes entries staged before the cutoff.
	DeleteStaleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
