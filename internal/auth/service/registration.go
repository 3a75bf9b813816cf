package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lockstead/authgate/internal/auth/domain"
	"github.com/lockstead/authgate/internal/auth/store"
)

// DefaultRegistrationRetention is how long a staged, never-activated
// registration (and its disabled account) is kept before the sweep evicts it.
const DefaultRegistrationRetention = 24 * time.Hour

// RegistrationService stages just-created, still-disabled accounts under
// their one-time activation codes until they are confirmed or swept away.
// Entries are durable: a restart does not strand registrants.
type RegistrationService struct {
	Store     store.Store
	Retention time.Duration

	// Now is the clock used for staleness decisions. Overridable in tests.
	Now func() time.Time
}

func NewRegistrationService(st store.Store, retention time.Duration) *RegistrationService {
	if retention <= 0 {
		retention = DefaultRegistrationRetention
	}
	return &RegistrationService{Store: st, Retention: retention, Now: time.Now}
}

// Stage inserts a pending registration keyed by its activation code. A code
// collision is rejected with store.ErrAlreadyExists rather than silently
// overwriting; the caller regenerates and retries.
func (s *RegistrationService) Stage(ctx context.Context, code string, account domain.Account) error {
	return s.Store.Registrations().Create(ctx, domain.PendingRegistration{
		Code:      code,
		AccountID: account.ID,
		Username:  account.Username,
		Email:     account.Email,
		Secret:    account.Secret,
		CreatedAt: s.Now().UTC(),
	})
}

// Take is a non-destructive lookup by activation code.
func (s *RegistrationService) Take(ctx context.Context, code string) (domain.PendingRegistration, error) {
	return s.Store.Registrations().FindByCode(ctx, code)
}

// Consume removes the entry permanently; called only after a successful
// activation. Consuming an absent entry is a no-op.
func (s *RegistrationService) Consume(ctx context.Context, code string) error {
	return s.Store.Registrations().Delete(ctx, code)
}

// SweepStale evicts staged entries older than the retention horizon together
// with their never-activated accounts. Activated accounts are untouched:
// activation consumes the staged entry and flips enabled before the horizon
// could ever bite, and the account deletion is scoped to disabled rows.
func (s *RegistrationService) SweepStale(ctx context.Context) (entries, accounts int64, err error) {
	cutoff := s.Now().UTC().Add(-s.Retention)

	entries, err = s.Store.Registrations().DeleteStaleBefore(ctx, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete stale registrations: %w", err)
	}

	accounts, err = s.Store.Users().DeleteDisabledBefore(ctx, cutoff)
	if err != nil {
		return entries, 0, fmt.Errorf("failed to delete abandoned accounts: %w", err)
	}

	return entries, accounts, nil
}
