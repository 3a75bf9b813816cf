package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lockstead/authgate/internal/auth/domain"
	"github.com/lockstead/authgate/internal/auth/store"
	"github.com/lockstead/authgate/pkg/cryptox"
)

const (
	// DefaultCodeLifetime is how long an issued confirmation code stays valid.
	DefaultCodeLifetime = 5 * time.Minute

	// DefaultLockoutWindow is how long an account stays blocked after
	// exhausting its retry budget.
	DefaultLockoutWindow = 5 * time.Minute
)

// ConfirmationService owns the lifecycle of one-time confirmation codes:
// issuance, retry counting, expiry, lockout, removal. Per account the record
// moves ABSENT -> PENDING -> {EXPIRED, BLOCKED, CONSUMED}; a block decays
// lazily once its window elapses, there are no timers.
//
// All read-modify-write sequences for one account run under a per-account
// critical section, and issuance additionally relies on the store's
// conditional insert, so concurrent callers can never create two records.
type ConfirmationService struct {
	Store         store.Store
	CodeLifetime  time.Duration
	LockoutWindow time.Duration

	// Now is the clock used for expiry and lockout decisions. Overridable in tests.
	Now func() time.Time

	locks keyedMutex
}

func NewConfirmationService(st store.Store, codeLifetime, lockoutWindow time.Duration) *ConfirmationService {
	if codeLifetime <= 0 {
		codeLifetime = DefaultCodeLifetime
	}
	if lockoutWindow <= 0 {
		lockoutWindow = DefaultLockoutWindow
	}

	return &ConfirmationService{
		Store:         st,
		CodeLifetime:  codeLifetime,
		LockoutWindow: lockoutWindow,
		Now:           time.Now,
	}
}

// Issue creates a fresh confirmation record for the account, allowed only
// when none is live. The returned bool reports whether this call created the
// record; false means another caller won the race (or a record already
// existed) and the returned record is the live one.
func (s *ConfirmationService) Issue(ctx context.Context, accountID string) (domain.ConfirmationRecord, bool, error) {
	unlock := s.locks.lock(accountID)
	defer unlock()

	code, err := cryptox.GenerateCode()
	if err != nil {
		return domain.ConfirmationRecord{}, false, err
	}

	now := s.Now().UTC()
	rec := domain.ConfirmationRecord{
		AccountID: accountID,
		Code:      code,
		Retries:   0,
		ExpiresAt: now.Add(s.CodeLifetime),
		CreatedAt: now,
	}

	created, err := s.Store.Confirmations().CreateIfAbsent(ctx, rec)
	if err != nil {
		return domain.ConfirmationRecord{}, false, fmt.Errorf("failed to issue confirmation: %w", err)
	}
	if !created {
		existing, err := s.Store.Confirmations().FindByAccountID(ctx, accountID)
		if err != nil {
			return domain.ConfirmationRecord{}, false, fmt.Errorf("failed to load live confirmation: %w", err)
		}
		return existing, false, nil
	}

	return rec, true, nil
}

// Lookup returns the live record for an account, or store.ErrNotFound.
func (s *ConfirmationService) Lookup(ctx context.Context, accountID string) (domain.ConfirmationRecord, error) {
	return s.Store.Confirmations().FindByAccountID(ctx, accountID)
}

// LookupByCode returns the record holding the given code, or store.ErrNotFound.
// Used by reset flows where the caller is identified only by code.
func (s *ConfirmationService) LookupByCode(ctx context.Context, code string) (domain.ConfirmationRecord, error) {
	return s.Store.Confirmations().FindByCode(ctx, code)
}

// RegisterAttempt runs the shared retry/lockout algorithm for one attempt
// against the account's live record. The limit is supplied by the caller
// because the login phase and the code-validation phase carry independently
// configured budgets over the same physical record.
func (s *ConfirmationService) RegisterAttempt(ctx context.Context, accountID string, limit int) (domain.AttemptOutcome, error) {
	unlock := s.locks.lock(accountID)
	defer unlock()

	rec, err := s.Store.Confirmations().FindByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.AttemptNoRecord, nil
		}
		return domain.AttemptNoRecord, err
	}

	now := s.Now().UTC()

	// Expiry wins over every other state.
	if rec.Expired(now) {
		if err := s.Store.Confirmations().Delete(ctx, accountID); err != nil {
			return domain.AttemptExpired, err
		}
		return domain.AttemptExpired, nil
	}

	if rec.Blocked(now) {
		return domain.AttemptBlocked, nil
	}

	rec.Retries++
	if rec.Retries > limit {
		blockedUntil := now.Add(s.LockoutWindow)
		rec.BlockedUntil = &blockedUntil
		rec.Retries = 0
		if err := s.Store.Confirmations().Update(ctx, rec); err != nil {
			return domain.AttemptLockedNow, err
		}
		return domain.AttemptLockedNow, nil
	}

	// Clear a stale block from a window that has already elapsed.
	rec.BlockedUntil = nil
	if err := s.Store.Confirmations().Update(ctx, rec); err != nil {
		return domain.AttemptRecorded, err
	}
	return domain.AttemptRecorded, nil
}

// Consume deletes the record after a successful validation. Consuming an
// already-absent record is a no-op.
func (s *ConfirmationService) Consume(ctx context.Context, accountID string) error {
	unlock := s.locks.lock(accountID)
	defer unlock()

	return s.Store.Confirmations().Delete(ctx, accountID)
}

// SweepExpired deletes every record whose expiry has passed. Invoked by the
// housekeeping task; deletions are idempotent with respect to concurrent
// consumption.
func (s *ConfirmationService) SweepExpired(ctx context.Context) (int64, error) {
	return s.Store.Confirmations().DeleteExpiredBefore(ctx, s.Now().UTC())
}

// keyedMutex provides a lazily allocated mutex per key. Lock ordering is
// one key per call site, so there is no deadlock potential.
type keyedMutex struct {
	mus sync.Map // map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	mu, _ := k.mus.LoadOrStore(key, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
