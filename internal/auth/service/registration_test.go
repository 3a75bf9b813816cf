package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lockstead/authgate/internal/auth/domain"
	"github.com/lockstead/authgate/internal/auth/store"
)

func stageTestAccount(t *testing.T, st store.Store, svc *RegistrationService, id, username, code string, enabled bool) {
	t.Helper()

	now := svc.Now().UTC()
	account := domain.Account{
		ID:        id,
		Username:  username,
		Email:     username + "@example.com",
		Role:      "user",
		Secret:    "opaque",
		Enabled:   enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.Users().Create(context.Background(), account))
	require.NoError(t, svc.Stage(context.Background(), code, account))
}

func TestStageAndTake(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewRegistrationService(st, 0)

	stageTestAccount(t, st, svc, "reg-1", "stageuser", "code-aaaa", false)

	staged, err := svc.Take(ctx, "code-aaaa")
	require.NoError(t, err)
	require.Equal(t, "reg-1", staged.AccountID)
	require.Equal(t, "stageuser", staged.Username)

	// Take is non-destructive.
	_, err = svc.Take(ctx, "code-aaaa")
	require.NoError(t, err)

	require.NoError(t, svc.Consume(ctx, "code-aaaa"))
	_, err = svc.Take(ctx, "code-aaaa")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Consuming again is a no-op.
	require.NoError(t, svc.Consume(ctx, "code-aaaa"))
}

func TestStageRejectsCodeCollision(t *testing.T) {
	st := newTestStore(t)
	svc := NewRegistrationService(st, 0)

	stageTestAccount(t, st, svc, "reg-2", "firstuser", "code-bbbb", false)

	now := svc.Now().UTC()
	other := domain.Account{
		ID:        "reg-3",
		Username:  "seconduser",
		Email:     "seconduser@example.com",
		Role:      "user",
		Secret:    "opaque",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.Users().Create(context.Background(), other))

	err := svc.Stage(context.Background(), "code-bbbb", other)
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestSweepStale(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewRegistrationService(st, 24*time.Hour)

	stageTestAccount(t, st, svc, "reg-4", "oldpending", "code-old", false)
	stageTestAccount(t, st, svc, "reg-5", "oldenabled", "code-live", true)

	base := svc.Now().UTC()
	svc.Now = func() time.Time { return base.Add(25 * time.Hour) }

	stageTestAccount(t, st, svc, "reg-6", "newpending", "code-new", false)

	entries, accounts, err := svc.SweepStale(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), entries)
	require.Equal(t, int64(1), accounts)

	// The abandoned registration and its disabled account are gone.
	_, err = svc.Take(ctx, "code-old")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Users().FindByID(ctx, "reg-4")
	require.ErrorIs(t, err, store.ErrNotFound)

	// The enabled account survives even though its stale entry was evicted.
	_, err = st.Users().FindByID(ctx, "reg-5")
	require.NoError(t, err)

	// The fresh registration is untouched.
	_, err = svc.Take(ctx, "code-new")
	require.NoError(t, err)
	_, err = st.Users().FindByID(ctx, "reg-6")
	require.NoError(t, err)
}
