package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lockstead/authgate/internal/auth/domain"
	"github.com/lockstead/authgate/internal/auth/store"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	st, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func account(id, username string) domain.Account {
	now := time.Now().UTC()
	return domain.Account{
		ID:        id,
		Username:  username,
		Email:     username + "@example.com",
		Role:      "user",
		Secret:    "opaque",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestUsersRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Users().Create(ctx, account("u1", "findme01")))

		got, err := st.Users().FindByID(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, "findme01", got.Username)
		require.False(t, got.Enabled)

		got, err = st.Users().FindByUsername(ctx, "FINDME01")
		require.NoError(t, err)
		require.Equal(t, "u1", got.ID)

		_, err = st.Users().FindByID(ctx, "absent")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("username stored lower case", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Users().Create(ctx, account("u2", "MixedCase")))

		got, err := st.Users().FindByID(ctx, "u2")
		require.NoError(t, err)
		require.Equal(t, "mixedcase", got.Username)
	})

	t.Run("unique violations map to ErrAlreadyExists", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Users().Create(ctx, account("u3", "original")))

		dup := account("u4", "original")
		dup.Email = "different@example.com"
		require.ErrorIs(t, st.Users().Create(ctx, dup), store.ErrAlreadyExists)

		dup = account("u5", "otherorig")
		dup.Email = "original@example.com"
		require.ErrorIs(t, st.Users().Create(ctx, dup), store.ErrAlreadyExists)
	})

	t.Run("set enabled", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Users().Create(ctx, account("u6", "enableme")))

		require.NoError(t, st.Users().SetEnabled(ctx, "u6"))
		got, err := st.Users().FindByID(ctx, "u6")
		require.NoError(t, err)
		require.True(t, got.Enabled)

		require.ErrorIs(t, st.Users().SetEnabled(ctx, "absent"), store.ErrNotFound)
	})

	t.Run("set secret reports rows affected", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Users().Create(ctx, account("u7", "secretive")))

		n, err := st.Users().SetSecret(ctx, "u7", "new-secret")
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		n, err = st.Users().SetSecret(ctx, "absent", "new-secret")
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("delete disabled before cutoff", func(t *testing.T) {
		st := newStore(t)

		old := account("u8", "olddisable")
		old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
		require.NoError(t, st.Users().Create(ctx, old))

		oldEnabled := account("u9", "oldenable")
		oldEnabled.CreatedAt = old.CreatedAt
		require.NoError(t, st.Users().Create(ctx, oldEnabled))
		require.NoError(t, st.Users().SetEnabled(ctx, "u9"))

		require.NoError(t, st.Users().Create(ctx, account("u10", "freshacct")))

		n, err := st.Users().DeleteDisabledBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		_, err = st.Users().FindByID(ctx, "u8")
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = st.Users().FindByID(ctx, "u9")
		require.NoError(t, err)
		_, err = st.Users().FindByID(ctx, "u10")
		require.NoError(t, err)
	})
}

func TestConfirmationsRepo(t *testing.T) {
	ctx := context.Background()

	rec := func(accountID, code string) domain.ConfirmationRecord {
		now := time.Now().UTC()
		return domain.ConfirmationRecord{
			AccountID: accountID,
			Code:      code,
			ExpiresAt: now.Add(5 * time.Minute),
			CreatedAt: now,
		}
	}

	t.Run("create if absent", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Users().Create(ctx, account("c1", "confirmer")))

		created, err := st.Confirmations().CreateIfAbsent(ctx, rec("c1", "code-one"))
		require.NoError(t, err)
		require.True(t, created)

		// A second insert loses; the first record stays.
		created, err = st.Confirmations().CreateIfAbsent(ctx, rec("c1", "code-two"))
		require.NoError(t, err)
		require.False(t, created)

		got, err := st.Confirmations().FindByAccountID(ctx, "c1")
		require.NoError(t, err)
		require.Equal(t, "code-one", got.Code)
		require.Nil(t, got.BlockedUntil)

		got, err = st.Confirmations().FindByCode(ctx, "code-one")
		require.NoError(t, err)
		require.Equal(t, "c1", got.AccountID)
	})

	t.Run("update persists retries and block", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Users().Create(ctx, account("c2", "blockable")))

		r := rec("c2", "code-blk")
		_, err := st.Confirmations().CreateIfAbsent(ctx, r)
		require.NoError(t, err)

		until := time.Now().UTC().Add(5 * time.Minute).Truncate(time.Second)
		r.Retries = 2
		r.BlockedUntil = &until
		require.NoError(t, st.Confirmations().Update(ctx, r))

		got, err := st.Confirmations().FindByAccountID(ctx, "c2")
		require.NoError(t, err)
		require.Equal(t, 2, got.Retries)
		require.NotNil(t, got.BlockedUntil)
		require.WithinDuration(t, until, *got.BlockedUntil, time.Second)
	})

	t.Run("account deletion cascades", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Users().Create(ctx, account("c3", "cascading")))
		_, err := st.Confirmations().CreateIfAbsent(ctx, rec("c3", "code-cas"))
		require.NoError(t, err)

		require.NoError(t, st.Users().Delete(ctx, "c3"))
		_, err = st.Confirmations().FindByAccountID(ctx, "c3")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit on success", func(t *testing.T) {
		st := newStore(t)

		err := st.WithTx(ctx, func(tx store.Tx) error {
			return tx.Users().Create(ctx, account("t1", "txcommit1"))
		})
		require.NoError(t, err)

		_, err = st.Users().FindByID(ctx, "t1")
		require.NoError(t, err)
	})

	t.Run("rollback on error", func(t *testing.T) {
		st := newStore(t)

		err := st.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Users().Create(ctx, account("t2", "txrolled1")); err != nil {
				return err
			}
			// Duplicate username forces the whole transaction back.
			return tx.Users().Create(ctx, account("t3", "txrolled1"))
		})
		require.ErrorIs(t, err, store.ErrAlreadyExists)

		_, err = st.Users().FindByID(ctx, "t2")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}
