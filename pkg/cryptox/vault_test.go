package cryptox_test

import (
	"testing"

	"github.com/lockstead/authgate/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	cryptox.SetPepperPath("testdata/pepper")
	cryptox.GetPepper() // prime before parallel tests
	m.Run()
}

func TestVaultProtectVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	vault, err := cryptox.NewVault("unit-test-wrap-key")
	require.NoError(t, err)

	secret, err := vault.Protect("P@ssw0rd1")
	require.NoError(t, err)
	require.NotEmpty(t, secret)
	require.NotContains(t, secret, "P@ssw0rd1")

	require.True(t, vault.Verify("P@ssw0rd1", secret))
	require.False(t, vault.Verify("P@ssw0rd2", secret))
}

func TestVaultProtectIsSalted(t *testing.T) {
	t.Parallel()

	vault, err := cryptox.NewVault("unit-test-wrap-key")
	require.NoError(t, err)

	first, err := vault.Protect("P@ssw0rd1")
	require.NoError(t, err)
	second, err := vault.Protect("P@ssw0rd1")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestVaultVerifyMalformedSecret(t *testing.T) {
	t.Parallel()

	vault, err := cryptox.NewVault("unit-test-wrap-key")
	require.NoError(t, err)

	// None of these may panic or report a match.
	for _, secret := range []string{"", "!!!not-base64!!!", "c2hvcnQ", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"} {
		require.False(t, vault.Verify("P@ssw0rd1", secret))
	}
}

func TestVaultRequiresKeyMaterial(t *testing.T) {
	t.Parallel()

	_, err := cryptox.NewVault("")
	require.Error(t, err)
}

func TestVaultWrapKeyIsolation(t *testing.T) {
	t.Parallel()

	a, err := cryptox.NewVault("key-a")
	require.NoError(t, err)
	b, err := cryptox.NewVault("key-b")
	require.NoError(t, err)

	secret, err := a.Protect("P@ssw0rd1")
	require.NoError(t, err)

	// A secret wrapped under one key must not verify under another.
	require.False(t, b.Verify("P@ssw0rd1", secret))
}

func TestHashPasswordVerify(t *testing.T) {
	t.Parallel()

	hash, err := cryptox.HashPassword("hunter2!A")
	require.NoError(t, err)
	require.Contains(t, hash, "$argon2id$v=19$")

	require.NoError(t, cryptox.VerifyPassword("hunter2!A", hash))
	require.Error(t, cryptox.VerifyPassword("hunter2!B", hash))
	require.Error(t, cryptox.VerifyPassword("hunter2!A", "$argon2id$garbage"))
}

func TestGenerateCode(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for range 50 {
		code, err := cryptox.GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, cryptox.CodeLength)

		_, dup := seen[code]
		require.False(t, dup, "generated duplicate code %q", code)
		seen[code] = struct{}{}
	}
}
