package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lockstead/authgate/internal/auth/domain"
	"github.com/lockstead/authgate/internal/auth/notify"
	"github.com/lockstead/authgate/pkg/cryptox"
	"github.com/lockstead/authgate/pkg/jwtx"
)

const (
	testUsername = "alicesmith"
	testPassword = "Sup3r!pass"
	testEmail    = "alicesmith@example.com"
)

type sentMail struct {
	Email string
	Code  string
}

// captureNotifier records dispatched mail instead of sending it.
type captureNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (c *captureNotifier) Send(_ context.Context, email, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentMail{Email: email, Code: code})
	return nil
}

func (c *captureNotifier) all() []sentMail {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]sentMail, len(c.sent))
	copy(out, c.sent)
	return out
}

type authEnv struct {
	svc  *AuthService
	mail *captureNotifier
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()

	st := newTestStore(t)

	vault, err := cryptox.NewVault("test-wrap-key-material")
	require.NoError(t, err)

	pem, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	issuer, err := jwtx.NewIssuer(pem, "authgate-test", time.Hour)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mail := &captureNotifier{}

	svc := NewAuthService(
		st,
		vault,
		NewConfirmationService(st, 0, 0),
		NewRegistrationService(st, 0),
		issuer,
		notify.NewDispatcher(mail, logger),
		logger,
	)
	return &authEnv{svc: svc, mail: mail}
}

// lastCode waits for async dispatch and returns the most recent mailed code.
func (e *authEnv) lastCode(t *testing.T) string {
	t.Helper()

	e.svc.Dispatcher.Wait()
	sent := e.mail.all()
	require.NotEmpty(t, sent)
	return sent[len(sent)-1].Code
}

// createUser registers and activates an account through the public flows.
func (e *authEnv) createUser(t *testing.T, username, password, email string) {
	t.Helper()

	ctx := context.Background()
	res := e.svc.Register(ctx, RegisterInput{Username: username, Password: password, Email: email})
	require.True(t, res.Success, res.Message)

	res = e.svc.ActivateUser(ctx, username, password, e.lastCode(t))
	require.True(t, res.Success, res.Message)
}

func TestLoginFlow(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t)
	env.createUser(t, testUsername, testPassword, testEmail)

	res := env.svc.Login(ctx, testUsername, testPassword)
	require.True(t, res.Success)
	require.Equal(t, domain.CodeTwoFactorSent, res.Code)

	env.svc.Dispatcher.Wait()
	sent := env.mail.all()
	require.Equal(t, testEmail, sent[len(sent)-1].Email)
	code := sent[len(sent)-1].Code

	res = env.svc.ValidateCode(ctx, testUsername, testPassword, code)
	require.True(t, res.Success)
	require.Equal(t, domain.CodeOK, res.Code)
	require.NotEmpty(t, res.Metadata["token"])

	verified := env.svc.VerifyAssertion(res.Metadata["token"])
	require.True(t, verified.Success)
	require.NotEmpty(t, verified.Metadata["account_id"])
	require.Equal(t, "user", verified.Metadata["role"])

	// The code is single use.
	res = env.svc.ValidateCode(ctx, testUsername, testPassword, code)
	require.False(t, res.Success)
	require.Equal(t, domain.CodeAuthFailed, res.Code)
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t)
	env.createUser(t, testUsername, testPassword, testEmail)

	t.Run("wrong password", func(t *testing.T) {
		res := env.svc.Login(ctx, testUsername, "Wr0ng!pass")
		require.False(t, res.Success)
		require.Equal(t, domain.CodeAuthFailed, res.Code)
	})

	t.Run("unknown username", func(t *testing.T) {
		res := env.svc.Login(ctx, "ghostuser", testPassword)
		require.False(t, res.Success)
		require.Equal(t, domain.CodeAuthFailed, res.Code)
	})

	t.Run("malformed input", func(t *testing.T) {
		res := env.svc.Login(ctx, "x", "short")
		require.False(t, res.Success)
		require.Equal(t, domain.CodeValidationError, res.Code)
	})

	t.Run("not activated yet", func(t *testing.T) {
		res := env.svc.Register(ctx, RegisterInput{Username: "bobbrown1", Password: testPassword, Email: "bobbrown1@example.com"})
		require.True(t, res.Success)

		res = env.svc.Login(ctx, "bobbrown1", testPassword)
		require.False(t, res.Success)
		require.Equal(t, domain.CodeAuthFailed, res.Code)
	})
}

func TestLoginRetryBudgetAndLockout(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t)
	env.createUser(t, testUsername, testPassword, testEmail)
	env.svc.LoginLimit = 3

	res := env.svc.Login(ctx, testUsername, testPassword)
	require.Equal(t, domain.CodeTwoFactorSent, res.Code)

	// A correct password while a code is live burns a retry too.
	for range 3 {
		res = env.svc.Login(ctx, testUsername, testPassword)
		require.False(t, res.Success)
		require.Equal(t, domain.CodeAlreadySent, res.Code)
	}

	res = env.svc.Login(ctx, testUsername, testPassword)
	require.Equal(t, domain.CodeLockedNow, res.Code)

	// A wrong password is shut out by the same block.
	res = env.svc.Login(ctx, testUsername, "Wr0ng!pass")
	require.Equal(t, domain.CodeBlocked, res.Code)

	// The block also shuts out code validation with the right code.
	code := env.lastCode(t)
	res = env.svc.ValidateCode(ctx, testUsername, testPassword, code)
	require.Equal(t, domain.CodeBlocked, res.Code)
}

func TestValidateCode(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong code burns the validation budget", func(t *testing.T) {
		env := newAuthEnv(t)
		env.createUser(t, testUsername, testPassword, testEmail)
		env.svc.ValidateLimit = 2

		res := env.svc.Login(ctx, testUsername, testPassword)
		require.Equal(t, domain.CodeTwoFactorSent, res.Code)

		for range 2 {
			res = env.svc.ValidateCode(ctx, testUsername, testPassword, "wrong-code")
			require.Equal(t, domain.CodeAuthFailed, res.Code)
		}
		res = env.svc.ValidateCode(ctx, testUsername, testPassword, "wrong-code")
		require.Equal(t, domain.CodeLockedNow, res.Code)
	})

	t.Run("right code with wrong password fails", func(t *testing.T) {
		env := newAuthEnv(t)
		env.createUser(t, testUsername, testPassword, testEmail)

		res := env.svc.Login(ctx, testUsername, testPassword)
		require.Equal(t, domain.CodeTwoFactorSent, res.Code)

		res = env.svc.ValidateCode(ctx, testUsername, "Wr0ng!pass", env.lastCode(t))
		require.False(t, res.Success)
		require.Equal(t, domain.CodeAuthFailed, res.Code)
	})

	t.Run("expired code is refused and removed", func(t *testing.T) {
		env := newAuthEnv(t)
		env.createUser(t, testUsername, testPassword, testEmail)

		res := env.svc.Login(ctx, testUsername, testPassword)
		require.Equal(t, domain.CodeTwoFactorSent, res.Code)
		code := env.lastCode(t)

		base := time.Now()
		later := func() time.Time { return base.Add(10 * time.Minute) }
		env.svc.Now = later
		env.svc.Confirmations.Now = later

		res = env.svc.ValidateCode(ctx, testUsername, testPassword, code)
		require.Equal(t, domain.CodeExpired, res.Code)

		// The record is gone, so a fresh login issues a new code.
		res = env.svc.Login(ctx, testUsername, testPassword)
		require.Equal(t, domain.CodeTwoFactorSent, res.Code)
	})

	t.Run("no pending login", func(t *testing.T) {
		env := newAuthEnv(t)
		env.createUser(t, testUsername, testPassword, testEmail)

		res := env.svc.ValidateCode(ctx, testUsername, testPassword, "some-code")
		require.False(t, res.Success)
		require.Equal(t, domain.CodeAuthFailed, res.Code)
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate username conflicts", func(t *testing.T) {
		env := newAuthEnv(t)
		env.createUser(t, testUsername, testPassword, testEmail)

		res := env.svc.Register(ctx, RegisterInput{Username: testUsername, Password: testPassword, Email: "other@example.com"})
		require.False(t, res.Success)
		require.Equal(t, domain.CodeConflict, res.Code)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		env := newAuthEnv(t)
		env.createUser(t, testUsername, testPassword, testEmail)

		res := env.svc.Register(ctx, RegisterInput{Username: "caroljones", Password: testPassword, Email: testEmail})
		require.False(t, res.Success)
		require.Equal(t, domain.CodeConflict, res.Code)
	})

	t.Run("username is case folded", func(t *testing.T) {
		env := newAuthEnv(t)

		res := env.svc.Register(ctx, RegisterInput{Username: "AliceSmith", Password: testPassword, Email: testEmail})
		require.True(t, res.Success)

		res = env.svc.ActivateUser(ctx, "ALICESMITH", testPassword, env.lastCode(t))
		require.True(t, res.Success)

		res = env.svc.Login(ctx, "alicesmith", testPassword)
		require.Equal(t, domain.CodeTwoFactorSent, res.Code)
	})

	t.Run("rejects malformed profile", func(t *testing.T) {
		env := newAuthEnv(t)

		res := env.svc.Register(ctx, RegisterInput{Username: "ok", Password: testPassword, Email: testEmail})
		require.Equal(t, domain.CodeValidationError, res.Code)

		res = env.svc.Register(ctx, RegisterInput{Username: testUsername, Password: "weak", Email: testEmail})
		require.Equal(t, domain.CodeValidationError, res.Code)

		res = env.svc.Register(ctx, RegisterInput{Username: testUsername, Password: testPassword, Email: "not-an-email"})
		require.Equal(t, domain.CodeValidationError, res.Code)
	})
}

func TestActivateUser(t *testing.T) {
	ctx := context.Background()
	env := newAuthEnv(t)

	res := env.svc.Register(ctx, RegisterInput{Username: testUsername, Password: testPassword, Email: testEmail})
	require.True(t, res.Success)
	code := env.lastCode(t)

	t.Run("wrong credentials leave the entry staged", func(t *testing.T) {
		res := env.svc.ActivateUser(ctx, testUsername, "Wr0ng!pass", code)
		require.False(t, res.Success)
		require.Equal(t, domain.CodeAuthFailed, res.Code)

		res = env.svc.ActivateUser(ctx, "otherperson", testPassword, code)
		require.False(t, res.Success)
	})

	t.Run("unknown code", func(t *testing.T) {
		res := env.svc.ActivateUser(ctx, testUsername, testPassword, "nope")
		require.False(t, res.Success)
		require.Equal(t, domain.CodeAuthFailed, res.Code)
	})

	t.Run("matching credentials enable the account once", func(t *testing.T) {
		res := env.svc.ActivateUser(ctx, testUsername, testPassword, code)
		require.True(t, res.Success)

		// The entry was consumed.
		res = env.svc.ActivateUser(ctx, testUsername, testPassword, code)
		require.False(t, res.Success)

		res = env.svc.Login(ctx, testUsername, testPassword)
		require.Equal(t, domain.CodeTwoFactorSent, res.Code)
	})
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("full reset flow", func(t *testing.T) {
		env := newAuthEnv(t)
		env.createUser(t, testUsername, testPassword, testEmail)

		res := env.svc.RequestPasswordReset(ctx, testUsername)
		require.True(t, res.Success)
		require.Equal(t, domain.CodeTwoFactorSent, res.Code)
		code := env.lastCode(t)

		const newPassword = "N3w!passwd"
		res = env.svc.ResetPassword(ctx, code, newPassword)
		require.True(t, res.Success)
		require.Equal(t, domain.CodeOK, res.Code)

		// Old password no longer works, new one does.
		res = env.svc.Login(ctx, testUsername, testPassword)
		require.Equal(t, domain.CodeAuthFailed, res.Code)
		res = env.svc.Login(ctx, testUsername, newPassword)
		require.Equal(t, domain.CodeTwoFactorSent, res.Code)
	})

	t.Run("repeat request burns a retry", func(t *testing.T) {
		env := newAuthEnv(t)
		env.createUser(t, testUsername, testPassword, testEmail)

		res := env.svc.RequestPasswordReset(ctx, testUsername)
		require.Equal(t, domain.CodeTwoFactorSent, res.Code)

		res = env.svc.RequestPasswordReset(ctx, testUsername)
		require.False(t, res.Success)
		require.Equal(t, domain.CodeAlreadySent, res.Code)
	})

	t.Run("unknown username is indistinguishable", func(t *testing.T) {
		env := newAuthEnv(t)
		res := env.svc.RequestPasswordReset(ctx, "ghostuser")
		require.False(t, res.Success)
		require.Equal(t, domain.CodeAuthFailed, res.Code)
	})

	t.Run("unknown code", func(t *testing.T) {
		env := newAuthEnv(t)
		res := env.svc.ResetPassword(ctx, "nope", "N3w!passwd")
		require.False(t, res.Success)
		require.Equal(t, domain.CodeAuthFailed, res.Code)
	})

	t.Run("expired code is refused and removed", func(t *testing.T) {
		env := newAuthEnv(t)
		env.createUser(t, testUsername, testPassword, testEmail)

		res := env.svc.RequestPasswordReset(ctx, testUsername)
		require.Equal(t, domain.CodeTwoFactorSent, res.Code)
		code := env.lastCode(t)

		base := time.Now()
		later := func() time.Time { return base.Add(10 * time.Minute) }
		env.svc.Now = later
		env.svc.Confirmations.Now = later

		res = env.svc.ResetPassword(ctx, code, "N3w!passwd")
		require.Equal(t, domain.CodeExpired, res.Code)

		// Password unchanged.
		res = env.svc.Login(ctx, testUsername, testPassword)
		require.Equal(t, domain.CodeTwoFactorSent, res.Code)
	})
}

func TestVerifyAssertion(t *testing.T) {
	env := newAuthEnv(t)

	t.Run("garbage token", func(t *testing.T) {
		res := env.svc.VerifyAssertion("not-a-token")
		require.False(t, res.Success)
		require.Equal(t, domain.CodeTokenMalformed, res.Code)
	})

	t.Run("foreign signature", func(t *testing.T) {
		pem, err := cryptox.GenerateEd25519Key()
		require.NoError(t, err)
		foreign, err := jwtx.NewIssuer(pem, "authgate-test", time.Hour)
		require.NoError(t, err)

		token, err := foreign.Issue("someone")
		require.NoError(t, err)

		res := env.svc.VerifyAssertion(token)
		require.False(t, res.Success)
		require.Equal(t, domain.CodeTokenInvalidSig, res.Code)
	})
}
