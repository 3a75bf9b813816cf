package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lockstead/authgate/internal/auth/domain"
	"github.com/lockstead/authgate/internal/auth/notify"
	"github.com/lockstead/authgate/internal/auth/store"
	"github.com/lockstead/authgate/pkg/cryptox"
	"github.com/lockstead/authgate/pkg/jwtx"
)

const (
	// DefaultLoginRetries is the attempt budget for the password phase.
	DefaultLoginRetries = 3

	// DefaultValidateRetries is the attempt budget for the code phase.
	DefaultValidateRetries = 3

	// stageAttempts bounds activation-code regeneration on collision.
	stageAttempts = 3

	// DefaultRole is assigned to accounts that register without one.
	DefaultRole = "user"
)

// Messages are deliberately uniform: a failed login never reveals whether the
// username, the password, or the code was wrong.
const (
	msgLoginFailed      = "Login failed."
	msgValidationFailed = "Validation failed."
	msgResetFailed      = "Reset failed."
	msgCodeSent         = "2FA code sent to email."
	msgAlreadySent      = "Code already sent."
	msgExpired          = "Code expired, please try again."
	msgBlocked          = "Too many attempts, temporarily blocked."
	msgLockedNow        = "Maximum retries exceeded, temporarily blocked."
	msgInternal         = "Something went wrong, please try again later."
)

// AuthService is the application facade. Every operation returns a
// domain.Result; collaborator errors are logged and translated, never
// propagated to the transport layer as Go errors.
type AuthService struct {
	Store         store.Store
	Vault         *cryptox.Vault
	Confirmations *ConfirmationService
	Registrations *RegistrationService
	Tokens        *jwtx.Issuer
	Dispatcher    *notify.Dispatcher
	Logger        *slog.Logger

	// LoginLimit and ValidateLimit are the independent retry budgets for the
	// password phase and the code phase.
	LoginLimit    int
	ValidateLimit int

	// Now is the clock for account timestamps. Overridable in tests.
	Now func() time.Time
}

func NewAuthService(
	st store.Store,
	vault *cryptox.Vault,
	confirmations *ConfirmationService,
	registrations *RegistrationService,
	tokens *jwtx.Issuer,
	dispatcher *notify.Dispatcher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		Store:         st,
		Vault:         vault,
		Confirmations: confirmations,
		Registrations: registrations,
		Tokens:        tokens,
		Dispatcher:    dispatcher,
		Logger:        logger,
		LoginLimit:    DefaultLoginRetries,
		ValidateLimit: DefaultValidateRetries,
		Now:           time.Now,
	}
}

// Login runs the password phase. A correct password never yields a session by
// itself: it triggers a one-time code to the account's email, and the caller
// must follow up with ValidateCode. While a code is live, every further login
// attempt for that account burns a retry against the login budget, correct
// password or not.
func (s *AuthService) Login(ctx context.Context, username, password string) domain.Result {
	if !validUsername(username) || !validPassword(password) {
		return domain.Fail(domain.CodeValidationError, msgLoginFailed)
	}
	username = strings.ToLower(username)

	account, err := s.Store.Users().FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Fail(domain.CodeAuthFailed, msgLoginFailed)
		}
		s.Logger.Error("login: account lookup failed", "error", err)
		return domain.Fail(domain.CodePersistenceFailure, msgInternal)
	}
	if !account.Enabled {
		return domain.Fail(domain.CodeAuthFailed, msgLoginFailed)
	}

	match := s.Vault.Verify(password, account.Secret)

	_, err = s.Confirmations.Lookup(ctx, account.ID)
	switch {
	case err == nil:
		// A code is already live; this attempt counts against the budget.
		return s.attemptResult(ctx, account.ID, s.LoginLimit, match, msgLoginFailed)
	case errors.Is(err, store.ErrNotFound):
	default:
		s.Logger.Error("login: confirmation lookup failed", "error", err)
		return domain.Fail(domain.CodePersistenceFailure, msgInternal)
	}

	if !match {
		return domain.Fail(domain.CodeAuthFailed, msgLoginFailed)
	}

	rec, created, err := s.Confirmations.Issue(ctx, account.ID)
	if err != nil {
		s.Logger.Error("login: code issuance failed", "error", err)
		return domain.Fail(domain.CodePersistenceFailure, msgInternal)
	}
	if !created {
		// Lost the issuance race; the winner's code is already on its way.
		return domain.Fail(domain.CodeAlreadySent, msgAlreadySent)
	}

	s.Dispatcher.Dispatch(account.Email, rec.Code)
	return domain.OK(domain.CodeTwoFactorSent, msgCodeSent)
}

// ValidateCode runs the code phase: full credentials plus the emailed code.
// Success consumes the record and returns a signed session assertion in the
// result metadata under "token". A wrong code burns a retry against the
// validation budget.
func (s *AuthService) ValidateCode(ctx context.Context, username, password, code string) domain.Result {
	if !validUsername(username) || !validPassword(password) || code == "" {
		return domain.Fail(domain.CodeValidationError, msgValidationFailed)
	}
	username = strings.ToLower(username)

	account, err := s.Store.Users().FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Fail(domain.CodeAuthFailed, msgValidationFailed)
		}
		s.Logger.Error("validate: account lookup failed", "error", err)
		return domain.Fail(domain.CodePersistenceFailure, msgInternal)
	}

	rec, err := s.Confirmations.Lookup(ctx, account.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Fail(domain.CodeAuthFailed, msgValidationFailed)
		}
		s.Logger.Error("validate: confirmation lookup failed", "error", err)
		return domain.Fail(domain.CodePersistenceFailure, msgInternal)
	}

	now := s.Now().UTC()
	if rec.Expired(now) {
		if err := s.Confirmations.Consume(ctx, account.ID); err != nil {
			s.Logger.Error("validate: expired record cleanup failed", "error", err)
		}
		return domain.Fail(domain.CodeExpired, msgExpired)
	}
	if rec.Blocked(now) {
		return domain.Fail(domain.CodeBlocked, msgBlocked)
	}

	match := s.Vault.Verify(password, account.Secret)
	if match && rec.Code == code {
		token, err := s.Tokens.IssueWithRole(account.ID, account.Role)
		if err != nil {
			s.Logger.Error("validate: assertion signing failed", "error", err)
			return domain.Fail(domain.CodePersistenceFailure, msgInternal)
		}
		if err := s.Confirmations.Consume(ctx, account.ID); err != nil {
			s.Logger.Error("validate: record consumption failed", "error", err)
		}
		return domain.OK(domain.CodeOK, "Login successful.").WithMeta("token", token)
	}

	return s.attemptResult(ctx, account.ID, s.ValidateLimit, false, msgValidationFailed)
}

// RegisterInput is the profile submitted by a new registrant.
type RegisterInput struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Role      string
}

// Register creates a disabled account and stages it under a one-time
// activation code, which is mailed to the registrant. The account stays
// unusable until ActivateUser confirms the code; abandoned registrations are
// eventually swept together with their accounts.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) domain.Result {
	if !validUsername(in.Username) || !validPassword(in.Password) || !validEmail(in.Email) {
		return domain.Fail(domain.CodeValidationError, "Invalid registration details.")
	}
	username := strings.ToLower(in.Username)
	role := in.Role
	if role == "" {
		role = DefaultRole
	}

	_, err := s.Store.Users().FindByUsernameOrEmail(ctx, username, in.Email)
	switch {
	case err == nil:
		return domain.Fail(domain.CodeConflict, "A user with these credentials already exists.")
	case errors.Is(err, store.ErrNotFound):
	default:
		s.Logger.Error("register: duplicate check failed", "error", err)
		return domain.Fail(domain.CodePersistenceFailure, msgInternal)
	}

	secret, err := s.Vault.Protect(in.Password)
	if err != nil {
		s.Logger.Error("register: secret protection failed", "error", err)
		return domain.Fail(domain.CodePersistenceFailure, msgInternal)
	}

	now := s.Now().UTC()
	account := domain.Account{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Role:      role,
		Secret:    secret,
		Enabled:   false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	code, err := s.createStaged(ctx, account)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Fail(domain.CodeConflict, "A user with these credentials already exists.")
		}
		s.Logger.Error("register: account creation failed", "error", err)
		return domain.Fail(domain.CodePersistenceFailure, msgInternal)
	}

	s.Dispatcher.Dispatch(account.Email, code)
	return domain.OK(domain.CodeOK, "User created. Confirmation code sent to email.")
}

// createStaged inserts the disabled account together with its staged entry in
// one transaction, regenerating the activation code on the unlikely collision.
func (s *AuthService) createStaged(ctx context.Context, account domain.Account) (string, error) {
	var lastErr error
	for range stageAttempts {
		code, err := cryptox.GenerateCode()
		if err != nil {
			return "", err
		}

		err = s.Store.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Users().Create(ctx, account); err != nil {
				return err
			}
			return tx.Registrations().Create(ctx, domain.PendingRegistration{
				Code:      code,
				AccountID: account.ID,
				Username:  account.Username,
				Email:     account.Email,
				Secret:    account.Secret,
				CreatedAt: account.CreatedAt,
			})
		})
		if err == nil {
			return code, nil
		}
		lastErr = err

		// An account-level conflict cannot be fixed by a new code.
		if errors.Is(err, store.ErrAlreadyExists) {
			if _, findErr := s.Store.Registrations().FindByCode(ctx, code); errors.Is(findErr, store.ErrNotFound) {
				return "", err
			}
			continue
		}
		return "", err
	}
	return "", lastErr
}

// ActivateUser confirms a staged registration: the submitted username,
// password, and activation code must all match the staged entry. On success
// the account is enabled and the entry consumed; on mismatch the entry stays,
// so the registrant can retry until the sweep evicts it.
func (s *AuthService) ActivateUser(ctx context.Context, username, password, code string) domain.Result {
	if !validUsername(username) || !validPassword(password) || code == "" {
		return domain.Fail(domain.CodeValidationError, msgValidationFailed)
	}
	username = strings.ToLower(username)

	staged, err := s.Registrations.Take(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Fail(domain.CodeAuthFailed, msgValidationFailed)
		}
		s.Logger.Error("activate: staged lookup failed", "error", err)
		return domain.Fail(domain.CodePersistenceFailure, msgInternal)
	}

	if staged.Username != username || !s.Vault.Verify(password, staged.Secret) {
		return domain.Fail(domain.CodeAuthFailed, msgValidationFailed)
	}

	if err := s.Store.Users().SetEnabled(ctx, staged.AccountID); err != nil {
		s.Logger.Error("activate: enable failed", "error", err)
		return domain.Fail(domain.CodePersistenceFailure, msgInternal)
	}
	if err := s.Registrations.Consume(ctx, code); err != nil {
		s.Logger.Error("activate: staged consumption failed", "error", err)
	}

	return domain.OK(domain.CodeOK, "User verified and enabled.")
}

// RequestPasswordReset issues a one-time reset code to the account's email.
// The outcome never reveals whether the username exists. While a code is
// live, repeated requests burn retries exactly like repeated logins.
func (s *AuthService) RequestPasswordReset(ctx context.Context, username string) domain.Result {
	if !validUsername(username) {
		return domain.Fail(domain.CodeValidationError, msgResetFailed)
	}
	username = strings.ToLower(username)

	account, err := s.Store.Users().FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Fail(domain.CodeAuthFailed, msgResetFailed)
		}
		s.Logger.Error("reset request: account lookup failed", "error", err)
		return domain.Fail(domain.CodePersistenceFailure, msgInternal)
	}
	if !account.Enabled {
		return domain.Fail(domain.CodeAuthFailed, msgResetFailed)
	}

	_, err = s.Confirmations.Lookup(ctx, account.ID)
	switch {
	case err == nil:
		return s.attemptResult(ctx, account.ID, s.LoginLimit, true, msgResetFailed)
	case errors.Is(err, store.ErrNotFound):
	default:
		s.Logger.Error("reset request: confirmation lookup failed", "error", err)
		return domain.Fail(domain.CodePersistenceFailure, msgInternal)
	}

	rec, created, err := s.Confirmations.Issue(ctx, account.ID)
	if err != nil {
		s.Logger.Error("reset request: code issuance failed", "error", err)
		return domain.Fail(domain.CodePersistenceFailure, msgInternal)
	}
	if !created {
		return domain.Fail(domain.CodeAlreadySent, msgAlreadySent)
	}

	s.Dispatcher.Dispatch(account.Email, rec.Code)
	return domain.OK(domain.CodeTwoFactorSent, "Reset code sent to email.")
}

// ResetPassword replaces the account secret, identified solely by a live
// reset code. The update is applied through the store and judged by rows
// affected; zero rows means the code pointed at a vanished account and the
// attempt is counted like any other failure.
func (s *AuthService) ResetPassword(ctx context.Context, code, newPassword string) domain.Result {
	if code == "" || !validPassword(newPassword) {
		return domain.Fail(domain.CodeValidationError, msgResetFailed)
	}

	rec, err := s.Confirmations.LookupByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Fail(domain.CodeAuthFailed, msgResetFailed)
		}
		s.Logger.Error("reset: code lookup failed", "error", err)
		return domain.Fail(domain.CodePersistenceFailure, msgInternal)
	}

	now := s.Now().UTC()
	if rec.Expired(now) {
		if err := s.Confirmations.Consume(ctx, rec.AccountID); err != nil {
			s.Logger.Error("reset: expired record cleanup failed", "error", err)
		}
		return domain.Fail(domain.CodeExpired, msgExpired)
	}
	if rec.Blocked(now) {
		return domain.Fail(domain.CodeBlocked, msgBlocked)
	}

	secret, err := s.Vault.Protect(newPassword)
	if err != nil {
		s.Logger.Error("reset: secret protection failed", "error", err)
		return domain.Fail(domain.CodePersistenceFailure, msgInternal)
	}

	affected, err := s.Store.Users().SetSecret(ctx, rec.AccountID, secret)
	if err != nil {
		s.Logger.Error("reset: secret update failed", "error", err)
		return domain.Fail(domain.CodePersistenceFailure, msgInternal)
	}
	if affected == 0 {
		return s.attemptResult(ctx, rec.AccountID, s.LoginLimit, false, msgResetFailed)
	}

	if err := s.Confirmations.Consume(ctx, rec.AccountID); err != nil {
		s.Logger.Error("reset: record consumption failed", "error", err)
	}
	return domain.OK(domain.CodeOK, "Password updated.")
}

// VerifyAssertion checks a session assertion and reports the account it was
// issued to.
func (s *AuthService) VerifyAssertion(token string) domain.Result {
	claims, err := s.Tokens.VerifyClaims(token)
	if err != nil {
		switch {
		case errors.Is(err, jwtx.ErrExpired):
			return domain.Fail(domain.CodeTokenExpired, "Token has expired.")
		case errors.Is(err, jwtx.ErrInvalidSig):
			return domain.Fail(domain.CodeTokenInvalidSig, "Unknown token.")
		default:
			return domain.Fail(domain.CodeTokenMalformed, "Unknown token.")
		}
	}

	res := domain.OK(domain.CodeOK, "Token is valid.").WithMeta("account_id", claims.Subject)
	if claims.Role != "" {
		res = res.WithMeta("role", claims.Role)
	}
	return res
}

// attemptResult burns one attempt against the account's live record and
// translates the outcome. knownGood marks callers whose credential part
// already checked out, so a plainly counted attempt reads as "already sent"
// rather than a failure.
func (s *AuthService) attemptResult(ctx context.Context, accountID string, limit int, knownGood bool, failMsg string) domain.Result {
	outcome, err := s.Confirmations.RegisterAttempt(ctx, accountID, limit)
	if err != nil {
		s.Logger.Error("attempt registration failed", "error", err)
		return domain.Fail(domain.CodePersistenceFailure, msgInternal)
	}

	switch outcome {
	case domain.AttemptExpired:
		return domain.Fail(domain.CodeExpired, msgExpired)
	case domain.AttemptBlocked:
		return domain.Fail(domain.CodeBlocked, msgBlocked)
	case domain.AttemptLockedNow:
		return domain.Fail(domain.CodeLockedNow, msgLockedNow)
	case domain.AttemptRecorded:
		if knownGood {
			return domain.Fail(domain.CodeAlreadySent, msgAlreadySent)
		}
		return domain.Fail(domain.CodeAuthFailed, failMsg)
	default:
		// Record vanished between observation and attempt.
		return domain.Fail(domain.CodeAuthFailed, failMsg)
	}
}
