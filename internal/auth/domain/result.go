package domain

// Result is the structured outcome every core operation returns. No operation
// leaves the caller without one; collaborator failures are translated, never
// re-thrown across the boundary.
type Result struct {
	Success  bool              `json:"status"`
	Code     Code              `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata"`
}

// Code is a machine-readable outcome tag. User-facing messages deliberately
// avoid distinguishing "wrong password" from "unknown user"; codes follow the
// same rule, so AuthFailed covers both.
type Code string

const (
	CodeOK                 Code = "ok"
	CodeTwoFactorSent      Code = "two_factor_sent"
	CodeAlreadySent        Code = "already_sent"
	CodeAuthFailed         Code = "auth_failed"
	CodeValidationError    Code = "validation_error"
	CodeExpired            Code = "expired"
	CodeBlocked            Code = "blocked"
	CodeLockedNow          Code = "locked_now"
	CodeConflict           Code = "conflict"
	CodePersistenceFailure Code = "persistence_failure"
	CodeTokenMalformed     Code = "token_malformed"
	CodeTokenExpired       Code = "token_expired"
	CodeTokenInvalidSig    Code = "token_invalid_signature"
)

// OK builds a success result.
func OK(code Code, message string) Result {
	return Result{Success: true, Code: code, Message: message, Metadata: map[string]string{}}
}

// Fail builds a failure result.
func Fail(code Code, message string) Result {
	return Result{Success: false, Code: code, Message: message, Metadata: map[string]string{}}
}

// WithMeta returns a copy of the result with the key/value attached.
func (r Result) WithMeta(key, value string) Result {
	meta := make(map[string]string, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		meta[k] = v
	}
	meta[key] = value
	r.Metadata = meta
	return r
}
