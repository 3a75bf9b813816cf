package domain

import "time"

// ConfirmationRecord is a live one-time code challenge for an account. At
// most one exists per account at any instant; issuance is refused while one
// is live. The same physical record carries the retry budget for both the
// login phase and the code-validation phase, with the applicable limit chosen
// by the caller.
type ConfirmationRecord struct {
	AccountID    string
	Code         string
	Retries      int
	BlockedUntil *time.Time // nil when not blocked
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// Expired reports whether the record's code lifetime has elapsed.
func (r *ConfirmationRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Blocked reports whether the record is inside an active lockout window.
func (r *ConfirmationRecord) Blocked(now time.Time) bool {
	return r.BlockedUntil != nil && now.Before(*r.BlockedUntil)
}

// AttemptOutcome is the result of registering an attempt against a record.
type AttemptOutcome int

const (
	// AttemptNoRecord means no live record exists for the account.
	AttemptNoRecord AttemptOutcome = iota
	// AttemptExpired means the record's lifetime elapsed; it has been deleted.
	AttemptExpired
	// AttemptBlocked means the account is inside an active lockout window.
	AttemptBlocked
	// AttemptLockedNow means this attempt exceeded the limit and started a
	// lockout window.
	AttemptLockedNow
	// AttemptRecorded means the attempt was counted and the record stays live.
	AttemptRecorded
)

func (o AttemptOutcome) String() string {
	switch o {
	case AttemptNoRecord:
		return "no_record"
	case AttemptExpired:
		return "expired"
	case AttemptBlocked:
		return "blocked"
	case AttemptLockedNow:
		return "locked_now"
	case AttemptRecorded:
		return "recorded"
	default:
		return "unknown"
	}
}
