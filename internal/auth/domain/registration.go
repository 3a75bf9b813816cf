package domain

import "time"

// PendingRegistration stages a just-created, still-disabled account under its
// one-time activation code until the owner proves control of the email
// address. Entries are durable so activation survives a restart; stale
// entries (and their disabled accounts) are evicted by the sweep.
type PendingRegistration struct {
	Code      string // activation code, unique
	AccountID string
	Username  string
	Email     string
	Secret    string // stored secret of the staged account
	CreatedAt time.Time
}
