package domain

import "time"

// Account is a registered user. The ID is a stable opaque identifier distinct
// from the human-chosen username; it is what ends up inside session
// assertions and confirmation records.
type Account struct {
	ID        string // opaque public id (UUID), never reused
	Username  string // unique, stored lower-case
	Email     string // unique
	FirstName string
	LastName  string
	Phone     string
	Role      string
	Secret    string // vault output: wrapped argon2id hash, never plaintext
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
