package service

import "strings"

const passwordSpecials = "@$!%*?&"

// validUsername reports whether the username is 8-16 alphanumeric characters.
func validUsername(username string) bool {
	if len(username) < 8 || len(username) > 16 {
		return false
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// validPassword enforces the password policy: 8-64 characters drawn from
// letters, digits, and @$!%*?&, with at least one lower, one upper, one
// digit, and one special.
func validPassword(password string) bool {
	if len(password) < 8 || len(password) > 64 {
		return false
	}

	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}

// validEmail is a shape check only: something@something. Real verification is
// the confirmation code itself.
func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
