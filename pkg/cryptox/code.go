package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeLength is the length of generated confirmation codes. Long enough to
// resist online guessing within a code's five minute lifetime, short enough
// to retype from an email.
const CodeLength = 10

const codeCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateCode returns a cryptographically random one-time confirmation code.
func GenerateCode() (string, error) {
	code := make([]byte, CodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", fmt.Errorf("cryptox: failed to generate code: %w", err)
		}
		code[i] = codeCharset[n.Int64()]
	}
	return string(code), nil
}
