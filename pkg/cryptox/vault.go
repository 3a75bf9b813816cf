package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// Vault turns a plaintext password into a storable secret and verifies a
// plaintext against a stored secret. The secret is an Argon2id PHC hash
// additionally wrapped with AES-256-GCM under a service-held key, so the
// stored value can be re-keyed administratively without touching the
// underlying password hashes.
//
// Wrapped format, before base64url encoding: [nonce][ciphertext][auth tag].
type Vault struct {
	aead cipher.AEAD
}

// NewVault derives a 32-byte AES-256 key from the given key material using
// SHA-256 and returns a ready-to-use Vault.
func NewVault(keyMaterial string) (*Vault, error) {
	if keyMaterial == "" {
		return nil, errors.New("cryptox: vault key material is empty")
	}

	sum := sha256.Sum256([]byte(keyMaterial))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to create GCM: %w", err)
	}

	return &Vault{aead: gcm}, nil
}

// Protect hashes the plaintext with Argon2id and wraps the hash with
// AES-256-GCM. The result is safe to persist.
func (v *Vault) Protect(plaintext string) (string, error) {
	hash, err := HashPassword(plaintext)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("cryptox: failed to generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(hash), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Verify unwraps the stored secret and compares the plaintext against the
// inner hash. Any decoding, unwrapping, or comparison failure reports a
// non-match; Verify never panics on malformed input.
func (v *Vault) Verify(plaintext, secret string) bool {
	sealed, err := base64.RawURLEncoding.DecodeString(secret)
	if err != nil {
		return false
	}
	if len(sealed) < v.aead.NonceSize() {
		return false
	}

	nonce, ciphertext := sealed[:v.aead.NonceSize()], sealed[v.aead.NonceSize():]
	hash, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return false
	}

	return VerifyPassword(plaintext, string(hash)) == nil
}
