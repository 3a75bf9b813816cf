package app

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/lockstead/authgate/pkg/cryptox"
)

// loadOrGenerateSigningKey resolves the Ed25519 signing key. An empty path
// yields a fresh ephemeral key, which invalidates outstanding assertions on
// restart; persistent deployments should point AUTH_SIGNING_KEY_FILE at a
// stable location.
func loadOrGenerateSigningKey(path string) ([]byte, error) {
	if path == "" {
		return cryptox.GenerateEd25519Key()
	}

	pem, err := os.ReadFile(path)
	if err == nil {
		return pem, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	pem, err = cryptox.GenerateEd25519Key()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, pem, 0o600); err != nil {
		return nil, fmt.Errorf("failed to persist signing key: %w", err)
	}
	return pem, nil
}

// loadOrGenerateWrapKey resolves the key material for the secret-wrapping
// vault. Losing this file makes every stored secret unverifiable, so it is
// always persisted.
func loadOrGenerateWrapKey(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		return string(raw), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read wrap key: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate wrap key: %w", err)
	}
	material := base64.RawStdEncoding.EncodeToString(buf)

	if err := os.WriteFile(path, []byte(material), 0o600); err != nil {
		return "", fmt.Errorf("failed to persist wrap key: %w", err)
	}
	return material, nil
}
