// Package jwtx mints and verifies the signed session assertions handed out
// after a completed password + confirmation-code login. Assertions are
// EdDSA-signed JWTs carrying the opaque account id as subject; they are
// verified statelessly and never persisted.
package jwtx

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lockstead/authgate/pkg/idx"
)

// DefaultAssertionTTL is the validity window for session assertions.
const DefaultAssertionTTL = time.Hour

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrExpired    = errors.New("jwtx: token expired")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
)

// Claims are the session assertion claims. Additive changes only, to keep
// issued assertions verifiable across deploys.
type Claims struct {
	jwt.RegisteredClaims

	// Role carried for downstream authorization decisions.
	Role string `json:"role,omitempty"`
}

// Issuer signs and verifies session assertions with a single Ed25519 key
// held for the lifetime of the process.
type Issuer struct {
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
	issuer string
	ttl    time.Duration

	// Now is the clock used for iat/exp and verification. Overridable in tests.
	Now func() time.Time
}

// NewIssuer builds an Issuer from a PKCS8 PEM-encoded Ed25519 private key.
func NewIssuer(pemKey []byte, issuer string, ttl time.Duration) (*Issuer, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: signing key is not valid PEM")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to parse signing key: %w", err)
	}

	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: signing key is not Ed25519")
	}

	if ttl <= 0 {
		ttl = DefaultAssertionTTL
	}

	return &Issuer{
		priv:   priv,
		pub:    priv.Public().(ed25519.PublicKey),
		issuer: issuer,
		ttl:    ttl,
		Now:    time.Now,
	}, nil
}

// Issue mints a signed assertion for the given account id.
func (i *Issuer) Issue(accountID string) (string, error) {
	now := i.Now().UTC()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        idx.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(i.priv)
	if err != nil {
		return "", fmt.Errorf("jwtx: failed to sign assertion: %w", err)
	}
	return signed, nil
}

// IssueWithRole is Issue with a role claim attached.
func (i *Issuer) IssueWithRole(accountID, role string) (string, error) {
	now := i.Now().UTC()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        idx.New().String(),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(i.priv)
	if err != nil {
		return "", fmt.Errorf("jwtx: failed to sign assertion: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded account id.
// Failures are typed so callers can distinguish a garbage token from an
// expired one: ErrMalformed, ErrExpired, ErrInvalidSig.
func (i *Issuer) Verify(token string) (string, error) {
	claims, err := i.VerifyClaims(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// VerifyClaims is Verify but returns the full claim set.
func (i *Issuer) VerifyClaims(token string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) { return i.pub, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return i.Now().UTC() }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrInvalidSig
		default:
			return Claims{}, ErrMalformed
		}
	}
	return claims, nil
}
