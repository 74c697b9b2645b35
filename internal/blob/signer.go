package blob

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken reports a download token that is malformed, expired, or
// issued for a different key.
var ErrInvalidToken = errors.New("invalid download token")

const tokenIssuer = "reelsub"

// Claims are carried by a signed download token. Subject holds the blob key.
type Claims struct {
	jwt.RegisteredClaims
}

// Signer issues and checks HS256 download tokens.
type Signer struct {
	key []byte
	now func() time.Time
}

// NewSigner builds a signer from a shared secret.
func NewSigner(key string) (*Signer, error) {
	if len(strings.TrimSpace(key)) == 0 {
		return nil, errors.New("signing key is required")
	}
	return &Signer{key: []byte(key), now: time.Now}, nil
}

// SetClock overrides the time source.
func (s *Signer) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Token signs key for ttl.
func (s *Signer) Token(key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("sign %s: ttl must be positive", key)
	}
	issued := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   key,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", key, err)
	}
	return token, nil
}

// Verify checks that token is valid now and was issued for key.
func (s *Signer) Verify(token, key string) error {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject != key {
		return fmt.Errorf("%w: token issued for %q", ErrInvalidToken, claims.Subject)
	}
	return nil
}
