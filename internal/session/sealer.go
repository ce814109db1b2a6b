// Package session seals small values, such as an OAuth access token, into a
// signed cookie value. Sealed values are readable by the holder but cannot be
// forged without the server secret.
package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTTL = 7 * 24 * time.Hour

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrExpiredSession = errors.New("session expired")
	ErrMissingSecret  = errors.New("session secret is required")
)

type claims struct {
	jwt.RegisteredClaims
	Value string `json:"v"`
}

type Sealer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewSealer derives the signing key from secret. A ttl of zero uses
// DefaultTTL.
func NewSealer(secret string, ttl time.Duration) (*Sealer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	key := sha256.Sum256([]byte(secret))
	return &Sealer{key: key[:], ttl: ttl, now: time.Now}, nil
}

func (s *Sealer) TTL() time.Duration {
	return s.ttl
}

func (s *Sealer) Seal(value string) (string, error) {
	now := s.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Value: value,
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

func (s *Sealer) Open(sealed string) (string, error) {
	sealed = strings.TrimSpace(sealed)
	if sealed == "" {
		return "", ErrInvalidSession
	}
	var parsed claims
	_, err := jwt.ParseWithClaims(sealed, &parsed, func(token *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "", ErrExpiredSession
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return parsed.Value, nil
}
