// Package auth issues and checks session tokens, hashes passwords and runs
// the GitHub OAuth flow. It knows nothing about storage; the session manager
// in internal/service ties these pieces to accounts and profiles.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "family-finance"

// DefaultTokenTTL is used when NewTokenService is given a non-positive TTL.
const DefaultTokenTTL = 7 * 24 * time.Hour

// ErrInvalidToken is returned by Validate for any token that must not be
// trusted: bad signature, wrong issuer, expired or missing subject.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenService signs and validates HS256 session tokens. The token subject
// is the account ID; everything else about the user is loaded fresh from
// storage on every restore.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService requires a secret of at least 16 bytes.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL is how long freshly issued tokens stay valid.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Generate issues a token for userID and reports when it expires.
func (s *TokenService) Generate(userID string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	c := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Issuer:    issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate returns the user ID carried by tokenStr. Every failure wraps
// ErrInvalidToken.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	userID, _, err := s.Parse(tokenStr)
	return userID, err
}

// Parse is Validate that also reports when the token expires.
func (s *TokenService) Parse(tokenStr string) (string, time.Time, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", time.Time{}, fmt.Errorf("%w: expired", ErrInvalidToken)
		}
		return "", time.Time{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || c.Subject == "" || c.ExpiresAt == nil {
		return "", time.Time{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return c.Subject, c.ExpiresAt.Time, nil
}
