package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthenticated means no valid session identifies the user.
	ErrUnauthenticated = errors.New("not signed in")
)

// Provider yields the stable id of the signed-in user.
type Provider interface {
	UserID(ctx context.Context) (string, error)
}

// StaticProvider always returns the same user id.
type StaticProvider string

func (p StaticProvider) UserID(context.Context) (string, error) {
	if p == "" {
		return "", ErrUnauthenticated
	}
	return string(p), nil
}

// TokenProvider reads the user id from the subject of an HS256 session token.
type TokenProvider struct {
	secret []byte
	token  string
	now    func() time.Time
}

func NewTokenProvider(secret, token string) *TokenProvider {
	return &TokenProvider{
		secret: []byte(secret),
		token:  strings.TrimSpace(token),
		now:    time.Now,
	}
}

func (p *TokenProvider) UserID(context.Context) (string, error) {
	return ParseToken(p.secret, p.token, p.now)
}

// ParseToken validates token and returns its subject.
func ParseToken(secret []byte, token string, now func() time.Time) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}
	if len(secret) == 0 {
		return "", fmt.Errorf("%w: no signing secret configured", ErrUnauthenticated)
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return claims.Subject, nil
}

// IssueToken signs a session token for userID valid for ttl. A zero ttl
// issues a token without expiry.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("signing secret cannot be empty")
	}
	if userID == "" {
		return "", errors.New("user id cannot be empty")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  userID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}
