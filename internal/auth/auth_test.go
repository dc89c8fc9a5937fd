package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestTokenProvider(t *testing.T) {
	valid, err := IssueToken(secret, "user-1", time.Hour)
	require.NoError(t, err)
	noExpiry, err := IssueToken(secret, "user-2", 0)
	require.NoError(t, err)
	otherSecret, err := IssueToken("other-secret", "user-1", time.Hour)
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte(secret))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "user-1"}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := []struct {
		name    string
		secret  string
		token   string
		want    string
		wantErr bool
	}{
		{name: "valid", secret: secret, token: valid, want: "user-1"},
		{name: "surrounding whitespace", secret: secret, token: "  " + valid + "\n", want: "user-1"},
		{name: "no expiry", secret: secret, token: noExpiry, want: "user-2"},
		{name: "empty token", secret: secret, token: "", wantErr: true},
		{name: "malformed", secret: secret, token: "not.a.jwt", wantErr: true},
		{name: "wrong secret", secret: secret, token: otherSecret, wantErr: true},
		{name: "expired", secret: secret, token: expired, wantErr: true},
		{name: "missing subject", secret: secret, token: noSubject, wantErr: true},
		{name: "unexpected algorithm", secret: secret, token: hs512, wantErr: true},
		{name: "no secret configured", secret: "", token: valid, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTokenProvider(tt.secret, tt.token).UserID(context.Background())
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnauthenticated), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenProviderClock(t *testing.T) {
	token, err := IssueToken(secret, "user-1", time.Hour)
	require.NoError(t, err)

	p := NewTokenProvider(secret, token)
	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = p.UserID(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestStaticProvider(t *testing.T) {
	got, err := StaticProvider("user-1").UserID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-1", got)

	_, err = StaticProvider("").UserID(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestIssueTokenValidation(t *testing.T) {
	_, err := IssueToken("", "user-1", time.Hour)
	assert.Error(t, err)
	_, err = IssueToken(secret, "", time.Hour)
	assert.Error(t, err)
}
