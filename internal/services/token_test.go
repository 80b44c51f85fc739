package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return token
}

func TestTokenTimesPrefersExpiresIn(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	issuedAt, expiresAt := tokenTimes("opaque-token", 3600, now)

	if !issuedAt.Equal(now) {
		t.Errorf("issuedAt = %v, want %v", issuedAt, now)
	}
	if want := now.Add(time.Hour); !expiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want %v", expiresAt, want)
	}
}

func TestTokenTimesReadsClaims(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	iat := now.Add(-time.Minute)
	exp := now.Add(45 * time.Minute)
	token := signedToken(t, jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(iat),
		ExpiresAt: jwt.NewNumericDate(exp),
	})

	issuedAt, expiresAt := tokenTimes(token, 0, now)

	if !issuedAt.Equal(iat) {
		t.Errorf("issuedAt = %v, want claim value %v", issuedAt, iat)
	}
	if !expiresAt.Equal(exp) {
		t.Errorf("expiresAt = %v, want claim value %v", expiresAt, exp)
	}
}

func TestTokenTimesFallsBack(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token string
	}{
		{"opaque token", "not-a-jwt"},
		{"jwt without exp", signedToken(t, jwt.RegisteredClaims{Subject: "u-1"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuedAt, expiresAt := tokenTimes(tt.token, 0, now)
			if !issuedAt.Equal(now) {
				t.Errorf("issuedAt = %v, want %v", issuedAt, now)
			}
			if want := now.Add(fallbackTokenTTL); !expiresAt.Equal(want) {
				t.Errorf("expiresAt = %v, want fallback %v", expiresAt, want)
			}
		})
	}
}
