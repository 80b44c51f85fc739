package services

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// fallbackTokenTTL is assumed when the backend omits expires_in and the
// token carries no usable claims.
const fallbackTokenTTL = 15 * time.Minute

// tokenTimes derives the issue and expiry timestamps for a freshly issued
// access token. expires_in wins when the backend provides it; otherwise the
// token's own registered claims are read without signature verification.
// Verifying is the backend's job, the client only schedules from the claims.
func tokenTimes(token string, expiresIn int64, now time.Time) (issuedAt, expiresAt time.Time) {
	issuedAt = now
	if expiresIn > 0 {
		return issuedAt, now.Add(time.Duration(expiresIn) * time.Second)
	}

	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err == nil {
		if claims.IssuedAt != nil {
			issuedAt = claims.IssuedAt.Time
		}
		if claims.ExpiresAt != nil {
			return issuedAt, claims.ExpiresAt.Time
		}
	}
	return issuedAt, now.Add(fallbackTokenTTL)
}
