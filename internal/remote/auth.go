package remote

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry reads the exp claim of a bearer token without verifying it.
// Verification is the server's job; the client only needs to know when to stop trying.
func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// tokenExpired reports whether the token carries an exp claim in the past.
// Opaque tokens are never considered expired.
func tokenExpired(token string, now time.Time) bool {
	exp, ok := tokenExpiry(token)
	if !ok {
		return false
	}
	return !now.Before(exp)
}
