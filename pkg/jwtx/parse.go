package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ParseUnverified decodes the claims of a JWT without checking its signature.
//
// The console is a client of the platform API and never holds the signing
// key, so it only reads claims to plan a refresh. Nothing here may be used to
// make an authorization decision.
func ParseUnverified(token string) (Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Claims{}, ErrMalformed
	}
	return claims, nil
}

// ExpiryOf returns the exp claim of a JWT, or false when the token is opaque
// or carries no expiry.
func ExpiryOf(token string) (time.Time, bool) {
	claims, err := ParseUnverified(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
