// Package tokenstore keeps the access/refresh token pair on the client side.
package tokenstore

import (
	"time"

	"helpdesk-dashboard/internal/domain/auth"
	"helpdesk-dashboard/internal/pkg/jwt"
)

// Store is durable key-value storage for the token pair and the tenant it was
// issued for. Another holder of the same storage (a second tab) may clear it
// at any time, so callers must re-read instead of caching values.
type Store interface {
	SetTokens(pair auth.TokenPair)
	AccessToken() (string, bool)
	RefreshToken() (string, bool)
	// SetTenant records the tenant the pair belongs to; tokens whose claims
	// omit it still resolve to the right tenant on later requests.
	SetTenant(tenant string)
	Tenant() (string, bool)
	Clear()
}

// WellFormed reports whether an access token is present and parses as a JWT
// with a subject. It says nothing about server-side validity.
func WellFormed(s Store) bool {
	tok, ok := s.AccessToken()
	if !ok {
		return false
	}
	_, err := jwt.DecodeUnverified(tok)
	return err == nil
}

// IsAuthenticated is the cheap local check: a well-formed access token that
// has not passed its exp.
func IsAuthenticated(s Store) bool {
	return isAuthenticatedAt(s, time.Now())
}

func isAuthenticatedAt(s Store, now time.Time) bool {
	tok, ok := s.AccessToken()
	if !ok {
		return false
	}
	claims, err := jwt.DecodeUnverified(tok)
	if err != nil {
		return false
	}
	return !claims.Expired(now)
}
