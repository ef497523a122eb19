// internal/pkg/jwt/claims.go
package jwt

import (
	"fmt"
	"time"

	"helpdesk-dashboard/internal/domain/auth"
	xerrors "helpdesk-dashboard/internal/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

const (
	PurposeAccess  = "access"
	PurposeRefresh = "refresh"
)

// Claims carried by backend-issued tokens. The dashboard never holds the
// signing key, so on its side these are untrusted until the profile fetch.
type Claims struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Role    string `json:"role,omitempty"`
	Tenant  string `json:"tenant,omitempty"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// DecodeUnverified reads the claims without checking the signature. A token
// that does not parse or carries no subject is reported as ErrMalformedToken.
func DecodeUnverified(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrMalformedToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", xerrors.ErrMalformedToken)
	}
	return claims, nil
}

// Expired reports whether the token's exp is at or before now. Tokens
// without exp never expire locally.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Before(c.ExpiresAt.Time)
}

// Identity is the provisional identity seeded from the claims.
func (c *Claims) Identity() *auth.UserIdentity {
	return &auth.UserIdentity{
		ID:          c.Subject,
		DisplayName: c.Name,
		Email:       c.Email,
		Role:        c.Role,
		Tenant:      c.Tenant,
		Source:      auth.SourceProvisional,
	}
}
