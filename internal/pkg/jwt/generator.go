// internal/pkg/jwt/generator.go
package jwt

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Subject is the identity a token is issued for.
type Subject struct {
	ID     string
	Name   string
	Email  string
	Role   string
	Tenant string
}

// Issued describes a freshly signed token.
type Issued struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

type Generator struct {
	priv       *rsa.PrivateKey
	issuer     string
	kid        string // key id for rotation
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	now        func() time.Time
}

func NewGenerator(priv *rsa.PrivateKey, issuer, kid string, accessTTL, refreshTTL time.Duration) *Generator {
	return &Generator{
		priv:       priv,
		issuer:     issuer,
		kid:        kid,
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Generate signs a token for sub with the given purpose and lifetime.
func (g *Generator) Generate(sub Subject, purpose string, ttl time.Duration) (Issued, error) {
	if g.priv == nil {
		return Issued{}, fmt.Errorf("jwt generator has nil private key")
	}

	now := g.now()
	jti := ulid.Make().String()
	exp := now.Add(ttl)

	claims := &Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   sub.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}
	// Refresh tokens only mint access tokens, so they carry no profile claims.
	if purpose == PurposeAccess {
		claims.Name = sub.Name
		claims.Email = sub.Email
		claims.Role = sub.Role
		claims.Tenant = sub.Tenant
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	signed, err := tok.SignedString(g.priv)
	if err != nil {
		return Issued{}, fmt.Errorf("sign token: %w", err)
	}
	return Issued{Token: signed, JTI: jti, ExpiresAt: exp}, nil
}

// GeneratePair issues an access token and a refresh token for sub.
func (g *Generator) GeneratePair(sub Subject) (access, refresh Issued, err error) {
	access, err = g.Generate(sub, PurposeAccess, g.AccessTTL)
	if err != nil {
		return Issued{}, Issued{}, err
	}
	refresh, err = g.Generate(sub, PurposeRefresh, g.RefreshTTL)
	if err != nil {
		return Issued{}, Issued{}, err
	}
	return access, refresh, nil
}
