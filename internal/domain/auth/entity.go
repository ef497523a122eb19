// internal/domain/auth/entity.go
package auth

// IdentitySource records where identity fields came from.
type IdentitySource string

const (
	// SourceProvisional fields were decoded from an unverified access token.
	SourceProvisional IdentitySource = "provisional"
	// SourceServer fields came from the backend profile fetch.
	SourceServer IdentitySource = "server"
)

// UserIdentity is the current user as the dashboard knows it.
type UserIdentity struct {
	ID          string         `json:"id"`
	Username    string         `json:"username,omitempty"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Role        string         `json:"role"`
	AvatarRef   string         `json:"avatar_ref,omitempty"`
	Tenant      string         `json:"tenant,omitempty"`
	Source      IdentitySource `json:"source"`
}

// Verified reports whether the identity was confirmed by the backend.
func (u *UserIdentity) Verified() bool {
	return u != nil && u.Source == SourceServer
}

// Scope keys per-user state such as cached queries. User ids are only unique
// within a tenant, so the tenant is part of it.
func (u *UserIdentity) Scope() string {
	if u == nil || u.ID == "" {
		return ""
	}
	return u.Tenant + "/" + u.ID
}

// TokenPair is the credential pair issued at login and rotated on refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Empty reports whether neither token is set.
func (p TokenPair) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Profile is the server-truth user record from GET /user/current.
type Profile struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	FullName    string   `json:"fullname"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Avatar      string   `json:"avatar,omitempty"`
	Tenant      string   `json:"tenant,omitempty"`
	Permissions []string `json:"permissions"`
}

// Identity converts the profile into a server-sourced identity.
func (p *Profile) Identity() *UserIdentity {
	name := p.FullName
	if name == "" {
		name = p.Username
	}
	return &UserIdentity{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: name,
		Email:       p.Email,
		Role:        p.Role,
		AvatarRef:   p.Avatar,
		Tenant:      p.Tenant,
		Source:      SourceServer,
	}
}
