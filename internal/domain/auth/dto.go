// internal/domain/auth/dto.go
package auth

// LoginRequest is both the dashboard's sign-in form and the backend body.
type LoginRequest struct {
	Tenant   string `json:"tenant" form:"tenant" binding:"required"`
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// LoginResponse is the backend answer to POST /auth/login.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	StatusCode   int    `json:"status_code"`
	Message      string `json:"message,omitempty"`
}

// RefreshResponse is the backend answer to GET /auth/access_token.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// MessageResponse is the generic backend acknowledgement or error body.
type MessageResponse struct {
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
}

// SessionView is the useAuth()-shaped session snapshot served to the UI.
type SessionView struct {
	User            *UserIdentity `json:"user"`
	IsAuthenticated bool          `json:"is_authenticated"`
	IsLoading       bool          `json:"is_loading"`
	Permissions     []string      `json:"permissions"`
}
