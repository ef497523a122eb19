// internal/middleware/context.go
package middleware

import (
	"helpdesk-dashboard/internal/pkg/apiclient"
	"helpdesk-dashboard/internal/pkg/redirect"
	"helpdesk-dashboard/internal/session"

	"github.com/gin-gonic/gin"
)

const (
	sessionKey   = "session"
	navigatorKey = "navigator"
	clientKey    = "api_client"
	busKey       = "redirect_bus"
	requestIDKey = "request_id"
)

// GetSession returns the request's session, if the session middleware ran.
func GetSession(c *gin.Context) (*session.Session, bool) {
	v, exists := c.Get(sessionKey)
	if !exists {
		return nil, false
	}
	s, ok := v.(*session.Session)
	return s, ok
}

// MustGetSession gets the session from context or panics
func MustGetSession(c *gin.Context) *session.Session {
	s, ok := GetSession(c)
	if !ok {
		panic("session not found in context")
	}
	return s
}

func GetNavigator(c *gin.Context) (*redirect.Navigator, bool) {
	v, exists := c.Get(navigatorKey)
	if !exists {
		return nil, false
	}
	n, ok := v.(*redirect.Navigator)
	return n, ok
}

// MustGetClient gets the session-bound backend client or panics
func MustGetClient(c *gin.Context) *apiclient.Client {
	v, exists := c.Get(clientKey)
	if !exists {
		panic("api client not found in context")
	}
	return v.(*apiclient.Client)
}

func GetBus(c *gin.Context) (*redirect.Bus, bool) {
	v, exists := c.Get(busKey)
	if !exists {
		return nil, false
	}
	b, ok := v.(*redirect.Bus)
	return b, ok
}

// UserID returns the current user's id, empty when nobody is signed in.
func UserID(c *gin.Context) string {
	s, ok := GetSession(c)
	if !ok {
		return ""
	}
	if u := s.State().User; u != nil {
		return u.ID
	}
	return ""
}

// Scope returns the tenant-qualified key for the current user's cached data,
// empty when nobody is signed in.
func Scope(c *gin.Context) string {
	s, ok := GetSession(c)
	if !ok {
		return ""
	}
	return s.State().User.Scope()
}

// IsAuthenticated checks if the session was confirmed by the backend
func IsAuthenticated(c *gin.Context) bool {
	s, ok := GetSession(c)
	return ok && s.State().IsAuthenticated()
}

// RequestID returns the id assigned by the logging middleware.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
