// internal/middleware/edge_gate.go
package middleware

import (
	"net/http"

	"helpdesk-dashboard/internal/domain/permission"
	"helpdesk-dashboard/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// EdgeDecision is what the edge gate does with a request.
type EdgeDecision int

const (
	EdgePass EdgeDecision = iota
	EdgeToLanding
	EdgeToSignIn
)

// EdgeConfig is the edge gate's rule table. The gate only looks at whether
// the auth cookie is present; it never decodes it.
type EdgeConfig struct {
	CookieName        string
	PublicPaths       []string
	ProtectedPrefixes []string
	SignInPath        string
	LandingPath       string
}

// Decide applies the rules in order: a cookied client on a public path goes
// to the landing page, a cookieless client on a protected prefix goes to
// sign-in, anything else passes.
func (e EdgeConfig) Decide(path string, hasCookie bool) EdgeDecision {
	path = permission.CleanPath(path)
	if hasCookie && e.isPublic(path) {
		return EdgeToLanding
	}
	if !hasCookie && e.isProtected(path) {
		return EdgeToSignIn
	}
	return EdgePass
}

func (e EdgeConfig) isPublic(path string) bool {
	for _, p := range e.PublicPaths {
		if path == permission.CleanPath(p) {
			return true
		}
	}
	return false
}

func (e EdgeConfig) isProtected(path string) bool {
	for _, p := range e.ProtectedPrefixes {
		if permission.HasPathPrefix(path, p) {
			return true
		}
	}
	return false
}

// EdgeGate runs before everything else and redirects on cookie presence.
func EdgeGate(cfg EdgeConfig, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(cfg.CookieName)
		hasCookie := err == nil && cookie != ""

		switch cfg.Decide(c.Request.URL.Path, hasCookie) {
		case EdgeToLanding:
			m.EdgeRedirect("landing")
			c.Redirect(http.StatusFound, cfg.LandingPath)
			c.Abort()
		case EdgeToSignIn:
			m.EdgeRedirect("sign_in")
			c.Redirect(http.StatusFound, cfg.SignInPath)
			c.Abort()
		default:
			c.Next()
		}
	}
}
