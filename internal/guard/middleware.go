package guard

import (
	"time"

	"helpdesk-dashboard/internal/domain/permission"
	"helpdesk-dashboard/internal/middleware"
	"helpdesk-dashboard/internal/pkg/metrics"
	"helpdesk-dashboard/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Config struct {
	SignInPath    string
	ForbiddenPath string
	RetryAfter    time.Duration
}

// Guards builds page-level gin middleware. They must run after the session
// middleware; redirects go through the request's navigator, so the first
// navigation of a request wins and one that targets the current page is
// dropped.
type Guards struct {
	cfg     Config
	metrics *metrics.Metrics
}

func New(cfg Config, m *metrics.Metrics) *Guards {
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = time.Second
	}
	return &Guards{cfg: cfg, metrics: m}
}

// Page lets the request through when any of required is held.
func (g *Guards) Page(required ...permission.Key) gin.HandlerFunc {
	return func(c *gin.Context) {
		g.enforce(c, required, Any)
	}
}

// PageAll lets the request through only when every key is held.
func (g *Guards) PageAll(required ...permission.Key) gin.HandlerFunc {
	return func(c *gin.Context) {
		g.enforce(c, required, All)
	}
}

// Routes guards by the rule table; paths without a rule are unrestricted.
func (g *Guards) Routes(table *permission.RouteTable) gin.HandlerFunc {
	return func(c *gin.Context) {
		rule, ok := table.Match(permission.CleanPath(c.Request.URL.Path))
		if !ok {
			c.Next()
			return
		}
		g.enforce(c, rule.Required, Any)
	}
}

func (g *Guards) enforce(c *gin.Context, required []permission.Key, mode Mode) {
	sess := middleware.MustGetSession(c)
	d := Evaluate(sess.State(), required, mode)
	g.metrics.GuardDecision(d.String())

	switch d {
	case Render:
		c.Next()
	case Wait:
		response.Wait(c, g.cfg.RetryAfter)
	case RedirectSignIn:
		g.navigate(c, g.cfg.SignInPath)
	case RedirectForbidden:
		g.navigate(c, g.cfg.ForbiddenPath)
	}
}

// navigate only records the target; the session middleware writes the
// redirect once the handler chain has unwound.
func (g *Guards) navigate(c *gin.Context, target string) {
	c.Abort()
	if nav, ok := middleware.GetNavigator(c); ok {
		nav.Navigate(target)
	}
}
