// internal/middleware/session_middleware.go
package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"helpdesk-dashboard/internal/pkg/apiclient"
	"helpdesk-dashboard/internal/pkg/metrics"
	"helpdesk-dashboard/internal/pkg/querycache"
	"helpdesk-dashboard/internal/pkg/redirect"
	"helpdesk-dashboard/internal/pkg/response"
	"helpdesk-dashboard/internal/pkg/tokenstore"
	"helpdesk-dashboard/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SessionConfig struct {
	Cookies tokenstore.CookieConfig
	Session session.Config
	Backend *apiclient.Backend
	Cache   querycache.Cache
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Session resolves the request's session from the token cookies. It wires a
// fresh redirect bus to the session's expiry path, confirms a provisional
// session against the backend, and after the handlers ran turns a pending
// navigation into the response.
func Session(cfg SessionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		store := tokenstore.NewCookieStore(c.Request, c.Writer, cfg.Cookies)
		bus := redirect.NewBus()
		nav := redirect.NewNavigator(ctx, c.Request.URL.Path)
		client := cfg.Backend.Client(store, bus)

		sess := session.New(session.Deps{
			Tokens:    store,
			Backend:   apiclient.NewAuthAPI(client),
			Cache:     cfg.Cache,
			Navigator: nav,
			Logger:    cfg.Logger.With(zap.String("request_id", RequestID(c))),
			Metrics:   cfg.Metrics,
		}, cfg.Session)

		unsubscribe := bus.OnRedirectToLogin(func() {
			sess.Expire(ctx)
		})
		defer unsubscribe()

		c.Set(sessionKey, sess)
		c.Set(navigatorKey, nav)
		c.Set(clientKey, client)
		c.Set(busKey, bus)

		if sess.State().IsLoading() {
			// Errors other than a rejection keep the session validating; the
			// guards answer those requests with Wait.
			_ = sess.Validate(ctx)
		}

		c.Next()

		flushNavigation(c, nav, cfg.Session.SignInPath)
	}
}

// flushNavigation answers with the pending navigation unless a handler
// already wrote a response.
func flushNavigation(c *gin.Context, nav *redirect.Navigator, signInPath string) {
	target, ok := nav.Pending()
	if !ok || c.Writer.Written() {
		return
	}

	if !WantsJSON(c) {
		c.Redirect(http.StatusSeeOther, target)
		return
	}

	status := http.StatusForbidden
	message := "insufficient permissions"
	if u, err := url.Parse(target); err == nil && u.Path == signInPath {
		status = http.StatusUnauthorized
		message = "authentication required"
	}
	response.Error(c, status, message, nil, gin.H{"redirect": target})
}

// WantsJSON reports whether the client asked for JSON rather than a page.
func WantsJSON(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
