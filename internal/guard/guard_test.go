package guard

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"helpdesk-dashboard/internal/domain/auth"
	"helpdesk-dashboard/internal/domain/permission"
	"helpdesk-dashboard/internal/middleware"
	"helpdesk-dashboard/internal/pkg/apiclient"
	"helpdesk-dashboard/internal/pkg/jwt"
	"helpdesk-dashboard/internal/pkg/querycache"
	"helpdesk-dashboard/internal/pkg/tokenstore"
	"helpdesk-dashboard/internal/session"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func state(status session.Status, keys ...permission.Key) session.State {
	return session.State{Status: status, Permissions: permission.NewSet(keys...)}
}

func TestEvaluate_ScenarioAnyVersusAll(t *testing.T) {
	st := state(session.Authenticated, permission.ViewUsers)
	required := []permission.Key{permission.ViewUsers, permission.EditUsers}

	assert.Equal(t, Render, Evaluate(st, required, Any))
	assert.Equal(t, RedirectForbidden, Evaluate(st, required, All))
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		st       session.State
		required []permission.Key
		mode     Mode
		want     Decision
	}{
		{"loading renders nothing", state(session.Validating, permission.ViewUsers), nil, Any, Wait},
		{"unauthenticated", state(session.Unauthenticated), nil, Any, RedirectSignIn},
		{"unauthenticated with requirement", state(session.Unauthenticated), []permission.Key{permission.ViewUsers}, Any, RedirectSignIn},
		{"empty requirement is auth-only", state(session.Authenticated), nil, Any, Render},
		{"empty requirement all mode", state(session.Authenticated), []permission.Key{}, All, Render},
		{"missing permission", state(session.Authenticated, permission.ViewRoles), []permission.Key{permission.ViewUsers}, Any, RedirectForbidden},
		{"all held", state(session.Authenticated, permission.ViewUsers, permission.EditUsers), []permission.Key{permission.ViewUsers, permission.EditUsers}, All, Render},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.st, tt.required, tt.mode))
		})
	}
}

func TestAllowedAndComponent(t *testing.T) {
	st := state(session.Authenticated, permission.ViewUsers, permission.EditUsers)

	assert.True(t, Allowed(st, Requirement{}))
	assert.True(t, Allowed(st, Requirement{Permission: permission.EditUsers}))
	assert.False(t, Allowed(st, Requirement{Permission: permission.DeleteUsers}))
	assert.True(t, Allowed(st, Requirement{Any: []permission.Key{permission.DeleteUsers, permission.EditUsers}}))
	assert.False(t, Allowed(st, Requirement{All: []permission.Key{permission.DeleteUsers, permission.EditUsers}}))
	assert.False(t, Allowed(state(session.Validating, permission.EditUsers), Requirement{Permission: permission.EditUsers}))

	assert.Equal(t, "delete", Component(st, Requirement{Permission: permission.EditUsers}, "delete", ""))
	assert.Equal(t, "", Component(st, Requirement{Permission: permission.DeleteUsers}, "delete", ""))
}

// backend fakes /user/current: bearer "<sub>" tokens map onto profiles.
func backendServer(t *testing.T, profiles map[string]auth.Profile, status int) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET(apiclient.CurrentUserPath, func(c *gin.Context) {
		if status != http.StatusOK {
			c.JSON(status, gin.H{"message": "backend says no"})
			return
		}
		tok := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		claims, err := jwt.DecodeUnverified(tok)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "bad token"})
			return
		}
		p, ok := profiles[claims.Subject]
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "unknown user"})
			return
		}
		c.JSON(http.StatusOK, p)
	})
	r.GET(apiclient.RefreshPath, func(c *gin.Context) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "refresh token revoked"})
	})
	r.POST(apiclient.LogoutPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func signedAccess(t *testing.T, sub string) string {
	t.Helper()
	tok := gojwt.NewWithClaims(gojwt.SigningMethodHS256, &jwt.Claims{
		Name: sub,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func dashboard(t *testing.T, backendURL string) *gin.Engine {
	t.Helper()
	logger := zaptest.NewLogger(t)
	backend := apiclient.NewBackend(apiclient.Config{BaseURL: backendURL, Timeout: time.Second}, nil, nil, nil, logger)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Session(middleware.SessionConfig{
		Session: session.Config{SignInPath: "/sign-in", LogoutTimeout: time.Second},
		Backend: backend,
		Cache:   querycache.NewMemory(),
		Logger:  logger,
	}))

	g := New(Config{SignInPath: "/sign-in", ForbiddenPath: "/forbidden", RetryAfter: 2 * time.Second}, nil)
	ok := func(c *gin.Context) { c.String(http.StatusOK, "protected") }
	r.GET("/dashboard/users", g.Page(permission.ViewUsers, permission.EditUsers), ok)
	r.GET("/dashboard/users/edit", g.PageAll(permission.ViewUsers, permission.EditUsers), ok)

	table, err := permission.NewRouteTable([]permission.RouteRule{
		{Path: "/dashboard"},
		{Path: "/dashboard/roles", Required: []permission.Key{permission.ViewRoles}},
	})
	require.NoError(t, err)
	routed := r.Group("/dashboard", g.Routes(table))
	routed.GET("/roles", ok)
	routed.GET("/home", ok)
	return r
}

func get(r http.Handler, path, access string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if access != "" {
		req.AddCookie(&http.Cookie{Name: tokenstore.AccessCookie, Value: access})
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPageGuard_Middleware(t *testing.T) {
	srv := backendServer(t, map[string]auth.Profile{
		"ann": {ID: "ann", Permissions: []string{"view_users"}},
		"bob": {ID: "bob", Permissions: []string{"view_roles"}},
	}, http.StatusOK)
	r := dashboard(t, srv.URL)

	t.Run("no session redirects to sign-in", func(t *testing.T) {
		w := get(r, "/dashboard/users", "")
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/sign-in", w.Header().Get("Location"))
	})

	t.Run("any semantics grants", func(t *testing.T) {
		w := get(r, "/dashboard/users", signedAccess(t, "ann"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "protected", w.Body.String())
	})

	t.Run("all semantics forbids", func(t *testing.T) {
		w := get(r, "/dashboard/users/edit", signedAccess(t, "ann"))
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/forbidden", w.Header().Get("Location"))
		assert.NotContains(t, w.Body.String(), "protected")
	})

	t.Run("json clients get a status", func(t *testing.T) {
		w := get(r, "/dashboard/users/edit", signedAccess(t, "ann"), "Accept", "application/json")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), `"redirect":"/forbidden"`)
	})

	t.Run("route table", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, get(r, "/dashboard/roles", signedAccess(t, "bob")).Code)
		assert.Equal(t, http.StatusSeeOther, get(r, "/dashboard/roles", signedAccess(t, "ann")).Code)
		assert.Equal(t, http.StatusOK, get(r, "/dashboard/home", signedAccess(t, "ann")).Code)
	})
}

func TestPageGuard_WaitsWhileBackendIsDown(t *testing.T) {
	srv := backendServer(t, nil, http.StatusInternalServerError)
	r := dashboard(t, srv.URL)

	w := get(r, "/dashboard/users", signedAccess(t, "ann"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Empty(t, w.Body.String())
	for _, c := range w.Result().Cookies() {
		assert.NotEqual(t, tokenstore.AccessCookie, c.Name, "session must not be torn down")
	}
}

func TestPageGuard_StaleCookieRedirectsOnce(t *testing.T) {
	srv := backendServer(t, map[string]auth.Profile{}, http.StatusOK)
	r := dashboard(t, srv.URL)

	w := get(r, "/dashboard/users", signedAccess(t, "ghost"))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/sign-in?reason=session_expired", w.Header().Get("Location"))

	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == tokenstore.AccessCookie {
			cleared = c.MaxAge < 0 && c.Value == ""
		}
	}
	assert.True(t, cleared, "access cookie should be expired")
	assert.Len(t, w.Header().Values("Location"), 1)
}
