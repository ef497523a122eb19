package app

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"helpdesk-dashboard/internal/config"
	"helpdesk-dashboard/internal/domain/auth"
	"helpdesk-dashboard/internal/mockapi"
	"helpdesk-dashboard/internal/pkg/tokenstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type stack struct {
	mock    *mockapi.Server
	mockURL string
	gateway *httptest.Server
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := zaptest.NewLogger(t)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	mock, err := mockapi.New(mockapi.Config{Key: key, AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour}, logger)
	require.NoError(t, err)
	backend := httptest.NewServer(mock.Handler())
	t.Cleanup(backend.Close)

	return &stack{mock: mock, mockURL: backend.URL, gateway: newGateway(t, backend.URL)}
}

// newGateway serves the dashboard in front of the backend at apiURL.
func newGateway(t *testing.T, apiURL string) *httptest.Server {
	t.Helper()
	cfg := config.AppConfig{
		AllowedOrigins:   []string{"*"},
		APIBaseURL:       apiURL,
		APITimeout:       5 * time.Second,
		APIRetries:       1,
		RefreshTimeout:   5 * time.Second,
		RotationGrace:    30 * time.Second,
		LogoutTimeout:    2 * time.Second,
		AccessCookieTTL:  time.Hour,
		RefreshCookieTTL: 24 * time.Hour,
		QueryCacheTTL:    time.Minute,
		LoginMaxAttempts: 3,
		LoginWindow:      time.Minute,
		SignInPath:       "/sign-in",
		ForbiddenPath:    "/forbidden",
		LandingPath:      "/dashboard",
		WaitRetryAfter:   time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv, err := NewServer(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	go srv.hub.Run(ctx)

	gateway := httptest.NewServer(srv.Handler())
	t.Cleanup(gateway.Close)
	return gateway
}

type browser struct {
	t      *testing.T
	base   string
	jar    *cookiejar.Jar
	client *http.Client
}

func (s *stack) browser(t *testing.T) *browser {
	return newBrowser(t, s.gateway.URL)
}

func newBrowser(t *testing.T, base string) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: base,
		jar:  jar,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// do sends a request; asJSON picks the API flavour over the page flavour.
func (b *browser) do(method, path string, body any, asJSON bool) (*http.Response, envelope) {
	b.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(b.t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, b.base+path, r)
	require.NoError(b.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if asJSON {
		req.Header.Set("Accept", "application/json")
	} else {
		req.Header.Set("Accept", "text/html")
	}

	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &env)
	return resp, env
}

func (b *browser) login(username string) {
	b.t.Helper()
	b.loginAs("acme", username)
}

func (b *browser) loginAs(tenant, username string) {
	b.t.Helper()
	resp, env := b.do(http.MethodPost, "/auth/login", auth.LoginRequest{Tenant: tenant, Username: username, Password: "password"}, true)
	require.Equal(b.t, http.StatusOK, resp.StatusCode, env.Message)
}

func (b *browser) cookie(name string) string {
	u, _ := url.Parse(b.base)
	for _, c := range b.jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func TestGateway_EdgeRedirectsAnonymous(t *testing.T) {
	s := newStack(t)
	b := s.browser(t)

	resp, _ := b.do(http.MethodGet, "/dashboard/tickets", nil, false)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/sign-in", resp.Header.Get("Location"))

	resp, _ = b.do(http.MethodGet, "/sign-in", nil, false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGateway_LoginAndGuards(t *testing.T) {
	s := newStack(t)
	b := s.browser(t)
	b.login("agent")

	// A signed-in browser never sees the sign-in page.
	resp, _ := b.do(http.MethodGet, "/sign-in", nil, false)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	resp, env := b.do(http.MethodGet, "/dashboard/tickets", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Actions struct {
			Create bool `json:"create"`
			Edit   bool `json:"edit"`
			Delete bool `json:"delete"`
		} `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.True(t, list.Actions.Create)
	assert.True(t, list.Actions.Edit)
	assert.False(t, list.Actions.Delete)

	resp, env = b.do(http.MethodGet, "/dashboard/users", nil, true)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.JSONEq(t, `{"redirect":"/forbidden"}`, string(env.Data))

	resp, _ = b.do(http.MethodGet, "/dashboard/users", nil, false)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/forbidden", resp.Header.Get("Location"))

	resp, _ = b.do(http.MethodDelete, "/dashboard/tickets/1", nil, true)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, env = b.do(http.MethodGet, "/api/session", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view auth.SessionView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.True(t, view.IsAuthenticated)
	assert.False(t, view.IsLoading)
	assert.Equal(t, auth.SourceServer, view.User.Source)
	assert.Contains(t, view.Permissions, "view_tickets")
}

func TestGateway_MutationInvalidatesCachedList(t *testing.T) {
	s := newStack(t)
	b := s.browser(t)
	b.login("admin")

	count := func() int {
		resp, env := b.do(http.MethodGet, "/dashboard/tags", nil, true)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var list struct {
			Items struct {
				Total int `json:"total"`
			} `json:"items"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &list))
		return list.Items.Total
	}

	before := count()
	resp, env := b.do(http.MethodPost, "/dashboard/tags", map[string]any{"name": "vip"}, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "tags created", env.Message)
	assert.Equal(t, before+1, count())

	resp, env = b.do(http.MethodDelete, "/dashboard/tags/1", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "tag deleted successfully", env.Message)
	assert.Equal(t, before, count())
}

func TestGateway_ConcurrentRequestsShareOneRefresh(t *testing.T) {
	s := newStack(t)
	b := s.browser(t)
	b.login("admin")
	s.mock.ExpireAccessTokens()

	var wg sync.WaitGroup
	codes := make([]int, 6)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, _ := b.do(http.MethodGet, "/dashboard/tickets", nil, true)
			codes[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	assert.EqualValues(t, 1, s.mock.Refreshes())

	resp, _ := b.do(http.MethodGet, "/dashboard/tickets", nil, true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, s.mock.Refreshes())
}

func TestGateway_RejectedRefreshEndsSession(t *testing.T) {
	s := newStack(t)
	b := s.browser(t)
	b.login("agent")

	// Consume the refresh token behind the gateway's back so its own refresh
	// is a reuse and gets rejected.
	refresh := b.cookie(tokenstore.RefreshCookie)
	require.NotEmpty(t, refresh)
	req, err := http.NewRequest(http.MethodGet, s.mockURL+"/auth/access_token", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+refresh)
	stolen, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	stolen.Body.Close()
	require.Equal(t, http.StatusOK, stolen.StatusCode)
	s.mock.ExpireAccessTokens()

	resp, _ := b.do(http.MethodGet, "/dashboard/tickets", nil, false)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/sign-in?reason=session_expired", resp.Header.Get("Location"))
	assert.Empty(t, b.cookie(tokenstore.AccessCookie))
	assert.Empty(t, b.cookie(tokenstore.RefreshCookie))
}

func TestGateway_Logout(t *testing.T) {
	s := newStack(t)
	b := s.browser(t)
	b.login("agent")

	resp, env := b.do(http.MethodPost, "/auth/logout", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"redirect":"/sign-in"}`, string(env.Data))
	assert.Empty(t, b.cookie(tokenstore.AccessCookie))

	resp, _ = b.do(http.MethodGet, "/dashboard", nil, false)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/sign-in", resp.Header.Get("Location"))
}

func TestGateway_LoginThrottle(t *testing.T) {
	s := newStack(t)
	b := s.browser(t)

	wrong := auth.LoginRequest{Tenant: "acme", Username: "agent", Password: "wrong"}
	for i := 0; i < 3; i++ {
		resp, env := b.do(http.MethodPost, "/auth/login", wrong, true)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "invalid credentials", env.Message)
	}
	resp, _ := b.do(http.MethodPost, "/auth/login", wrong, true)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestGateway_Metrics(t *testing.T) {
	s := newStack(t)
	b := s.browser(t)
	b.do(http.MethodGet, "/dashboard", nil, false)

	resp, err := http.Get(s.gateway.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `dashboard_edge_gate_redirects_total{rule="sign_in"} 1`)
}
