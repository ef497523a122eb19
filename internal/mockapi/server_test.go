package mockapi

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"helpdesk-dashboard/internal/domain/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	s, err := New(Config{Key: key, AccessTTL: time.Minute, RefreshTTL: time.Hour}, zaptest.NewLogger(t))
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func login(t *testing.T, srv *httptest.Server, username string) auth.TokenPair {
	t.Helper()
	var resp auth.LoginResponse
	status := call(t, srv, http.MethodPost, "/auth/login", "", auth.LoginRequest{Tenant: "acme", Username: username, Password: "password"}, &resp)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return auth.TokenPair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
}

func TestLogin_WrongPasswordReportedInBody(t *testing.T) {
	_, srv := newTestServer(t)

	var resp auth.LoginResponse
	status := call(t, srv, http.MethodPost, "/auth/login", "", auth.LoginRequest{Tenant: "acme", Username: "admin", Password: "nope"}, &resp)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, resp.AccessToken)
}

func TestCurrentUser(t *testing.T) {
	_, srv := newTestServer(t)
	pair := login(t, srv, "agent")

	var p auth.Profile
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/user/current", pair.AccessToken, nil, &p))
	assert.Equal(t, "agent", p.Username)
	assert.Contains(t, p.Permissions, "view_tickets")
	assert.NotContains(t, p.Permissions, "view_users")

	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/user/current", pair.RefreshToken, nil, nil))
}

func TestRefresh_RotatesAndRejectsReuse(t *testing.T) {
	s, srv := newTestServer(t)
	pair := login(t, srv, "admin")

	var rotated auth.RefreshResponse
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/auth/access_token", pair.RefreshToken, nil, &rotated))
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	assert.EqualValues(t, 1, s.Refreshes())

	// Replaying the consumed token revokes the whole session.
	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/auth/access_token", pair.RefreshToken, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/auth/access_token", rotated.RefreshToken, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/user/current", rotated.AccessToken, nil, nil))
}

func TestExpireAccessTokens(t *testing.T) {
	s, srv := newTestServer(t)
	pair := login(t, srv, "admin")

	s.ExpireAccessTokens()
	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/user/current", pair.AccessToken, nil, nil))

	var rotated auth.RefreshResponse
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/auth/access_token", pair.RefreshToken, nil, &rotated))
	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/user/current", rotated.AccessToken, nil, nil))
}

func TestLogout_RevokesSession(t *testing.T) {
	_, srv := newTestServer(t)
	pair := login(t, srv, "admin")

	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/auth/logout", pair.AccessToken, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/user/current", pair.AccessToken, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/auth/access_token", pair.RefreshToken, nil, nil))
}

func TestResources_CRUDAndPermissions(t *testing.T) {
	_, srv := newTestServer(t)
	admin := login(t, srv, "admin").AccessToken
	viewer := login(t, srv, "viewer").AccessToken

	var created struct {
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/ticket-tags", admin, map[string]any{"name": "vip"}, &created))
	id := created.Data["id"].(string)
	assert.NotEmpty(t, created.Message)

	var list struct {
		Items []map[string]any `json:"items"`
		Total int              `json:"total"`
	}
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/ticket-tags?q=vip", admin, nil, &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "vip", list.Items[0]["name"])

	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPut, "/ticket-tags/"+id, admin, map[string]any{"name": "vvip", "id": "999"}, nil))
	var item map[string]any
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/ticket-tags/"+id, admin, nil, &item))
	assert.Equal(t, "vvip", item["name"])
	assert.Equal(t, id, item["id"])

	assert.Equal(t, http.StatusForbidden, call(t, srv, http.MethodGet, "/ticket-tags", viewer, nil, nil))
	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/tickets", viewer, nil, nil))
	assert.Equal(t, http.StatusForbidden, call(t, srv, http.MethodDelete, "/tickets/1", viewer, nil, nil))

	require.Equal(t, http.StatusOK, call(t, srv, http.MethodDelete, "/ticket-tags/"+id, admin, nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodGet, "/ticket-tags/"+id, admin, nil, nil))
}
