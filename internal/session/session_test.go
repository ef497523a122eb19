package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"helpdesk-dashboard/internal/domain/auth"
	"helpdesk-dashboard/internal/domain/permission"
	xerrors "helpdesk-dashboard/internal/pkg/errors"
	"helpdesk-dashboard/internal/pkg/jwt"
	"helpdesk-dashboard/internal/pkg/querycache"
	"helpdesk-dashboard/internal/pkg/redirect"
	"helpdesk-dashboard/internal/pkg/tokenstore"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func accessToken(t *testing.T, sub, name, role string) string {
	t.Helper()
	tok := gojwt.NewWithClaims(gojwt.SigningMethodHS256, &jwt.Claims{
		Name:    name,
		Email:   sub + "@acme.test",
		Role:    role,
		Purpose: jwt.PurposeAccess,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

type fakeBackend struct {
	mu          sync.Mutex
	pair        auth.TokenPair
	loginErr    error
	profile     *auth.Profile
	profileErr  error
	logoutErr   error
	logoutCalls []string
	onProfile   func()
}

func (f *fakeBackend) Login(_ context.Context, _ auth.LoginRequest) (auth.TokenPair, error) {
	return f.pair, f.loginErr
}

func (f *fakeBackend) Logout(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls = append(f.logoutCalls, token)
	return f.logoutErr
}

func (f *fakeBackend) CurrentUser(context.Context) (*auth.Profile, error) {
	if f.onProfile != nil {
		f.onProfile()
	}
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	p := *f.profile
	return &p, nil
}

type fixture struct {
	tokens  *tokenstore.MemoryStore
	backend *fakeBackend
	cache   *querycache.Memory
	nav     *redirect.Navigator
	sess    *Session
}

func newFixture(t *testing.T, access string, backend *fakeBackend) *fixture {
	t.Helper()
	f := &fixture{
		tokens:  tokenstore.NewMemoryStore(),
		backend: backend,
		cache:   querycache.NewMemory(),
		nav:     redirect.NewNavigator(context.Background(), "/dashboard/users"),
	}
	if access != "" {
		f.tokens.SetTokens(auth.TokenPair{AccessToken: access, RefreshToken: "r1"})
		f.tokens.SetTenant("acme")
	}
	f.sess = New(Deps{
		Tokens:    f.tokens,
		Backend:   backend,
		Cache:     f.cache,
		Navigator: f.nav,
		Logger:    zaptest.NewLogger(t),
	}, Config{SignInPath: "/sign-in", LogoutTimeout: time.Second})
	return f
}

func TestNew_InitialState(t *testing.T) {
	t.Run("no token", func(t *testing.T) {
		f := newFixture(t, "", &fakeBackend{})
		st := f.sess.State()
		assert.Equal(t, Unauthenticated, st.Status)
		assert.Nil(t, st.User)
	})

	t.Run("well-formed token", func(t *testing.T) {
		f := newFixture(t, accessToken(t, "u1", "Ann", "agent"), &fakeBackend{})
		st := f.sess.State()
		assert.Equal(t, Validating, st.Status)
		assert.True(t, st.IsLoading())
		require.NotNil(t, st.User)
		assert.Equal(t, "u1", st.User.ID)
		assert.Equal(t, auth.SourceProvisional, st.User.Source)
		assert.Empty(t, st.Permissions)
	})

	t.Run("malformed token is discarded", func(t *testing.T) {
		f := newFixture(t, "not-a-jwt", &fakeBackend{})
		assert.Equal(t, Unauthenticated, f.sess.State().Status)
		_, ok := f.tokens.AccessToken()
		assert.False(t, ok)
	})
}

func TestLogin_ProvisionalThenServerProfile(t *testing.T) {
	backend := &fakeBackend{
		pair: auth.TokenPair{AccessToken: accessToken(t, "u1", "Token Name", "agent"), RefreshToken: "r1"},
		profile: &auth.Profile{
			ID:          "u1",
			Username:    "ann",
			FullName:    "Server Name",
			Email:       "ann@acme.test",
			Role:        "admin",
			Permissions: []string{"view_users", "edit_users", "launch_rockets"},
		},
	}
	f := newFixture(t, "", backend)

	require.NoError(t, f.sess.Login(context.Background(), "acme", "ann", "secret"))
	st := f.sess.State()
	assert.Equal(t, Validating, st.Status)
	assert.Equal(t, "Token Name", st.User.DisplayName)
	assert.Equal(t, "agent", st.User.Role)
	assert.False(t, f.sess.HasPermission(permission.ViewUsers))

	require.NoError(t, f.sess.Validate(context.Background()))
	st = f.sess.State()
	assert.Equal(t, Authenticated, st.Status)
	assert.Equal(t, auth.SourceServer, st.User.Source)
	assert.Equal(t, "Server Name", st.User.DisplayName)
	assert.Equal(t, "admin", st.User.Role)
	assert.Equal(t, []string{"edit_users", "view_users"}, st.Permissions.Strings())
	assert.True(t, f.sess.HasAllPermissions(permission.ViewUsers, permission.EditUsers))
	assert.False(t, f.sess.HasAnyPermission(permission.DeleteUsers))
}

func TestLogin_FailureKeepsState(t *testing.T) {
	backend := &fakeBackend{loginErr: &xerrors.APIError{Status: http.StatusUnauthorized, Message: "invalid credentials"}}
	f := newFixture(t, "", backend)

	err := f.sess.Login(context.Background(), "acme", "ann", "wrong")
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	assert.Equal(t, Unauthenticated, f.sess.State().Status)
	_, ok := f.tokens.AccessToken()
	assert.False(t, ok)
}

func TestValidate_RejectionLogsOutOnce(t *testing.T) {
	backend := &fakeBackend{profileErr: &xerrors.APIError{Status: http.StatusUnauthorized}}
	f := newFixture(t, accessToken(t, "u1", "Ann", "agent"), backend)
	require.NoError(t, f.cache.Set(context.Background(), "acme/u1", "users:list", []string{"x"}, time.Minute))

	err := f.sess.Validate(context.Background())
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)

	st := f.sess.State()
	assert.Equal(t, Unauthenticated, st.Status)
	assert.Nil(t, st.User)
	_, ok := f.tokens.AccessToken()
	assert.False(t, ok)
	assert.Equal(t, 0, f.cache.Len("acme/u1"))

	target, pending := f.nav.Pending()
	assert.True(t, pending)
	assert.Equal(t, "/sign-in?reason=session_expired", target)
	assert.False(t, f.nav.Navigate("/sign-in"), "a second redirect must not fire")
}

func TestValidate_BusLogoutDuringFetchDoesNotDoubleTeardown(t *testing.T) {
	backend := &fakeBackend{profileErr: xerrors.Wrap(xerrors.ErrSessionExpired, "refresh rejected")}
	f := newFixture(t, accessToken(t, "u1", "Ann", "agent"), backend)
	backend.onProfile = func() { f.sess.Expire(context.Background()) }

	err := f.sess.Validate(context.Background())
	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)
	assert.Equal(t, Unauthenticated, f.sess.State().Status)
	assert.Len(t, backend.logoutCalls, 1)
}

func TestValidate_TransientErrorKeepsValidating(t *testing.T) {
	backend := &fakeBackend{profileErr: &xerrors.APIError{Status: http.StatusInternalServerError}}
	f := newFixture(t, accessToken(t, "u1", "Ann", "agent"), backend)

	err := f.sess.Validate(context.Background())
	require.Error(t, err)

	st := f.sess.State()
	assert.Equal(t, Validating, st.Status)
	_, ok := f.tokens.AccessToken()
	assert.True(t, ok)
	_, pending := f.nav.Pending()
	assert.False(t, pending)
}

func TestValidate_DiscardsResultAfterLogout(t *testing.T) {
	backend := &fakeBackend{profile: &auth.Profile{ID: "u1", Permissions: []string{"view_users"}}}
	f := newFixture(t, accessToken(t, "u1", "Ann", "agent"), backend)
	backend.onProfile = func() { f.sess.Logout(context.Background()) }

	require.NoError(t, f.sess.Validate(context.Background()))
	st := f.sess.State()
	assert.Equal(t, Unauthenticated, st.Status)
	assert.False(t, f.sess.HasPermission(permission.ViewUsers))
}

func TestLogout_ServerFailureStillTearsDown(t *testing.T) {
	backend := &fakeBackend{
		profile:   &auth.Profile{ID: "u1", Permissions: []string{"view_users"}},
		logoutErr: errors.New("connection refused"),
	}
	access := accessToken(t, "u1", "Ann", "agent")
	f := newFixture(t, access, backend)
	require.NoError(t, f.sess.Validate(context.Background()))
	require.NoError(t, f.cache.Set(context.Background(), "acme/u1", "users:list", []string{"x"}, time.Minute))

	f.sess.Logout(context.Background())

	st := f.sess.State()
	assert.Equal(t, Unauthenticated, st.Status)
	assert.Nil(t, st.User)
	assert.Empty(t, st.Permissions)
	_, ok := f.tokens.AccessToken()
	assert.False(t, ok)
	_, ok = f.tokens.RefreshToken()
	assert.False(t, ok)
	assert.Equal(t, 0, f.cache.Len("acme/u1"))
	assert.Equal(t, []string{access}, backend.logoutCalls)

	target, pending := f.nav.Pending()
	assert.True(t, pending)
	assert.Equal(t, "/sign-in", target)
}

func TestLogout_Idempotent(t *testing.T) {
	backend := &fakeBackend{}
	f := newFixture(t, accessToken(t, "u1", "Ann", "agent"), backend)

	f.sess.Logout(context.Background())
	first := f.sess.State()
	f.sess.Logout(context.Background())
	second := f.sess.State()

	assert.Equal(t, first, second)
	assert.Equal(t, Unauthenticated, second.Status)
	assert.Len(t, backend.logoutCalls, 1)
}

func TestState_View(t *testing.T) {
	backend := &fakeBackend{profile: &auth.Profile{ID: "u1", FullName: "Ann", Permissions: []string{"view_roles"}}}
	f := newFixture(t, accessToken(t, "u1", "Ann", "agent"), backend)

	v := f.sess.State().View()
	assert.True(t, v.IsLoading)
	assert.False(t, v.IsAuthenticated)

	require.NoError(t, f.sess.Validate(context.Background()))
	v = f.sess.State().View()
	assert.False(t, v.IsLoading)
	assert.True(t, v.IsAuthenticated)
	assert.Equal(t, []string{"view_roles"}, v.Permissions)
	assert.Equal(t, "Ann", v.User.DisplayName)
}

func TestScope_QualifiedByTenant(t *testing.T) {
	backend := &fakeBackend{
		pair:    auth.TokenPair{AccessToken: accessToken(t, "1", "Ann", "agent"), RefreshToken: "r1"},
		profile: &auth.Profile{ID: "1", Permissions: []string{"view_users"}},
	}
	f := newFixture(t, "", backend)

	require.NoError(t, f.sess.Login(context.Background(), "globex", "ann", "secret"))
	assert.Equal(t, "globex/1", f.sess.State().User.Scope())
	tenant, _ := f.tokens.Tenant()
	assert.Equal(t, "globex", tenant)

	// The profile carries no tenant; the signed-in one is kept.
	require.NoError(t, f.sess.Validate(context.Background()))
	assert.Equal(t, "globex/1", f.sess.State().User.Scope())

	// A later request resolves the same scope from storage alone.
	next := New(Deps{Tokens: f.tokens, Backend: backend}, Config{})
	assert.Equal(t, "globex/1", next.State().User.Scope())
}

func TestLogin_OverAnotherUserEndsPreviousSession(t *testing.T) {
	previous := accessToken(t, "u1", "Ann", "agent")
	backend := &fakeBackend{pair: auth.TokenPair{AccessToken: accessToken(t, "u2", "Bob", "agent"), RefreshToken: "r2"}}
	f := newFixture(t, previous, backend)
	require.NoError(t, f.cache.Set(context.Background(), "acme/u1", "users:list", []string{"x"}, time.Minute))

	require.NoError(t, f.sess.Login(context.Background(), "acme", "bob", "secret"))

	assert.Equal(t, []string{previous}, backend.logoutCalls)
	assert.Equal(t, 0, f.cache.Len("acme/u1"))
	st := f.sess.State()
	assert.Equal(t, "u2", st.User.ID)
	assert.Equal(t, Validating, st.Status)
	_, pending := f.nav.Pending()
	assert.False(t, pending, "signing in over a session does not navigate")
}

func TestLogin_SameUserKeepsCache(t *testing.T) {
	access := accessToken(t, "u1", "Ann", "agent")
	backend := &fakeBackend{pair: auth.TokenPair{AccessToken: accessToken(t, "u1", "Ann", "agent"), RefreshToken: "r2"}}
	f := newFixture(t, access, backend)
	require.NoError(t, f.cache.Set(context.Background(), "acme/u1", "users:list", []string{"x"}, time.Minute))

	require.NoError(t, f.sess.Login(context.Background(), "acme", "ann", "secret"))

	assert.Empty(t, backend.logoutCalls)
	assert.Equal(t, 1, f.cache.Len("acme/u1"))
}
