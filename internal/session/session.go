// Package session is the authority on who the current user is and what they
// may do. It seeds identity from the access token, confirms it against the
// backend profile, and owns login and logout side effects.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"helpdesk-dashboard/internal/domain/auth"
	"helpdesk-dashboard/internal/domain/permission"
	xerrors "helpdesk-dashboard/internal/pkg/errors"
	"helpdesk-dashboard/internal/pkg/jwt"
	"helpdesk-dashboard/internal/pkg/metrics"
	"helpdesk-dashboard/internal/pkg/tokenstore"

	"go.uber.org/zap"
)

const (
	ReasonUser           = "user"
	ReasonSessionExpired = "session_expired"
)

// Backend is the slice of the backend API the session depends on.
type Backend interface {
	Login(ctx context.Context, req auth.LoginRequest) (auth.TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
	CurrentUser(ctx context.Context) (*auth.Profile, error)
}

// Navigator performs the single navigation a view ends with.
type Navigator interface {
	Navigate(target string) bool
}

// Purger drops cached query data for a user scope.
type Purger interface {
	PurgeScope(ctx context.Context, scope string) error
}

type Config struct {
	SignInPath    string
	LogoutTimeout time.Duration
}

type Deps struct {
	Tokens    tokenstore.Store
	Backend   Backend
	Cache     Purger
	Navigator Navigator
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

type Session struct {
	tokens  tokenstore.Store
	backend Backend
	cache   Purger
	nav     Navigator
	logger  *zap.Logger
	metrics *metrics.Metrics
	cfg     Config

	mu    sync.RWMutex
	state State
	// epoch changes on every login and logout; a profile result fetched
	// under an older epoch is discarded.
	epoch uint64
}

// New resolves the initial state synchronously from the token store.
func New(d Deps, cfg Config) *Session {
	if cfg.SignInPath == "" {
		cfg.SignInPath = "/sign-in"
	}
	if cfg.LogoutTimeout <= 0 {
		cfg.LogoutTimeout = 5 * time.Second
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		tokens:  d.Tokens,
		backend: d.Backend,
		cache:   d.Cache,
		nav:     d.Navigator,
		logger:  logger,
		metrics: d.Metrics,
		cfg:     cfg,
		state:   State{Status: Unauthenticated, Permissions: permission.NewSet()},
	}

	tok, ok := s.tokens.AccessToken()
	if !ok {
		return s
	}
	claims, err := jwt.DecodeUnverified(tok)
	if err != nil {
		// A cookie the edge gate accepts but no guard ever could would bounce
		// the browser between sign-in and the dashboard forever.
		s.logger.Info("discarding malformed access token", zap.Error(err))
		s.tokens.Clear()
		return s
	}
	identity := claims.Identity()
	if identity.Tenant == "" {
		identity.Tenant, _ = s.tokens.Tenant()
	}
	s.state = State{Status: Validating, User: identity, Permissions: permission.NewSet()}
	return s
}

// State returns a snapshot of the current session.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Session) HasPermission(k permission.Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Permissions.Has(k)
}

func (s *Session) HasAnyPermission(keys ...permission.Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Permissions.HasAny(keys...)
}

func (s *Session) HasAllPermissions(keys ...permission.Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Permissions.HasAll(keys...)
}

// Login authenticates against the backend, stores the pair and seeds a
// provisional identity from the access token. Validate must follow to
// replace it with the server profile. A live session of another user is
// ended first so its tokens and cached data do not outlive it.
func (s *Session) Login(ctx context.Context, tenant, username, password string) error {
	pair, err := s.backend.Login(ctx, auth.LoginRequest{Tenant: tenant, Username: username, Password: password})
	if err != nil {
		return err
	}
	claims, err := jwt.DecodeUnverified(pair.AccessToken)
	if err != nil {
		return err
	}
	identity := claims.Identity()
	if identity.Tenant == "" {
		identity.Tenant = tenant
	}

	s.mu.RLock()
	prev := s.identityLocked()
	s.mu.RUnlock()
	if prev != nil && prev.Scope() != identity.Scope() {
		e := s.teardown()
		s.release(ctx, e)
		s.logger.Info("replaced previous session", zap.String("scope", e.scope))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens.SetTokens(pair)
	s.tokens.SetTenant(identity.Tenant)
	s.epoch++
	s.state = State{Status: Validating, User: identity, Permissions: permission.NewSet()}
	s.logger.Info("user logged in",
		zap.String("user_id", claims.Subject),
		zap.String("tenant", identity.Tenant),
	)
	return nil
}

// Validate fetches the server profile while the session is Validating. On
// success identity and permissions are replaced wholesale; a definitive
// token rejection logs the user out; any other failure leaves the session
// Validating and is returned.
func (s *Session) Validate(ctx context.Context) error {
	s.mu.RLock()
	status, epoch := s.state.Status, s.epoch
	s.mu.RUnlock()
	if status != Validating {
		return nil
	}

	profile, err := s.backend.CurrentUser(ctx)
	if err != nil {
		if !xerrors.IsAuthRejection(err) {
			s.logger.Warn("profile fetch failed, session stays unconfirmed", zap.Error(err))
			return err
		}
		if s.currentEpoch() == epoch {
			s.logout(ctx, ReasonSessionExpired)
		}
		return err
	}

	keys, unknown := permission.Parse(profile.Permissions)
	if len(unknown) > 0 {
		s.logger.Debug("ignoring unknown permission keys",
			zap.String("user_id", profile.ID),
			zap.Strings("keys", unknown),
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil
	}
	identity := profile.Identity()
	if identity.Tenant == "" {
		// Profiles of single-tenant backends omit it; keep the one we signed in with.
		if prev := s.identityLocked(); prev != nil {
			identity.Tenant = prev.Tenant
		}
	}
	s.state = State{Status: Authenticated, User: identity, Permissions: permission.NewSet(keys...)}
	return nil
}

// Logout tears the session down locally, tells the backend best-effort, and
// navigates to sign-in. Calling it again is harmless.
func (s *Session) Logout(ctx context.Context) {
	s.logout(ctx, ReasonUser)
}

// Expire is Logout for a session the backend rejected.
func (s *Session) Expire(ctx context.Context) {
	s.logout(ctx, ReasonSessionExpired)
}

func (s *Session) logout(ctx context.Context, reason string) {
	e := s.teardown()
	s.release(ctx, e)

	if e.active {
		s.metrics.Logout(reason)
		s.logger.Info("session ended", zap.String("scope", e.scope), zap.String("reason", reason))
	}

	if s.nav != nil {
		target := s.cfg.SignInPath
		if reason == ReasonSessionExpired {
			target += "?reason=" + ReasonSessionExpired
		}
		s.nav.Navigate(target)
	}
}

// ended is what a teardown leaves for release.
type ended struct {
	scope  string
	token  string
	active bool
}

// teardown clears tokens and state. It never touches the network.
func (s *Session) teardown() ended {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, _ := s.tokens.AccessToken()
	e := ended{token: token, active: token != "" || s.state.Status != Unauthenticated}
	if id := s.identityLocked(); id != nil {
		e.scope = id.Scope()
	}

	s.tokens.Clear()
	s.state = State{Status: Unauthenticated, Permissions: permission.NewSet()}
	s.epoch++
	return e
}

// release purges the ended session's cached data and tells the backend,
// best-effort.
func (s *Session) release(ctx context.Context, e ended) {
	if e.scope != "" && s.cache != nil {
		if err := s.cache.PurgeScope(context.WithoutCancel(ctx), e.scope); err != nil {
			s.logger.Warn("failed to purge query cache", zap.String("scope", e.scope), zap.Error(err))
		}
	}

	if e.token != "" {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.LogoutTimeout)
		err := s.backend.Logout(lctx, e.token)
		cancel()
		if err != nil && !errors.Is(err, xerrors.ErrUnauthorized) {
			s.logger.Warn("server logout failed", zap.String("scope", e.scope), zap.Error(err))
		}
	}
}

// identityLocked is the current identity, falling back to the stored token's
// claims. Callers hold mu.
func (s *Session) identityLocked() *auth.UserIdentity {
	if s.state.User != nil {
		return s.state.User
	}
	tok, ok := s.tokens.AccessToken()
	if !ok {
		return nil
	}
	claims, err := jwt.DecodeUnverified(tok)
	if err != nil {
		return nil
	}
	id := claims.Identity()
	if id.Tenant == "" {
		id.Tenant, _ = s.tokens.Tenant()
	}
	return id
}

func (s *Session) currentEpoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}
