package tokenstore

import (
	"net/http"
	"sync"
	"time"

	"helpdesk-dashboard/internal/domain/auth"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
	TenantCookie  = "tenant"
)

// CookieConfig controls the cookies the browser keeps for us.
type CookieConfig struct {
	Domain     string
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// CookieStore is bound to one request. It reads the browser's cookies once
// and answers later reads from its own view, so a token refreshed mid-request
// is what every subsequent backend call in that request sees.
type CookieStore struct {
	cfg CookieConfig
	w   http.ResponseWriter

	mu     sync.Mutex
	pair   auth.TokenPair
	tenant string
}

func NewCookieStore(r *http.Request, w http.ResponseWriter, cfg CookieConfig) *CookieStore {
	s := &CookieStore{cfg: cfg, w: w}
	if c, err := r.Cookie(AccessCookie); err == nil {
		s.pair.AccessToken = c.Value
	}
	if c, err := r.Cookie(RefreshCookie); err == nil {
		s.pair.RefreshToken = c.Value
	}
	if c, err := r.Cookie(TenantCookie); err == nil {
		s.tenant = c.Value
	}
	return s
}

func (s *CookieStore) SetTokens(pair auth.TokenPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	// The access cookie must stay readable by the edge gate; the refresh
	// cookie is never exposed to scripts.
	s.write(AccessCookie, pair.AccessToken, s.cfg.AccessTTL, false)
	s.write(RefreshCookie, pair.RefreshToken, s.cfg.RefreshTTL, true)
}

func (s *CookieStore) AccessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair.AccessToken, s.pair.AccessToken != ""
}

func (s *CookieStore) RefreshToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair.RefreshToken, s.pair.RefreshToken != ""
}

func (s *CookieStore) SetTenant(tenant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenant = tenant
	s.write(TenantCookie, tenant, s.cfg.RefreshTTL, true)
}

func (s *CookieStore) Tenant() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tenant, s.tenant != ""
}

func (s *CookieStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = auth.TokenPair{}
	s.write(AccessCookie, "", -1, false)
	s.write(RefreshCookie, "", -1, true)
	if s.tenant != "" {
		s.tenant = ""
		s.write(TenantCookie, "", -1, true)
	}
}

func (s *CookieStore) write(name, value string, ttl time.Duration, httpOnly bool) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.cfg.Domain,
		Secure:   s.cfg.Secure,
		HttpOnly: httpOnly,
		SameSite: http.SameSiteLaxMode,
	}
	switch {
	case ttl < 0:
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	case ttl > 0:
		c.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(s.w, c)
}
