package mockapi

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"helpdesk-dashboard/internal/domain/auth"
	"helpdesk-dashboard/internal/domain/permission"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
)

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errRefreshReused      = errors.New("refresh token already used")
	errRefreshUnknown     = errors.New("refresh token not recognised")
	errItemNotFound       = errors.New("item not found")
)

// Account is a seeded backend user.
type Account struct {
	Tenant      string
	Username    string
	Password    string
	FullName    string
	Email       string
	Role        string
	Permissions []permission.Key
}

type user struct {
	id           string
	tenant       string
	username     string
	passwordHash []byte
	profile      auth.Profile
}

type refreshRecord struct {
	userID  string
	family  string
	used    bool
	revoked bool
}

type store struct {
	mu sync.RWMutex

	users   map[string]*user // by id
	byLogin map[string]string

	refresh      map[string]*refreshRecord // by refresh jti
	accessFamily map[string]string         // access jti -> family
	revokedJTI   map[string]time.Time      // access jti -> exp

	collections map[string]map[string]map[string]any
	nextID      map[string]int
}

func newStore() *store {
	return &store{
		users:        make(map[string]*user),
		byLogin:      make(map[string]string),
		refresh:      make(map[string]*refreshRecord),
		accessFamily: make(map[string]string),
		revokedJTI:   make(map[string]time.Time),
		collections:  make(map[string]map[string]map[string]any),
		nextID:       make(map[string]int),
	}
}

func loginKey(tenant, username string) string {
	return strings.ToLower(tenant) + "/" + strings.ToLower(username)
}

func (s *store) addAccount(a Account) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("hash password for %s: %w", a.Username, err)
	}

	perms := make([]string, 0, len(a.Permissions))
	for _, k := range a.Permissions {
		perms = append(perms, string(k))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := strconv.Itoa(len(s.users) + 1)
	s.users[id] = &user{
		id:           id,
		tenant:       a.Tenant,
		username:     a.Username,
		passwordHash: hash,
		profile: auth.Profile{
			ID:          id,
			Username:    a.Username,
			FullName:    a.FullName,
			Email:       a.Email,
			Role:        a.Role,
			Tenant:      a.Tenant,
			Permissions: perms,
		},
	}
	s.byLogin[loginKey(a.Tenant, a.Username)] = id
	return nil
}

func (s *store) authenticate(tenant, username, password string) (*user, error) {
	s.mu.RLock()
	id, ok := s.byLogin[loginKey(tenant, username)]
	u := s.users[id]
	s.mu.RUnlock()

	if !ok || u == nil {
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	return u, nil
}

func (s *store) user(id string) (*user, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// trackPair records a freshly issued pair. An empty family starts a new one.
func (s *store) trackPair(userID, family, accessJTI, refreshJTI string) string {
	if family == "" {
		family = ulid.Make().String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessFamily[accessJTI] = family
	s.refresh[refreshJTI] = &refreshRecord{userID: userID, family: family}
	return family
}

// consumeRefresh marks a refresh token used. Presenting a used token again
// revokes the whole family: someone else holds a copy.
func (s *store) consumeRefresh(jti string) (*refreshRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.refresh[jti]
	if !ok || rec.revoked {
		return nil, errRefreshUnknown
	}
	if rec.used {
		s.revokeFamilyLocked(rec.family)
		return nil, errRefreshReused
	}
	rec.used = true
	return rec, nil
}

func (s *store) revokeFamilyLocked(family string) {
	for _, rec := range s.refresh {
		if rec.family == family {
			rec.revoked = true
		}
	}
	for jti, f := range s.accessFamily {
		if f == family {
			s.revokedJTI[jti] = time.Now().Add(24 * time.Hour)
		}
	}
}

// logout revokes the session the access token belongs to.
func (s *store) logout(accessJTI string, exp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokedJTI[accessJTI] = exp
	if family, ok := s.accessFamily[accessJTI]; ok {
		s.revokeFamilyLocked(family)
	}
}

func (s *store) accessRevoked(jti string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revokedJTI[jti]
	return ok
}

// revokeAllAccess rejects every access token issued so far while keeping
// refresh tokens usable, which is what an access-token expiry looks like.
func (s *store) revokeAllAccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jti := range s.accessFamily {
		s.revokedJTI[jti] = time.Now().Add(24 * time.Hour)
	}
}

// --- generic collections ---

func (s *store) list(collection string, q string) []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]map[string]any, 0, len(s.collections[collection]))
	for _, item := range s.collections[collection] {
		if q != "" && !matches(item, q) {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		a, _ := strconv.Atoi(fmt.Sprint(items[i]["id"]))
		b, _ := strconv.Atoi(fmt.Sprint(items[j]["id"]))
		return a < b
	})
	return items
}

func matches(item map[string]any, q string) bool {
	q = strings.ToLower(q)
	for _, v := range item {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

func (s *store) get(collection, id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.collections[collection][id]
	if !ok {
		return nil, errItemNotFound
	}
	return item, nil
}

func (s *store) create(collection string, fields map[string]any) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]map[string]any)
	}
	s.nextID[collection]++
	id := strconv.Itoa(s.nextID[collection])

	item := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		item[k] = v
	}
	item["id"] = id
	item["created_at"] = time.Now().UTC().Format(time.RFC3339)
	s.collections[collection][id] = item
	return item
}

func (s *store) update(collection, id string, fields map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.collections[collection][id]
	if !ok {
		return nil, errItemNotFound
	}
	for k, v := range fields {
		if k == "id" || k == "created_at" {
			continue
		}
		item[k] = v
	}
	item["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	return item, nil
}

func (s *store) delete(collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection][id]; !ok {
		return errItemNotFound
	}
	delete(s.collections[collection], id)
	return nil
}
