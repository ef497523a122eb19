package tokenstore

import (
	"sync"

	"helpdesk-dashboard/internal/domain/auth"
)

// MemoryStore holds tokens in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	pair   auth.TokenPair
	tenant string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) SetTokens(pair auth.TokenPair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = pair
}

func (m *MemoryStore) AccessToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pair.AccessToken, m.pair.AccessToken != ""
}

func (m *MemoryStore) RefreshToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pair.RefreshToken, m.pair.RefreshToken != ""
}

func (m *MemoryStore) SetTenant(tenant string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenant = tenant
}

func (m *MemoryStore) Tenant() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tenant, m.tenant != ""
}

func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = auth.TokenPair{}
	m.tenant = ""
}
