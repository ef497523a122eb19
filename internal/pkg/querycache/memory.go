package querycache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// sweepEvery bounds how long expired entries may linger in a Memory cache.
const sweepEvery = time.Minute

// Memory is a process-local Cache.
type Memory struct {
	mu        sync.Mutex
	now       func() time.Time
	scopes    map[string]map[string]memoryEntry
	nextSweep time.Time
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

func NewMemory() *Memory {
	return &Memory{now: time.Now, scopes: make(map[string]map[string]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, scope, key string, dst any) error {
	m.mu.Lock()
	e, ok := m.scopes[scope][key]
	if ok && !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.scopes[scope], key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return ErrMiss
	}
	return decode(e.data, dst)
}

func (m *Memory) Set(_ context.Context, scope, key string, value any, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	e := memoryEntry{data: data}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(m.now())
	entries, ok := m.scopes[scope]
	if !ok {
		entries = make(map[string]memoryEntry)
		m.scopes[scope] = entries
	}
	entries[key] = e
	return nil
}

// sweep drops expired entries and emptied scopes. Callers hold mu.
func (m *Memory) sweep(now time.Time) {
	if now.Before(m.nextSweep) {
		return
	}
	for scope, entries := range m.scopes {
		for k, e := range entries {
			if !e.expires.IsZero() && !now.Before(e.expires) {
				delete(entries, k)
			}
		}
		if len(entries) == 0 {
			delete(m.scopes, scope)
		}
	}
	m.nextSweep = now.Add(sweepEvery)
}

func (m *Memory) PurgePrefix(_ context.Context, scope, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.scopes[scope] {
		if strings.HasPrefix(k, prefix) {
			delete(m.scopes[scope], k)
		}
	}
	return nil
}

func (m *Memory) PurgeScope(_ context.Context, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scopes, scope)
	return nil
}

// Len counts live entries in scope.
func (m *Memory) Len(scope string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	now := m.now()
	for _, e := range m.scopes[scope] {
		if e.expires.IsZero() || now.Before(e.expires) {
			n++
		}
	}
	return n
}
