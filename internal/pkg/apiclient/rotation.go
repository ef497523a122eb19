package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"helpdesk-dashboard/internal/domain/auth"

	"github.com/redis/go-redis/v9"
)

// RotationCache remembers the pair a refresh token was rotated into, keyed
// by the token's fingerprint. A second tab still holding the old refresh
// token after a rotation is handed the new pair instead of a reuse rejection.
type RotationCache interface {
	Lookup(ctx context.Context, key string) (auth.TokenPair, bool, error)
	Remember(ctx context.Context, key string, pair auth.TokenPair, ttl time.Duration) error
}

// MemoryRotation is a process-local RotationCache.
type MemoryRotation struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]rotationEntry
}

type rotationEntry struct {
	pair    auth.TokenPair
	expires time.Time
}

func NewMemoryRotation() *MemoryRotation {
	return &MemoryRotation{now: time.Now, entries: make(map[string]rotationEntry)}
}

func (m *MemoryRotation) Lookup(_ context.Context, key string) (auth.TokenPair, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return auth.TokenPair{}, false, nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return auth.TokenPair{}, false, nil
	}
	return e.pair, true, nil
}

func (m *MemoryRotation) Remember(_ context.Context, key string, pair auth.TokenPair, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = rotationEntry{pair: pair, expires: now.Add(ttl)}
	return nil
}

const rotationPrefix = "refresh:rotated:"

// RedisRotation shares rotations across gateway replicas.
type RedisRotation struct {
	client *redis.Client
}

func NewRedisRotation(client *redis.Client) *RedisRotation {
	return &RedisRotation{client: client}
}

func (r *RedisRotation) Lookup(ctx context.Context, key string) (auth.TokenPair, bool, error) {
	data, err := r.client.Get(ctx, rotationPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return auth.TokenPair{}, false, nil
	}
	if err != nil {
		return auth.TokenPair{}, false, fmt.Errorf("get rotation: %w", err)
	}
	var pair auth.TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return auth.TokenPair{}, false, fmt.Errorf("decode rotation: %w", err)
	}
	return pair, true, nil
}

func (r *RedisRotation) Remember(ctx context.Context, key string, pair auth.TokenPair, ttl time.Duration) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, rotationPrefix+key, data, ttl).Err()
}
