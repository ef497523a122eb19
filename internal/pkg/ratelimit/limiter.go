// internal/pkg/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter throttles sign-in attempts per client IP and account.
type LoginLimiter interface {
	// CheckLoginAttempt counts an attempt and reports whether it is allowed
	// along with the attempts left in the window.
	CheckLoginAttempt(ctx context.Context, ip, account string) (bool, int64, error)
	ResetLoginAttempts(ctx context.Context, ip, account string) error
}

func loginKey(ip, account string) string {
	return fmt.Sprintf("ratelimit:login:%s:%s", ip, account)
}

// loginAttemptScript increments the counter and gives it a TTL in the same
// step. A key left without one is repaired rather than locking the pair out
// forever.
var loginAttemptScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

type RedisLimiter struct {
	client      *redis.Client
	maxAttempts int64
	window      time.Duration
}

func NewRedisLimiter(client *redis.Client, maxAttempts int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, maxAttempts: maxAttempts, window: window}
}

func (r *RedisLimiter) CheckLoginAttempt(ctx context.Context, ip, account string) (bool, int64, error) {
	count, err := loginAttemptScript.Run(ctx, r.client, []string{loginKey(ip, account)}, r.window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, fmt.Errorf("failed to count login attempt: %w", err)
	}

	remaining := r.maxAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= r.maxAttempts, remaining, nil
}

func (r *RedisLimiter) ResetLoginAttempts(ctx context.Context, ip, account string) error {
	return r.client.Del(ctx, loginKey(ip, account)).Err()
}

// MemoryLimiter is the single-process fallback when Redis is not configured.
type MemoryLimiter struct {
	mu          sync.Mutex
	now         func() time.Time
	maxAttempts int64
	window      time.Duration
	counters    map[string]*counter
	nextSweep   time.Time
}

type counter struct {
	count   int64
	expires time.Time
}

func NewMemoryLimiter(maxAttempts int64, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		now:         time.Now,
		maxAttempts: maxAttempts,
		window:      window,
		counters:    make(map[string]*counter),
	}
}

func (m *MemoryLimiter) CheckLoginAttempt(_ context.Context, ip, account string) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)
	key := loginKey(ip, account)
	c, ok := m.counters[key]
	if !ok || !now.Before(c.expires) {
		c = &counter{expires: now.Add(m.window)}
		m.counters[key] = c
	}
	c.count++

	remaining := m.maxAttempts - c.count
	if remaining < 0 {
		remaining = 0
	}
	return c.count <= m.maxAttempts, remaining, nil
}

// sweep drops expired counters at most once per window, so the map holds
// only accounts tried within the last two windows.
func (m *MemoryLimiter) sweep(now time.Time) {
	if now.Before(m.nextSweep) {
		return
	}
	for k, c := range m.counters {
		if !now.Before(c.expires) {
			delete(m.counters, k)
		}
	}
	m.nextSweep = now.Add(m.window)
}

func (m *MemoryLimiter) ResetLoginAttempts(_ context.Context, ip, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counters, loginKey(ip, account))
	return nil
}
