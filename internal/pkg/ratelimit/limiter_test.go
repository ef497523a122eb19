package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(3, time.Minute)
	now := time.Now()
	l.now = func() time.Time { return now }

	for i := int64(1); i <= 3; i++ {
		ok, remaining, err := l.CheckLoginAttempt(ctx, "10.0.0.1", "acme/ann")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 3-i, remaining)
	}
	ok, remaining, _ := l.CheckLoginAttempt(ctx, "10.0.0.1", "acme/ann")
	assert.False(t, ok)
	assert.Zero(t, remaining)

	ok, _, _ = l.CheckLoginAttempt(ctx, "10.0.0.2", "acme/ann")
	assert.True(t, ok, "other clients are counted separately")

	now = now.Add(2 * time.Minute)
	ok, _, _ = l.CheckLoginAttempt(ctx, "10.0.0.1", "acme/ann")
	assert.True(t, ok, "window expired")

	require.NoError(t, l.ResetLoginAttempts(ctx, "10.0.0.1", "acme/ann"))
	_, remaining, _ = l.CheckLoginAttempt(ctx, "10.0.0.1", "acme/ann")
	assert.Equal(t, int64(2), remaining)
}

func TestMemoryLimiter_EvictsExpiredCounters(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(5, time.Minute)
	now := time.Now()
	l.now = func() time.Time { return now }

	for i := 0; i < 10000; i++ {
		_, _, err := l.CheckLoginAttempt(ctx, "10.0.0.1", fmt.Sprintf("acme/user%d", i))
		require.NoError(t, err)
	}
	require.Len(t, l.counters, 10000)

	now = now.Add(time.Hour)
	_, _, err := l.CheckLoginAttempt(ctx, "10.0.0.1", "acme/late")
	require.NoError(t, err)
	assert.Len(t, l.counters, 1)
}

func newRedisLimiter(t *testing.T, max int64, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client, max, window), mr
}

func TestRedisLimiter_CountsWithinWindow(t *testing.T) {
	ctx := context.Background()
	l, mr := newRedisLimiter(t, 2, time.Minute)

	ok, remaining, err := l.CheckLoginAttempt(ctx, "10.0.0.1", "acme/ann")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), remaining)
	assert.Equal(t, time.Minute, mr.TTL(loginKey("10.0.0.1", "acme/ann")))

	_, _, _ = l.CheckLoginAttempt(ctx, "10.0.0.1", "acme/ann")
	ok, _, err = l.CheckLoginAttempt(ctx, "10.0.0.1", "acme/ann")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, _, err = l.CheckLoginAttempt(ctx, "10.0.0.1", "acme/ann")
	require.NoError(t, err)
	assert.True(t, ok, "window expired")
}

func TestRedisLimiter_RepairsCounterWithoutTTL(t *testing.T) {
	ctx := context.Background()
	l, mr := newRedisLimiter(t, 5, time.Minute)
	key := loginKey("10.0.0.1", "acme/ann")
	require.NoError(t, mr.Set(key, "9"))

	ok, _, err := l.CheckLoginAttempt(ctx, "10.0.0.1", "acme/ann")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL(key), "a stuck counter gets a window again")
}

func TestRedisLimiter_ReportsStoreErrors(t *testing.T) {
	l, mr := newRedisLimiter(t, 5, time.Minute)
	mr.Close()

	_, _, err := l.CheckLoginAttempt(context.Background(), "10.0.0.1", "acme/ann")
	assert.Error(t, err)
}
