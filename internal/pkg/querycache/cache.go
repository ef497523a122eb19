// Package querycache holds backend read results per user so repeated screen
// loads skip the backend. Entries are scoped by user id; logging out purges
// the whole scope so the next user of the browser never sees them.
package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrMiss is returned by Get when nothing is cached under the key.
var ErrMiss = errors.New("querycache: miss")

type Cache interface {
	Get(ctx context.Context, scope, key string, dst any) error
	Set(ctx context.Context, scope, key string, value any, ttl time.Duration) error
	// PurgePrefix drops every key in scope that starts with prefix.
	PurgePrefix(ctx context.Context, scope, prefix string) error
	PurgeScope(ctx context.Context, scope string) error
}

// Fetch returns the cached value for key or loads, stores and returns it.
// Cache errors other than a miss are ignored: the loader is the source of
// truth and a broken cache must not break reads.
func Fetch[T any](ctx context.Context, c Cache, scope, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if c != nil && scope != "" {
		if err := c.Get(ctx, scope, key, &cached); err == nil {
			return cached, nil
		}
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if c != nil && scope != "" {
		_ = c.Set(ctx, scope, key, v, ttl)
	}
	return v, nil
}

func encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func decode(data []byte, dst any) error {
	return json.Unmarshal(data, dst)
}
