package querycache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis stores entries as query:<scope>:<key> so gateway replicas share them.
type Redis struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedis(client *redis.Client, logger *zap.Logger) *Redis {
	return &Redis{client: client, logger: logger}
}

func (r *Redis) keyFor(scope, key string) string {
	return fmt.Sprintf("query:%s:%s", scope, key)
}

func (r *Redis) Get(ctx context.Context, scope, key string, dst any) error {
	data, err := r.client.Get(ctx, r.keyFor(scope, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("query cache get: %w", err)
	}
	return decode(data, dst)
}

func (r *Redis) Set(ctx context.Context, scope, key string, value any, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.keyFor(scope, key), data, ttl).Err(); err != nil {
		return fmt.Errorf("query cache set: %w", err)
	}
	return nil
}

func (r *Redis) PurgePrefix(ctx context.Context, scope, prefix string) error {
	return r.purge(ctx, r.keyFor(globEscaper.Replace(scope), globEscaper.Replace(prefix))+"*")
}

func (r *Redis) PurgeScope(ctx context.Context, scope string) error {
	return r.purge(ctx, r.keyFor(globEscaper.Replace(scope), "*"))
}

// globEscaper quotes SCAN MATCH metacharacters; scopes come from the backend.
var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func (r *Redis) purge(ctx context.Context, pattern string) error {
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			r.logger.Warn("failed to delete cached query", zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	return iter.Err()
}
