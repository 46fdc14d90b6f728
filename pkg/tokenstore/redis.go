package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is used when no key is configured.
const DefaultRedisKey = "httpcore:access_token"

// Redis stores the token under a single key so every instance of a service
// sees the same credential and the same logout.
type Redis struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithKey overrides DefaultRedisKey.
func WithKey(key string) RedisOption {
	return func(r *Redis) {
		if key != "" {
			r.key = key
		}
	}
}

// WithTTL expires stored tokens; zero keeps them until removed.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client, key: DefaultRedisKey}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Redis) GetToken(ctx context.Context) (string, error) {
	token, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tokenstore: get %s: %w", r.key, err)
	}
	return token, nil
}

func (r *Redis) SetToken(ctx context.Context, token string) error {
	if err := r.client.Set(ctx, r.key, token, r.ttl).Err(); err != nil {
		return fmt.Errorf("tokenstore: set %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) RemoveToken(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("tokenstore: del %s: %w", r.key, err)
	}
	return nil
}
