package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache implements the Cache interface using Redis, for deployments
// where resolver state should survive restarts or be shared across replicas.
type redisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis cache backend from a redis:// URL.
func NewRedisCache(redisURL string) (Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &redisCache{client: redis.NewClient(opt)}, nil
}

// BackendName identifies the implementation for logs.
func (r *redisCache) BackendName() string {
	return "redis"
}

// Set stores a value in Redis with expiration.
func (r *redisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value from Redis.
func (r *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Delete removes a key from Redis.
func (r *redisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
