// Package cache provides the pluggable byte-oriented cache used by the
// request resolver to remember verified subjects between requests.
package cache

import (
	"context"
	"errors"
	"time"
)

// Common cache errors.
var (
	ErrKeyNotFound = errors.New("cache key not found")
)

// Cache defines the interface for caching backends. Implementations must be
// safe for concurrent use.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error

	// BackendName identifies the implementation for logs.
	BackendName() string
}
