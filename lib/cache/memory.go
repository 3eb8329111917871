package cache

import (
	"context"
	"sync"
	"time"
)

// entry is a stored value with its expiry deadline. A zero deadline means
// the entry never expires.
type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// memoryCache implements the Cache interface with a process-local map.
// Expired entries are evicted lazily on read.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewMemoryCache creates an in-memory cache backend.
func NewMemoryCache() Cache {
	return &memoryCache{entries: make(map[string]entry)}
}

// BackendName identifies the implementation for logs.
func (m *memoryCache) BackendName() string {
	return "memory"
}

// Set stores a value with an optional expiration (zero means no expiry).
func (m *memoryCache) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if expiration > 0 {
		e.expiresAt = time.Now().Add(expiration)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Get retrieves a value, evicting it first if it has expired.
func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrKeyNotFound
	}
	if e.expired(time.Now()) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, ErrKeyNotFound
	}
	return e.value, nil
}

// Delete removes a key.
func (m *memoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}
