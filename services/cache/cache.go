package cache

import (
	"errors"
	"strconv"
	"sync"
	"time"
)

// ErrMiss is returned by MemoryCache when a key is absent or expired
var ErrMiss = errors.New("cache miss")

// CacheService represents a generic cache service
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}

// BlockKey is the cache key of a source's rate-limit marker
func BlockKey(source string) string {
	return source + "_rate_limited"
}

// IsBlocked reports whether the rate-limit marker under key is present
func IsBlocked(svc CacheService, key string) bool {
	_, err := svc.Get(key)
	return err == nil
}

// MarkBlocked stores the rate-limit marker under key for d.
// The value records the block length in seconds. A non-positive d stores nothing,
// since a marker without expiry would block the source for good.
func MarkBlocked(svc CacheService, key string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return svc.Set(key, []byte(strconv.Itoa(int(d/time.Second))), d)
}

// MemoryCache is an in-process CacheService used when no memcached is configured
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemoryCache creates an empty in-process cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the value under key unless it has expired
func (m *MemoryCache) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, ErrMiss
	}
	return e.value, nil
}

// Set stores value under key. A non-positive expiration never expires.
func (m *MemoryCache) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{value: value}
	if expiration > 0 {
		e.expires = m.now().Add(expiration)
	}
	m.entries[key] = e
	return nil
}

// Delete removes key
func (m *MemoryCache) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}
