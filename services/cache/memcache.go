package cache

import (
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	crawlerrors "sjsage522/jobscraper/pkg/errors"
)

// MemcacheService implements CacheService on memcached so rate-limit markers
// survive process restarts and are shared between workers.
type MemcacheService struct {
	client *memcache.Client
}

// NewMemcacheService creates a memcached-backed cache for serverAddr
func NewMemcacheService(serverAddr string) *MemcacheService {
	client := memcache.New(serverAddr)
	client.Timeout = 2 * time.Second
	return &MemcacheService{client: client}
}

// Ping checks that the server answers
func (m *MemcacheService) Ping() error {
	return m.client.Ping()
}

// Get retrieves a value; a missing key is reported as ErrMiss
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, crawlerrors.NewCache("memcache", "get "+key, err)
	}
	return item.Value, nil
}

// Set stores a value with an expiration in whole seconds. A positive expiration
// shorter than a second becomes one second; memcached treats 0 as "never".
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	err := m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: expirySeconds(expiration),
	})
	if err != nil {
		return crawlerrors.NewCache("memcache", "set "+key, err)
	}
	return nil
}

func expirySeconds(d time.Duration) int32 {
	if d <= 0 {
		return 0
	}
	return int32(max(d/time.Second, 1))
}

// Delete removes a value; deleting a missing key is not an error
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}
