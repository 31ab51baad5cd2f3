package cache

import (
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const DefaultTTL = 5 * time.Minute

// Cache is an in-process key/value store with per-entry expiry. Entries are
// evicted lazily on read; there is no background sweep. It is process-local
// and safe for concurrent use within one process only.
type Cache struct {
	mu    sync.Mutex
	store *gocache.Cache
}

func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	// cleanup interval 0 disables the janitor, keeping eviction lazy
	return &Cache{store: gocache.New(defaultTTL, 0)}
}

// Set stores data under key with absolute expiry now+ttl. A non-positive ttl
// selects the cache default.
func (c *Cache) Set(key string, data interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.store.Set(key, data, ttl)
}

// Get returns the value for key, or nil and false when the key is absent or
// its entry has expired.
func (c *Cache) Get(key string) (interface{}, bool) {
	return c.store.Get(key)
}

func (c *Cache) Has(key string) bool {
	_, found := c.store.Get(key)
	return found
}

func (c *Cache) Delete(key string) {
	c.store.Delete(key)
}

// DeleteByPrefix removes every unexpired entry whose key starts with prefix.
// Key namespacing is a caller convention, not enforced here.
func (c *Cache) DeleteByPrefix(prefix string) {
	for key := range c.store.Items() {
		if strings.HasPrefix(key, prefix) {
			c.store.Delete(key)
		}
	}
}

func (c *Cache) Clear() {
	c.store.Flush()
}

// GetOrSet returns the cached value for key if present and unexpired;
// otherwise it invokes producer exactly once, caches its result under key and
// returns it. A producer error propagates to the caller and caches nothing.
func (c *Cache) GetOrSet(key string, producer func() (interface{}, error), ttl time.Duration) (interface{}, error) {
	if data, found := c.store.Get(key); found {
		return data, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// a concurrent caller may have produced the value while we waited
	if data, found := c.store.Get(key); found {
		return data, nil
	}

	data, err := producer()
	if err != nil {
		return nil, err
	}
	c.Set(key, data, ttl)
	return data, nil
}
