package objectstore

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a concurrent-safe LRU cache for fetched objects with TTL
// expiration. It backs the gateway's short-lived server-side cache and is
// independent of the client-side dataset cache.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	hits       atomic.Int64
	misses     atomic.Int64
}

type cacheEntry struct {
	payload     []byte
	contentType string
	createdAt   time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewCache creates a Cache with the given capacity and TTL.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// objectKey builds the cache key for an object.
func objectKey(bucket, key string, format Format) string {
	return fmt.Sprintf("%s:%s:%s", format, bucket, key)
}

// Get retrieves a cached object. Returns nil payload on miss or expiration.
func (c *Cache) Get(bucket, key string, format Format) ([]byte, string) {
	k := objectKey(bucket, key, format)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[k]
	if !ok {
		c.misses.Add(1)
		return nil, ""
	}

	// Check TTL.
	if c.now().Sub(entry.createdAt) >= c.ttl {
		delete(c.entries, k)
		c.removeFromOrder(k)
		c.misses.Add(1)
		return nil, ""
	}

	// Move to back (most recently used).
	c.removeFromOrder(k)
	c.order = append(c.order, k)
	c.hits.Add(1)
	return entry.payload, entry.contentType
}

// Put stores an object in the cache, evicting the oldest entry if at capacity.
func (c *Cache) Put(bucket, key string, format Format, payload []byte, contentType string) {
	k := objectKey(bucket, key, format)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[k]; ok {
		c.entries[k] = &cacheEntry{payload: payload, contentType: contentType, createdAt: c.now()}
		c.removeFromOrder(k)
		c.order = append(c.order, k)
		return
	}

	// Evict from front if at capacity.
	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[k] = &cacheEntry{payload: payload, contentType: contentType, createdAt: c.now()}
	c.order = append(c.order, k)
}

// Stats returns cache performance statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

// removeFromOrder removes a key from the LRU order slice.
func (c *Cache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
