// internal/marketplace/cache.go
package marketplace

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// listingCache holds query results for a bounded TTL. Plain in-memory map,
// no persistence across restarts.
type listingCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	logger  *zap.Logger
}

type cacheEntry struct {
	listings  []Listing
	total     int
	expiresAt time.Time
}

func newListingCache(ttl time.Duration, logger *zap.Logger) *listingCache {
	return &listingCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		logger:  logger,
	}
}

func (c *listingCache) get(key string) ([]Listing, int, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, 0, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock, another caller may have refreshed it.
		if cur, ok := c.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, 0, false
	}
	return entry.listings, entry.total, true
}

func (c *listingCache) put(key string, listings []Listing, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		listings:  listings,
		total:     total,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *listingCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
