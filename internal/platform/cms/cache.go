package cms

import (
	"sync"
	"time"
)

// responseCache is a thread-safe in-memory TTL cache for upstream responses.
// Entries are lazily expired on access. All cached upstream state carries an
// explicit expiry timestamp; nothing lives forever.
type responseCache struct {
	mu         sync.RWMutex
	entries    map[string]responseCacheEntry
	defaultTTL time.Duration
}

type responseCacheEntry struct {
	value     []byte
	expiresAt time.Time
}

func newResponseCache(defaultTTL time.Duration) *responseCache {
	return &responseCache{
		entries:    make(map[string]responseCacheEntry),
		defaultTTL: defaultTTL,
	}
}

// get returns the cached value for key, or false when absent or expired.
// Expired entries are removed on access.
func (c *responseCache) get(key string) ([]byte, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		if current, still := c.entries[key]; still && time.Now().After(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

// set stores a value with the cache's default TTL.
func (c *responseCache) set(key string, value []byte) {
	c.mu.Lock()
	c.entries[key] = responseCacheEntry{
		value:     value,
		expiresAt: time.Now().Add(c.defaultTTL),
	}
	c.mu.Unlock()
}

// len reports the number of entries, including ones not yet lazily expired.
func (c *responseCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
