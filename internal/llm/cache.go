package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// cacheEntry represents a cached model response.
type cacheEntry struct {
	expiry time.Time
	text   string
}

// responseCache provides thread-safe caching of model responses keyed by
// backend and prompt.
type responseCache struct {
	entries map[string]cacheEntry
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
	once    sync.Once
}

// newResponseCache creates a new cache with the specified TTL.
func newResponseCache(ttl time.Duration) *responseCache {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	cache := &responseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// cacheKey derives a stable key from the backend identity and the request.
func cacheKey(backend string, req Request) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%s\x00%g\x00%d",
		backend, req.System, req.Prompt, req.Temperature, req.MaxTokens)))
	return hex.EncodeToString(sum[:])
}

// get retrieves a response from the cache if it exists and hasn't expired.
func (c *responseCache) get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || time.Now().After(entry.expiry) {
		return "", false
	}

	return entry.text, true
}

// set stores a response in the cache.
func (c *responseCache) set(key, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		text:   text,
		expiry: time.Now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries.
func (c *responseCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// size returns the number of entries in the cache.
func (c *responseCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *responseCache) Close() {
	c.once.Do(func() { close(c.stopCh) })
}
