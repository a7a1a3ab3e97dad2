package llm

import (
	"sync"
	"time"

	"github.com/Veraticus/civic-flow/internal/model"
)

// cacheEntry represents cached matches for one proposition text.
type cacheEntry struct {
	expiry  time.Time
	matches []model.CategoryMatch
}

// suggestionCache provides thread-safe caching of enrichment results keyed
// by proposition text hash.
type suggestionCache struct {
	entries map[string]cacheEntry
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
	once    sync.Once
}

// newSuggestionCache creates a new cache with the specified TTL.
func newSuggestionCache(ttl time.Duration) *suggestionCache {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	cache := &suggestionCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// get retrieves matches from the cache if they exist and haven't expired.
func (c *suggestionCache) get(key string) ([]model.CategoryMatch, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || time.Now().After(entry.expiry) {
		return nil, false
	}

	out := make([]model.CategoryMatch, len(entry.matches))
	copy(out, entry.matches)
	return out, true
}

// set stores matches in the cache. An empty result is cached too so the
// same text is not resubmitted.
func (c *suggestionCache) set(key string, matches []model.CategoryMatch) {
	stored := make([]model.CategoryMatch, len(matches))
	copy(stored, matches)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		matches: stored,
		expiry:  time.Now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries.
func (c *suggestionCache) cleanup() {
	interval := c.ttl
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
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
func (c *suggestionCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (c *suggestionCache) Close() {
	c.once.Do(func() { close(c.stopCh) })
}
