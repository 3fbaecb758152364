package catalog

import (
	"sync"
	"time"
)

const cacheSweepInterval = time.Minute

// cacheEntry pairs raw backend bytes with their expiry.
type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e cacheEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// metaCache is a TTL-bounded read-through cache for catalog lookups.
// Values are the raw JSON bytes stored in the backend. Expired entries
// stop being served immediately and are swept in bulk once a minute.
type metaCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newMetaCache(ttl time.Duration) *metaCache {
	c := &metaCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Get returns the cached bytes for key, if present and fresh.
func (c *metaCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || entry.expired(time.Now()) {
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key for the cache TTL.
func (c *metaCache) Set(key string, value []byte) {
	entry := cacheEntry{value: value, expiresAt: time.Now().Add(c.ttl)}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Delete drops key immediately.
func (c *metaCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *metaCache) sweepLoop() {
	ticker := time.NewTicker(cacheSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep(time.Now())
		case <-c.stopCh:
			return
		}
	}
}

// sweep drops every entry that expired before now.
func (c *metaCache) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
		}
	}
}

// Stop ends the sweeper. Safe to call more than once.
func (c *metaCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}
