// Package cache provides the pipeline's two caches: a size-bound in-memory
// TTL cache for cheap lookups, and a Redis-backed short-TTL cache for
// confidence results.
package cache

import (
	"sync"
	"time"
)

// Stats summarizes TTL cache performance.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int64 `json:"entries"`
}

// HitRatio returns hits over total lookups.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// TTL is a thread-safe in-memory cache with per-entry expiration, a size
// bound with LRU eviction, and a janitor goroutine sweeping expired entries.
type TTL struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	maxEntries int
	stats      Stats
	stopCh     chan struct{}
	stopOnce   sync.Once
}

type entry struct {
	value    any
	expires  time.Time
	accessed time.Time
}

// NewTTL creates a TTL cache with the given maximum entry count and starts
// its janitor.
func NewTTL(maxEntries int) *TTL {
	c := &TTL{
		entries:    make(map[string]*entry),
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Get retrieves a value if present and not expired.
func (c *TTL) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		c.stats.Misses++
		return nil, false
	}
	e.accessed = time.Now()
	c.stats.Hits++
	return e.value, true
}

// Set stores a value with the given TTL, evicting the least recently used
// entry when the cache is full.
func (c *TTL) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}
	now := time.Now()
	c.entries[key] = &entry{
		value:    value,
		expires:  now.Add(ttl),
		accessed: now,
	}
}

// Delete removes a key.
func (c *TTL) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Stats returns a snapshot of cache counters.
func (c *TTL) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Entries = int64(len(c.entries))
	return s
}

// Stop shuts down the janitor.
func (c *TTL) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// caller must hold the write lock
func (c *TTL) evictLRU() {
	var oldestKey string
	oldest := time.Now().Add(time.Hour)
	for key, e := range c.entries {
		if e.accessed.Before(oldest) {
			oldest = e.accessed
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}

func (c *TTL) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *TTL) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, key)
		}
	}
}
