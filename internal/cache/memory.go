package cache

import (
	"context"
	"time"

	"github.com/stocktide/stocktide/internal/confidence"
)

// MemoryConfidenceCache is the TTL-backed in-process fallback for the
// confidence result cache, used when Redis is disabled.
type MemoryConfidenceCache struct {
	ttl      *TTL
	lifetime time.Duration
}

// NewMemoryConfidenceCache creates an in-process confidence cache bounded to
// maxEntries results.
func NewMemoryConfidenceCache(maxEntries int, lifetime time.Duration) *MemoryConfidenceCache {
	return &MemoryConfidenceCache{
		ttl:      NewTTL(maxEntries),
		lifetime: lifetime,
	}
}

func (c *MemoryConfidenceCache) Get(_ context.Context, key string) (*confidence.Result, bool) {
	v, ok := c.ttl.Get(key)
	if !ok {
		return nil, false
	}
	res, ok := v.(*confidence.Result)
	return res, ok
}

func (c *MemoryConfidenceCache) Set(_ context.Context, key string, res *confidence.Result) error {
	c.ttl.Set(key, res, c.lifetime)
	return nil
}

// Name identifies the cache in logs and metrics.
func (c *MemoryConfidenceCache) Name() string { return "memory" }

// Stats exposes the underlying TTL cache counters.
func (c *MemoryConfidenceCache) Stats() Stats { return c.ttl.Stats() }

// Stop shuts down the janitor.
func (c *MemoryConfidenceCache) Stop() { c.ttl.Stop() }

// HitMissRecorder receives cache hit/miss observations. Satisfied by the ops
// metrics registry.
type HitMissRecorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// Instrumented decorates a confidence result cache with hit/miss metrics.
type Instrumented struct {
	inner confidence.ResultCache
	name  string
	rec   HitMissRecorder
}

// Instrument wraps a cache so every lookup is counted under its name.
func Instrument(inner confidence.ResultCache, name string, rec HitMissRecorder) *Instrumented {
	return &Instrumented{inner: inner, name: name, rec: rec}
}

func (i *Instrumented) Get(ctx context.Context, key string) (*confidence.Result, bool) {
	res, ok := i.inner.Get(ctx, key)
	if ok {
		i.rec.RecordCacheHit(i.name)
	} else {
		i.rec.RecordCacheMiss(i.name)
	}
	return res, ok
}

func (i *Instrumented) Set(ctx context.Context, key string, res *confidence.Result) error {
	return i.inner.Set(ctx, key, res)
}
