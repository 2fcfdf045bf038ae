package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTL_SetGet(t *testing.T) {
	c := NewTTL(10)
	defer c.Stop()

	c.Set("k", 42, time.Minute)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestTTL_Expiry(t *testing.T) {
	c := NewTTL(10)
	defer c.Stop()

	c.Set("short", "v", 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok, "expired entries must miss")
}

func TestTTL_LRUEviction(t *testing.T) {
	c := NewTTL(2)
	defer c.Stop()

	c.Set("a", 1, time.Minute)
	time.Sleep(2 * time.Millisecond)
	c.Set("b", 2, time.Minute)
	time.Sleep(2 * time.Millisecond)

	// Touch "a" so "b" becomes the least recently used.
	_, ok := c.Get("a")
	require.True(t, ok)
	time.Sleep(2 * time.Millisecond)

	c.Set("c", 3, time.Minute)

	_, ok = c.Get("b")
	assert.False(t, ok, "LRU entry should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestTTL_OverwriteDoesNotEvict(t *testing.T) {
	c := NewTTL(2)
	defer c.Stop()

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Set("a", 10, time.Minute)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
	_, ok = c.Get("b")
	assert.True(t, ok)
	assert.Zero(t, c.Stats().Evictions)
}

func TestTTL_Stats(t *testing.T) {
	c := NewTTL(10)
	defer c.Stop()

	c.Set("a", 1, time.Minute)
	c.Get("a")
	c.Get("a")
	c.Get("nope")

	s := c.Stats()
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, int64(1), s.Entries)
	assert.InDelta(t, 2.0/3.0, s.HitRatio(), 1e-9)
}

func TestTTL_HitRatioEmpty(t *testing.T) {
	assert.Zero(t, Stats{}.HitRatio())
}

func TestTTL_Delete(t *testing.T) {
	c := NewTTL(10)
	defer c.Stop()

	c.Set("a", 1, time.Minute)
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestTTL_StopIsIdempotent(t *testing.T) {
	c := NewTTL(10)
	c.Stop()
	c.Stop()
}
