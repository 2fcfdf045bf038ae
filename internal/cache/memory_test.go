package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocktide/stocktide/internal/confidence"
)

func TestMemoryConfidenceCache_RoundTrip(t *testing.T) {
	c := NewMemoryConfidenceCache(16, time.Minute)
	defer c.Stop()
	ctx := context.Background()

	_, ok := c.Get(ctx, "GME")
	assert.False(t, ok)

	res := &confidence.Result{Ticker: "GME", Score: 61, Level: confidence.LevelMedium}
	require.NoError(t, c.Set(ctx, "GME", res))

	got, ok := c.Get(ctx, "GME")
	require.True(t, ok)
	assert.Equal(t, res, got)
	assert.Equal(t, "memory", c.Name())
}

func TestMemoryConfidenceCache_Expires(t *testing.T) {
	c := NewMemoryConfidenceCache(16, 10*time.Millisecond)
	defer c.Stop()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "GME", &confidence.Result{Ticker: "GME"}))
	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get(ctx, "GME")
	assert.False(t, ok)
}

type recordedCounts struct {
	hits, misses map[string]int
}

func newRecordedCounts() *recordedCounts {
	return &recordedCounts{hits: make(map[string]int), misses: make(map[string]int)}
}

func (r *recordedCounts) RecordCacheHit(name string)  { r.hits[name]++ }
func (r *recordedCounts) RecordCacheMiss(name string) { r.misses[name]++ }

func TestInstrumented_CountsHitsAndMisses(t *testing.T) {
	inner := NewMemoryConfidenceCache(16, time.Minute)
	defer inner.Stop()
	rec := newRecordedCounts()
	c := Instrument(inner, "memory", rec)
	ctx := context.Background()

	_, ok := c.Get(ctx, "GME")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "GME", &confidence.Result{Ticker: "GME"}))
	_, ok = c.Get(ctx, "GME")
	assert.True(t, ok)

	assert.Equal(t, 1, rec.hits["memory"])
	assert.Equal(t, 1, rec.misses["memory"])
}
