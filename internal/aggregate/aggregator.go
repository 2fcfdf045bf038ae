// Package aggregate folds accepted, scored posts into per-ticker rolling
// state: time-decayed weighted sentiment, mention counters, community
// breakdown and quality ratios.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/persistence"
)

const (
	qualityMentionThreshold = 60 // quality score at or above this counts as a quality mention
	saveRetries             = 3  // reload-and-retry attempts on version conflict
)

// Window constants for the rolling counters.
const (
	window24h = 24 * time.Hour
	window7d  = 7 * 24 * time.Hour
)

// Aggregator maintains per-ticker aggregates. Updates to the same ticker are
// serialized through a keyed mutex; the repo's version check catches writers
// in other processes.
type Aggregator struct {
	aggs  persistence.AggregateRepo
	items persistence.ItemRepo
	locks *tickerLocks
	now   func() time.Time
	log   zerolog.Logger
}

// New creates an aggregator over the given repositories.
func New(aggs persistence.AggregateRepo, items persistence.ItemRepo) *Aggregator {
	return &Aggregator{
		aggs:  aggs,
		items: items,
		locks: newTickerLocks(),
		now:   time.Now,
		log:   log.With().Str("component", "aggregator").Logger(),
	}
}

// WithClock overrides the clock, for tests.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Apply folds one accepted scored post into its ticker aggregate, creating the
// aggregate on first mention. The read-modify-write is retried on version
// conflict.
func (a *Aggregator) Apply(ctx context.Context, item persistence.ScoredPost) error {
	ticker := item.Score.Ticker
	if ticker == "" {
		return fmt.Errorf("scored post %s has no ticker", item.Post.ID)
	}

	unlock := a.locks.lock(ticker)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt <= saveRetries; attempt++ {
		agg, err := a.loadOrCreate(ctx, ticker)
		if err != nil {
			return err
		}
		a.fold(agg, item)
		if err := a.aggs.SaveAggregate(ctx, agg); err != nil {
			if errors.Is(err, persistence.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return fmt.Errorf("save aggregate %s: %w", ticker, err)
		}
		return nil
	}
	return fmt.Errorf("save aggregate %s after %d retries: %w", ticker, saveRetries, lastErr)
}

// TickerError records a failed per-ticker update inside a batch.
type TickerError struct {
	Ticker string
	Err    error
}

// BatchResult is the typed partial-failure outcome of a batch apply.
type BatchResult struct {
	Succeeded []string
	Failed    []TickerError
}

// ApplyBatch folds a batch of scored posts. A failure on one ticker never
// blocks updates to the others; errors are collected per ticker.
func (a *Aggregator) ApplyBatch(ctx context.Context, items []persistence.ScoredPost) BatchResult {
	var res BatchResult
	for _, item := range items {
		if err := a.Apply(ctx, item); err != nil {
			a.log.Error().Err(err).
				Str("ticker", item.Score.Ticker).
				Str("post_id", item.Post.ID).
				Msg("aggregate update failed")
			res.Failed = append(res.Failed, TickerError{Ticker: item.Score.Ticker, Err: err})
			continue
		}
		res.Succeeded = append(res.Succeeded, item.Score.Ticker)
	}
	return res
}

// Get returns the current aggregate for a ticker.
func (a *Aggregator) Get(ctx context.Context, ticker string) (*models.TickerAggregate, error) {
	return a.aggs.GetAggregate(ctx, ticker)
}

func (a *Aggregator) loadOrCreate(ctx context.Context, ticker string) (*models.TickerAggregate, error) {
	agg, err := a.aggs.GetAggregate(ctx, ticker)
	if errors.Is(err, persistence.ErrNotFound) {
		return models.NewTickerAggregate(ticker), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load aggregate %s: %w", ticker, err)
	}
	return agg, nil
}

// fold applies the incremental update rule for one scored post.
func (a *Aggregator) fold(agg *models.TickerAggregate, item persistence.ScoredPost) {
	now := a.now()
	post, score := item.Post, item.Score

	agg.Mentions.Total++
	if now.Sub(post.CreatedAt) <= window24h {
		agg.Mentions.Last24h++
	}
	if now.Sub(post.CreatedAt) <= window7d {
		agg.Mentions.Last7d++
	}

	blendSentiment(&agg.Sentiment, score)

	if score.QualityScore >= qualityMentionThreshold {
		agg.QualityCount++
	}
	agg.QualitySum += score.QualityScore
	agg.TotalUpvotes += post.Upvotes
	agg.TotalComments += post.Comments

	cs, ok := agg.Communities[post.Community]
	if !ok {
		cs = &models.CommunityStats{}
		agg.Communities[post.Community] = cs
	}
	cs.AvgSentiment = (cs.AvgSentiment*float64(cs.Count) + score.SentimentScore) / float64(cs.Count+1)
	cs.Count++

	agg.UpdatedAt = now
}

// blendSentiment applies the exponentially-weighted sentiment update. The
// item's contribution weight is its quality scaled by recency, so a fresh
// high-quality post moves the trend far more than a stale low-effort one.
func blendSentiment(trend *models.SentimentTrend, score models.PostScore) {
	itemWeight := score.QualityScore * score.DecayFactor / 100
	existingWeight := trend.Weight()
	newWeight := existingWeight + itemWeight
	if newWeight <= 0 {
		return
	}

	trend.Previous = trend.Current
	trend.Current = models.ClampSentiment(
		(trend.Current*existingWeight + score.SentimentScore*itemWeight) / newWeight)
	trend.Change = trend.Current - trend.Previous
	trend.Confidence = models.Clamp(newWeight/10, 0, 1)
	trend.SetWeight(newWeight)
}

// tickerLocks serializes writers per ticker.
type tickerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newTickerLocks() *tickerLocks {
	return &tickerLocks{locks: make(map[string]*sync.Mutex)}
}

func (t *tickerLocks) lock(ticker string) func() {
	t.mu.Lock()
	m, ok := t.locks[ticker]
	if !ok {
		m = &sync.Mutex{}
		t.locks[ticker] = m
	}
	t.mu.Unlock()

	m.Lock()
	return m.Unlock
}
