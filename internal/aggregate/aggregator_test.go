package aggregate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/persistence"
)

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func newTestAggregator() (*Aggregator, *persistence.Repository) {
	repo := persistence.NewMemoryRepository()
	agg := New(repo.Aggregates, repo.Items).WithClock(func() time.Time { return testNow })
	return agg, repo
}

func mention(id, community, ticker string, sentiment, quality, decay float64, createdAt time.Time) persistence.ScoredPost {
	return persistence.ScoredPost{
		Post: models.Post{
			ID:        id,
			Community: community,
			Upvotes:   10,
			Comments:  4,
			CreatedAt: createdAt,
		},
		Score: models.PostScore{
			PostID:         id,
			Ticker:         ticker,
			QualityScore:   quality,
			PassesFilter:   true,
			SentimentScore: sentiment,
			DecayFactor:    decay,
			ScoredAt:       createdAt,
		},
	}
}

func TestApply_CreatesAggregateOnFirstMention(t *testing.T) {
	agg, _ := newTestAggregator()
	ctx := context.Background()

	item := mention("p1", "stocks", "ACME", 40, 80, 1, testNow.Add(-time.Hour))
	require.NoError(t, agg.Apply(ctx, item))

	state, err := agg.Get(ctx, "ACME")
	require.NoError(t, err)

	assert.Equal(t, 1, state.Mentions.Total)
	assert.Equal(t, 1, state.Mentions.Last24h)
	assert.Equal(t, 1, state.Mentions.Last7d)

	// First item: weight 80*1/100 = 0.8, so current equals the item sentiment.
	assert.InDelta(t, 40.0, state.Sentiment.Current, 1e-9)
	assert.InDelta(t, 0.08, state.Sentiment.Confidence, 1e-9)
	assert.Equal(t, 1, state.QualityCount, "quality 80 >= 60 counts")
	assert.Equal(t, 10, state.TotalUpvotes)
	assert.Equal(t, 4, state.TotalComments)

	cs := state.Communities["stocks"]
	require.NotNil(t, cs)
	assert.Equal(t, 1, cs.Count)
	assert.InDelta(t, 40.0, cs.AvgSentiment, 1e-9)
}

func TestApply_BlendsSentimentByQualityAndDecay(t *testing.T) {
	agg, _ := newTestAggregator()
	ctx := context.Background()

	// weight 0.8 at sentiment +40, then weight 0.2 at sentiment -20.
	require.NoError(t, agg.Apply(ctx, mention("p1", "stocks", "ACME", 40, 80, 1, testNow.Add(-time.Hour))))
	require.NoError(t, agg.Apply(ctx, mention("p2", "stocks", "ACME", -20, 40, 0.5, testNow.Add(-time.Hour))))

	state, err := agg.Get(ctx, "ACME")
	require.NoError(t, err)

	// (40*0.8 + -20*0.2) / 1.0 = 28
	assert.InDelta(t, 28.0, state.Sentiment.Current, 1e-9)
	assert.InDelta(t, 40.0, state.Sentiment.Previous, 1e-9)
	assert.InDelta(t, -12.0, state.Sentiment.Change, 1e-9)
	assert.InDelta(t, 0.1, state.Sentiment.Confidence, 1e-9)
	assert.InDelta(t, 1.0, state.Sentiment.Weight(), 1e-9)
}

func TestApply_WindowCounters(t *testing.T) {
	agg, _ := newTestAggregator()
	ctx := context.Background()

	require.NoError(t, agg.Apply(ctx, mention("fresh", "stocks", "ACME", 10, 50, 1, testNow.Add(-time.Hour))))
	require.NoError(t, agg.Apply(ctx, mention("old", "stocks", "ACME", 10, 50, 0.1, testNow.Add(-3*24*time.Hour))))
	require.NoError(t, agg.Apply(ctx, mention("ancient", "stocks", "ACME", 10, 50, 0, testNow.Add(-10*24*time.Hour))))

	state, err := agg.Get(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, 3, state.Mentions.Total)
	assert.Equal(t, 1, state.Mentions.Last24h)
	assert.Equal(t, 2, state.Mentions.Last7d)
}

func TestApply_CommunityRunningAverage(t *testing.T) {
	agg, _ := newTestAggregator()
	ctx := context.Background()

	require.NoError(t, agg.Apply(ctx, mention("p1", "stocks", "ACME", 30, 50, 1, testNow)))
	require.NoError(t, agg.Apply(ctx, mention("p2", "stocks", "ACME", 50, 50, 1, testNow)))
	require.NoError(t, agg.Apply(ctx, mention("p3", "investing", "ACME", -10, 50, 1, testNow)))

	state, err := agg.Get(ctx, "ACME")
	require.NoError(t, err)
	require.Len(t, state.Communities, 2)
	assert.Equal(t, 2, state.Communities["stocks"].Count)
	assert.InDelta(t, 40.0, state.Communities["stocks"].AvgSentiment, 1e-9)
	assert.InDelta(t, -10.0, state.Communities["investing"].AvgSentiment, 1e-9)
}

func TestApply_RejectsMissingTicker(t *testing.T) {
	agg, _ := newTestAggregator()
	item := mention("p1", "stocks", "", 10, 50, 1, testNow)
	assert.Error(t, agg.Apply(context.Background(), item))
}

func TestApplyBatch_CollectsPerTickerErrors(t *testing.T) {
	agg, _ := newTestAggregator()
	ctx := context.Background()

	items := []persistence.ScoredPost{
		mention("p1", "stocks", "GOOD", 10, 50, 1, testNow),
		mention("p2", "stocks", "", 10, 50, 1, testNow), // no ticker, must fail alone
		mention("p3", "stocks", "ALSO", 10, 50, 1, testNow),
	}

	res := agg.ApplyBatch(ctx, items)
	assert.Equal(t, []string{"GOOD", "ALSO"}, res.Succeeded)
	require.Len(t, res.Failed, 1)

	_, err := agg.Get(ctx, "ALSO")
	assert.NoError(t, err, "failure on one ticker must not block the rest")
}

func TestApply_ConcurrentSameTickerLosesNoUpdates(t *testing.T) {
	agg, _ := newTestAggregator()
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			item := mention("p", "stocks", "ACME", 10, 50, 1, testNow)
			assert.NoError(t, agg.Apply(ctx, item))
		}(i)
	}
	wg.Wait()

	state, err := agg.Get(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, writers, state.Mentions.Total)
}

// conflictingAggs wraps the memory repo to force version conflicts on the
// first saves, exercising the reload-and-retry path.
type conflictingAggs struct {
	persistence.AggregateRepo
	mu       sync.Mutex
	failures int
}

func (c *conflictingAggs) SaveAggregate(ctx context.Context, agg *models.TickerAggregate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		return persistence.ErrVersionConflict
	}
	return c.AggregateRepo.SaveAggregate(ctx, agg)
}

func TestApply_RetriesOnVersionConflict(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	aggs := &conflictingAggs{AggregateRepo: repo.Aggregates, failures: 2}
	agg := New(aggs, repo.Items).WithClock(func() time.Time { return testNow })

	err := agg.Apply(context.Background(), mention("p1", "stocks", "ACME", 10, 50, 1, testNow))
	require.NoError(t, err)

	state, err := agg.Get(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, 1, state.Mentions.Total, "retried fold must not double-count")
}

func TestApply_GivesUpAfterRetryBudget(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	aggs := &conflictingAggs{AggregateRepo: repo.Aggregates, failures: 100}
	agg := New(aggs, repo.Items).WithClock(func() time.Time { return testNow })

	err := agg.Apply(context.Background(), mention("p1", "stocks", "ACME", 10, 50, 1, testNow))
	require.Error(t, err)
	assert.True(t, errors.Is(err, persistence.ErrVersionConflict))
}
