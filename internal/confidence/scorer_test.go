package confidence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocktide/stocktide/internal/crossval"
	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/persistence"
	"github.com/stocktide/stocktide/internal/providers"
)

var testCommunities = []string{"stocks", "investing"}

type scorerFixture struct {
	repo     *persistence.Repository
	searcher *providers.FakeSearcher
	news     *providers.FakeNews
	econ     *providers.FakeEcon
	price    *providers.FakePrice
	scorer   *Scorer
}

func newScorerFixture(t *testing.T) *scorerFixture {
	t.Helper()

	repo := persistence.NewMemoryRepository()

	agg := models.NewTickerAggregate("GME")
	agg.Mentions = models.MentionCounts{Total: 25, Last24h: 25, Last7d: 25}
	agg.QualitySum = 1500
	agg.Sentiment.Current = 40
	agg.Communities["stocks"] = &models.CommunityStats{Count: 15, AvgSentiment: 42}
	agg.Communities["investing"] = &models.CommunityStats{Count: 10, AvgSentiment: 38}
	require.NoError(t, repo.Aggregates.SaveAggregate(context.Background(), agg))

	now := time.Now()
	for i, author := range []string{"alice", "bob", "carol"} {
		err := repo.Items.Insert(context.Background(), persistence.ScoredPost{
			Post: models.Post{
				ID:        author + "-post",
				Community: "stocks",
				Author:    author,
				CreatedAt: now.Add(-time.Duration(i+1) * time.Hour),
			},
			Score: models.PostScore{Ticker: "GME", QualityScore: 60, PassesFilter: true},
		})
		require.NoError(t, err)
	}
	reputation := repo.Reputation.(*persistence.MemoryReputationRepo)
	reputation.SetAuthor(&models.AuthorProfile{Author: "alice", QualityScore: 80, Tier: models.TierExpert})
	reputation.SetAuthor(&models.AuthorProfile{Author: "bob", QualityScore: 60, Tier: models.TierRegular})

	searcher := providers.NewFakeSearcher()
	searcher.SetResult("stocks", "GME", providers.SearchResult{MentionCount: 15, AvgEngagement: 120})
	searcher.SetResult("investing", "GME", providers.SearchResult{MentionCount: 10, AvgEngagement: 80})

	news := providers.NewFakeNews()
	econ := providers.NewFakeEcon()
	price := providers.NewFakePrice()

	set := providers.Set{News: news, Econ: econ, Price: price}
	scorer := NewScorer(repo, crossval.New(searcher, nil), set, nil)

	return &scorerFixture{
		repo:     repo,
		searcher: searcher,
		news:     news,
		econ:     econ,
		price:    price,
		scorer:   scorer,
	}
}

func TestScore_AllChannelsHealthy(t *testing.T) {
	f := newScorerFixture(t)
	f.price.SetSeries("GME", risingSeries(time.Now()))
	for i := 0; i < 6; i++ {
		require.NoError(t, f.repo.Predictions.InsertPrediction(context.Background(), persistence.Prediction{
			Ticker:     "GME",
			Sentiment:  50,
			RecordedAt: time.Now().Add(-time.Duration(20-i) * 24 * time.Hour),
		}))
	}

	res, err := f.scorer.Score(context.Background(), "GME", testCommunities, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "GME", res.Ticker)
	assert.Len(t, res.Components, 6)
	assert.Empty(t, res.Degraded)
	assert.True(t, res.IsValidated)
	assert.Equal(t, LevelFor(res.Score), res.Level)

	// The composite is the weighted average of the healthy components.
	var weighted, total float64
	for _, c := range res.Components {
		weighted += c.Score * c.Weight
		total += c.Weight
	}
	assert.InDelta(t, weighted/total, res.Score, 1e-9)
}

func TestScore_NewsFailureDegradesOnlyNews(t *testing.T) {
	f := newScorerFixture(t)
	f.news.SetFailure(true)

	opts := DefaultOptions()
	opts.IncludeHistorical = false

	res, err := f.scorer.Score(context.Background(), "GME", testCommunities, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{ComponentNews}, res.Degraded)

	newsComp, ok := res.Component(ComponentNews)
	require.True(t, ok)
	assert.True(t, newsComp.Degraded)
	assert.InDelta(t, neutralScore, newsComp.Score, 1e-9)

	// The degraded channel is renormalized out: the composite equals the
	// weighted average over the remaining healthy components.
	var weighted, total float64
	for _, c := range res.Components {
		if c.Degraded {
			continue
		}
		weighted += c.Score * c.Weight
		total += c.Weight
	}
	assert.InDelta(t, weighted/total, res.Score, 1e-9)
}

func TestScore_OptionsExcludeChannels(t *testing.T) {
	f := newScorerFixture(t)

	res, err := f.scorer.Score(context.Background(), "GME", testCommunities, Options{Window: 24 * time.Hour})
	require.NoError(t, err)

	assert.Len(t, res.Components, 3, "core channels only")
	for _, name := range []string{ComponentNews, ComponentEcon, ComponentHistorical} {
		_, ok := res.Component(name)
		assert.False(t, ok, "%s should be excluded", name)
	}
}

func TestScore_HistoricalWithoutDataDegrades(t *testing.T) {
	f := newScorerFixture(t)

	opts := DefaultOptions()
	opts.IncludeNews = false
	opts.IncludeEcon = false

	res, err := f.scorer.Score(context.Background(), "GME", testCommunities, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{ComponentHistorical}, res.Degraded)
}

func TestScore_UnknownTickerErrors(t *testing.T) {
	f := newScorerFixture(t)
	_, err := f.scorer.Score(context.Background(), "ZZZZ", testCommunities, DefaultOptions())
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestScore_SingleCommunityNotValidated(t *testing.T) {
	f := newScorerFixture(t)
	f.searcher.SetCommunityFailure("investing", true)

	opts := Options{Window: 24 * time.Hour}
	res, err := f.scorer.Score(context.Background(), "GME", testCommunities, opts)
	require.NoError(t, err)
	assert.False(t, res.IsValidated)
}

type mapCache struct {
	entries map[string]*Result
	sets    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]*Result)}
}

func (c *mapCache) Get(_ context.Context, key string) (*Result, bool) {
	res, ok := c.entries[key]
	return res, ok
}

func (c *mapCache) Set(_ context.Context, key string, res *Result) error {
	c.entries[key] = res
	c.sets++
	return nil
}

func TestScore_CacheHitSkipsRecompute(t *testing.T) {
	f := newScorerFixture(t)
	cache := newMapCache()
	f.scorer.WithCache(cache)

	opts := Options{Window: 24 * time.Hour}
	first, err := f.scorer.Score(context.Background(), "GME", testCommunities, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	// A provider blowup after caching must be invisible to the cached read.
	f.searcher.SetFailure(true)
	second, err := f.scorer.Score(context.Background(), "GME", testCommunities, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.ComputedAt, second.ComputedAt)
}

func TestScore_CacheDistinguishesOptions(t *testing.T) {
	f := newScorerFixture(t)
	cache := newMapCache()
	f.scorer.WithCache(cache)

	full, err := f.scorer.Score(context.Background(), "GME", testCommunities, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 1, cache.sets)

	// Skipping a channel must recompute, not serve the all-channels result.
	noNews := DefaultOptions()
	noNews.IncludeNews = false
	trimmed, err := f.scorer.Score(context.Background(), "GME", testCommunities, noNews)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.sets)

	_, ok := trimmed.Component(ComponentNews)
	assert.False(t, ok)
	_, ok = full.Component(ComponentNews)
	assert.True(t, ok)
}
