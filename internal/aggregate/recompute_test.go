package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocktide/stocktide/internal/models"
)

func TestRecompute_CorrectsCounterDrift(t *testing.T) {
	agg, repo := newTestAggregator()
	ctx := context.Background()

	// Three stored items for ACME: two inside 24h, one only inside 7d.
	require.NoError(t, repo.Items.Insert(ctx, mention("p1", "stocks", "ACME", 10, 50, 1, testNow.Add(-time.Hour))))
	require.NoError(t, repo.Items.Insert(ctx, mention("p2", "stocks", "ACME", 10, 50, 1, testNow.Add(-2*time.Hour))))
	require.NoError(t, repo.Items.Insert(ctx, mention("p3", "stocks", "ACME", 10, 50, 1, testNow.Add(-3*24*time.Hour))))

	// Aggregate drifted: it saw only one of them.
	drifted := models.NewTickerAggregate("ACME")
	drifted.Mentions = models.MentionCounts{Total: 1, Last24h: 1, Last7d: 1}
	require.NoError(t, repo.Aggregates.SaveAggregate(ctx, drifted))

	res, err := agg.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TickersChecked)
	assert.Equal(t, 1, res.TickersCorrected)
	assert.Empty(t, res.Failed)

	state, err := agg.Get(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, 3, state.Mentions.Total)
	assert.Equal(t, 2, state.Mentions.Last24h)
	assert.Equal(t, 3, state.Mentions.Last7d)
}

func TestRecompute_NoDriftNoWrite(t *testing.T) {
	agg, repo := newTestAggregator()
	ctx := context.Background()

	require.NoError(t, repo.Items.Insert(ctx, mention("p1", "stocks", "ACME", 10, 50, 1, testNow.Add(-time.Hour))))
	require.NoError(t, agg.Apply(ctx, mention("p1", "stocks", "ACME", 10, 50, 1, testNow.Add(-time.Hour))))

	before, err := agg.Get(ctx, "ACME")
	require.NoError(t, err)

	res, err := agg.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TickersChecked)
	assert.Equal(t, 0, res.TickersCorrected)

	after, err := agg.Get(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version, "clean ticker must not be rewritten")
}

func TestRecompute_HonorsCancellation(t *testing.T) {
	agg, repo := newTestAggregator()
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, agg.Apply(ctx, mention("p1", "stocks", "ACME", 10, 50, 1, testNow)))
	_ = repo

	cancel()
	_, err := agg.Recompute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefreshDecay_DelegatesToItemStore(t *testing.T) {
	agg, repo := newTestAggregator()
	ctx := context.Background()

	require.NoError(t, repo.Items.Insert(ctx, mention("p1", "stocks", "ACME", 10, 50, 1, testNow.Add(-48*time.Hour))))

	touched, err := agg.RefreshDecay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, touched)

	items, err := repo.Items.ListByTicker(ctx, "ACME", time.Time{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.InDelta(t, 0.1353, items[0].Score.DecayFactor, 0.001, "two time constants of age")
}
