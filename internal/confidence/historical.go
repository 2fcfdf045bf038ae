package confidence

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/stocktide/stocktide/internal/errs"
	"github.com/stocktide/stocktide/internal/persistence"
	"github.com/stocktide/stocktide/internal/providers"
)

// Backtest parameters: a prediction is graded against the close measured this
// far after the snapshot, and only moves beyond the materiality threshold
// count as outcomes.
const (
	backtestLookback    = 30 * 24 * time.Hour
	backtestHorizon     = 3 * 24 * time.Hour
	materialityReturn   = 0.01 // 1% move
	directionalMinAbs   = 10.0 // |sentiment| below this is not a directional call
	minQualifyingSample = 5
)

// scoreHistorical grades the ticker's past sentiment snapshots against the
// subsequent price moves. Predictions without a material move or without
// price coverage do not qualify either way.
func scoreHistorical(ctx context.Context, ticker string, preds persistence.PredictionRepo, price providers.PriceProvider) (Component, error) {
	history, err := preds.ListPredictions(ctx, ticker, time.Now().Add(-backtestLookback))
	if err != nil {
		return Component{}, fmt.Errorf("list predictions for %s: %w", ticker, err)
	}

	series, err := price.HistoricalSeries(ctx, ticker)
	if err != nil {
		return Component{}, errs.ProviderUnavailable("price", err)
	}
	if len(series) == 0 {
		return Component{}, errs.InsufficientData("no price series for %s", ticker)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Timestamp.Before(series[j].Timestamp) })

	var qualifying, correct int
	for _, p := range history {
		if p.Sentiment > -directionalMinAbs && p.Sentiment < directionalMinAbs {
			continue
		}
		ret, ok := forwardReturn(series, p.RecordedAt, backtestHorizon)
		if !ok {
			continue
		}
		if ret > -materialityReturn && ret < materialityReturn {
			continue
		}
		qualifying++
		if (p.Sentiment > 0 && ret > 0) || (p.Sentiment < 0 && ret < 0) {
			correct++
		}
	}

	if qualifying < minQualifyingSample {
		return Component{}, errs.InsufficientData(
			"only %d qualifying predictions for %s, need %d", qualifying, ticker, minQualifyingSample)
	}

	rate := float64(correct) / float64(qualifying)
	var base float64
	switch {
	case rate >= 0.8:
		base = 90
	case rate >= 0.7:
		base = 75
	case rate >= 0.6:
		base = 60
	case rate >= 0.5:
		base = 45
	default:
		base = 20
	}

	sampleBonus := float64(qualifying) / 2
	if sampleBonus > 10 {
		sampleBonus = 10
	}

	score := base + sampleBonus
	if score > 100 {
		score = 100
	}
	return Component{
		Name:   ComponentHistorical,
		Score:  score,
		Weight: componentWeights[ComponentHistorical],
		Detail: fmt.Sprintf("%.0f%% accuracy over %d qualifying predictions", rate*100, qualifying),
		Impact: impactNote(score, "track record"),
	}, nil
}

// forwardReturn computes the relative price change from the close at or
// before t to the close at or after t+horizon.
func forwardReturn(series []providers.PricePoint, t time.Time, horizon time.Duration) (float64, bool) {
	entry, ok := closeAtOrBefore(series, t)
	if !ok || entry == 0 {
		return 0, false
	}
	exit, ok := closeAtOrAfter(series, t.Add(horizon))
	if !ok {
		return 0, false
	}
	return (exit - entry) / entry, true
}

func closeAtOrBefore(series []providers.PricePoint, t time.Time) (float64, bool) {
	idx := sort.Search(len(series), func(i int) bool { return series[i].Timestamp.After(t) })
	if idx == 0 {
		return 0, false
	}
	return series[idx-1].Close, true
}

func closeAtOrAfter(series []providers.PricePoint, t time.Time) (float64, bool) {
	idx := sort.Search(len(series), func(i int) bool { return !series[i].Timestamp.Before(t) })
	if idx >= len(series) {
		return 0, false
	}
	return series[idx].Close, true
}
