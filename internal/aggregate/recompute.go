package aggregate

import (
	"context"
	"fmt"
	"time"
)

// RecomputeResult summarizes one consistency pass.
type RecomputeResult struct {
	TickersChecked   int
	TickersCorrected int
	DecayRowsTouched int
	Failed           []TickerError
}

// Recompute rebuilds the 24h/7d mention counters for every known ticker
// directly from the item store, correcting drift the incremental path
// accumulates from late-arriving or backfilled items. Like the batch apply,
// one ticker's failure never blocks the rest.
func (a *Aggregator) Recompute(ctx context.Context) (RecomputeResult, error) {
	var res RecomputeResult

	tickers, err := a.aggs.ListTickers(ctx)
	if err != nil {
		return res, fmt.Errorf("list tickers: %w", err)
	}

	for _, ticker := range tickers {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		res.TickersChecked++
		corrected, err := a.recomputeTicker(ctx, ticker)
		if err != nil {
			a.log.Error().Err(err).Str("ticker", ticker).Msg("recompute failed")
			res.Failed = append(res.Failed, TickerError{Ticker: ticker, Err: err})
			continue
		}
		if corrected {
			res.TickersCorrected++
		}
	}
	return res, nil
}

func (a *Aggregator) recomputeTicker(ctx context.Context, ticker string) (bool, error) {
	now := a.now()

	count24h, err := a.items.MentionCount(ctx, ticker, now.Add(-window24h))
	if err != nil {
		return false, fmt.Errorf("count 24h mentions: %w", err)
	}
	count7d, err := a.items.MentionCount(ctx, ticker, now.Add(-window7d))
	if err != nil {
		return false, fmt.Errorf("count 7d mentions: %w", err)
	}
	total, err := a.items.MentionCount(ctx, ticker, time.Time{})
	if err != nil {
		return false, fmt.Errorf("count total mentions: %w", err)
	}

	unlock := a.locks.lock(ticker)
	defer unlock()

	agg, err := a.aggs.GetAggregate(ctx, ticker)
	if err != nil {
		return false, err
	}
	if agg.Mentions.Last24h == count24h && agg.Mentions.Last7d == count7d && agg.Mentions.Total == total {
		return false, nil
	}

	a.log.Debug().Str("ticker", ticker).
		Int("stored_24h", agg.Mentions.Last24h).Int("actual_24h", count24h).
		Int("stored_7d", agg.Mentions.Last7d).Int("actual_7d", count7d).
		Msg("correcting counter drift")

	agg.Mentions.Last24h = count24h
	agg.Mentions.Last7d = count7d
	agg.Mentions.Total = total
	agg.UpdatedAt = now

	if err := a.aggs.SaveAggregate(ctx, agg); err != nil {
		return false, fmt.Errorf("save recomputed aggregate: %w", err)
	}
	return true, nil
}

// RefreshDecay recomputes the stored decay factors in batch. Decay is
// exponential with a 24-hour time constant, so refreshing periodically keeps
// aged posts from contributing at their ingestion-time weight forever.
func (a *Aggregator) RefreshDecay(ctx context.Context) (int, error) {
	touched, err := a.items.RefreshDecay(ctx, a.now())
	if err != nil {
		return 0, fmt.Errorf("refresh decay: %w", err)
	}
	a.log.Debug().Int("rows", touched).Msg("decay factors refreshed")
	return touched, nil
}
