// Package pipeline runs ingestion cycles: fetch raw posts per community,
// filter them, score their sentiment, fold accepted mentions into the
// per-ticker aggregates and snapshot the result for backtesting. Communities
// are processed in bounded-fanout waves; one community failing never aborts
// the cycle.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stocktide/stocktide/internal/aggregate"
	"github.com/stocktide/stocktide/internal/config"
	opshttp "github.com/stocktide/stocktide/internal/interfaces/http"
	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/persistence"
	"github.com/stocktide/stocktide/internal/providers"
	"github.com/stocktide/stocktide/internal/quality"
)

const defaultFetchLimit = 100

// CommunityError records one community unit that failed.
type CommunityError struct {
	Community string `json:"community"`
	Err       error  `json:"-"`
	Message   string `json:"message"`
}

// CycleStats is the typed partial-failure result of one pipeline cycle.
type CycleStats struct {
	CycleID   string        `json:"cycle_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	Processed int `json:"processed"`
	Accepted  int `json:"accepted"`
	Rejected  int `json:"rejected"`

	Succeeded []string         `json:"succeeded"`
	Failed    []CommunityError `json:"failed,omitempty"`

	TickersUpdated []string                `json:"tickers_updated,omitempty"`
	TickerErrors   []aggregate.TickerError `json:"ticker_errors,omitempty"`
}

// Runner executes pipeline cycles against an immutable config snapshot.
type Runner struct {
	cfg        config.Config
	filter     *quality.Filter
	repo       *persistence.Repository
	aggregator *aggregate.Aggregator
	set        providers.Set
	guards     *providers.Guards
	metrics    *opshttp.MetricsRegistry
	fetchLimit int
	now        func() time.Time
	log        zerolog.Logger
}

// NewRunner wires a cycle runner. Metrics are optional.
func NewRunner(cfg config.Config, repo *persistence.Repository, set providers.Set, guards *providers.Guards) *Runner {
	return &Runner{
		cfg:        cfg,
		filter:     quality.NewFilter(repo.Items),
		repo:       repo,
		aggregator: aggregate.New(repo.Aggregates, repo.Items),
		set:        set,
		guards:     guards,
		fetchLimit: defaultFetchLimit,
		now:        time.Now,
		log:        log.With().Str("component", "pipeline").Logger(),
	}
}

// WithMetrics attaches the Prometheus registry.
func (r *Runner) WithMetrics(m *opshttp.MetricsRegistry) *Runner {
	r.metrics = m
	return r
}

// WithClock overrides the clock, for tests.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	r.aggregator.WithClock(now)
	r.filter.WithClock(now)
	return r
}

// communityOutcome is the result of one community unit of work.
type communityOutcome struct {
	community string
	accepted  []persistence.ScoredPost
	processed int
	rejected  int
	err       error
}

// RunCycle processes every active community once. Community units run in
// waves bounded by the configured fanout, with the configured delay between
// waves; cancellation is honored between units and waves.
func (r *Runner) RunCycle(ctx context.Context) (*CycleStats, error) {
	communities := r.cfg.ActiveCommunities()
	if len(communities) == 0 {
		return nil, fmt.Errorf("cycle aborted: no active communities")
	}

	stats := &CycleStats{
		CycleID:   uuid.New().String(),
		StartedAt: r.now(),
	}
	clog := r.log.With().Str("cycle_id", stats.CycleID).Logger()
	clog.Info().Int("communities", len(communities)).Msg("cycle started")

	var timer *opshttp.CycleTimer
	if r.metrics != nil {
		timer = r.metrics.StartCycle()
	}

	fanout := r.cfg.Scheduler.CommunityFanout
	if fanout <= 0 {
		fanout = 1
	}

	var accepted []persistence.ScoredPost
	for start := 0; start < len(communities); start += fanout {
		if err := ctx.Err(); err != nil {
			r.finishCycle(stats, timer, "canceled")
			return stats, fmt.Errorf("cycle %s canceled: %w", stats.CycleID, err)
		}

		end := start + fanout
		if end > len(communities) {
			end = len(communities)
		}
		wave := communities[start:end]

		results := make(chan communityOutcome, len(wave))
		for _, cc := range wave {
			go func(cc config.CommunityConfig) {
				results <- r.processCommunity(ctx, cc, clog)
			}(cc)
		}
		for range wave {
			out := <-results
			stats.Processed += out.processed
			stats.Rejected += out.rejected
			if out.err != nil {
				clog.Error().Err(out.err).Str("community", out.community).Msg("community unit failed")
				stats.Failed = append(stats.Failed, CommunityError{
					Community: out.community,
					Err:       out.err,
					Message:   out.err.Error(),
				})
				continue
			}
			stats.Succeeded = append(stats.Succeeded, out.community)
			accepted = append(accepted, out.accepted...)
		}

		if end < len(communities) && r.cfg.Scheduler.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				r.finishCycle(stats, timer, "canceled")
				return stats, fmt.Errorf("cycle %s canceled: %w", stats.CycleID, ctx.Err())
			case <-time.After(r.cfg.Scheduler.BatchDelay):
			}
		}
	}

	stats.Accepted = len(accepted)

	batch := r.aggregator.ApplyBatch(ctx, accepted)
	stats.TickersUpdated = batch.Succeeded
	stats.TickerErrors = batch.Failed
	for _, te := range batch.Failed {
		clog.Error().Err(te.Err).Str("ticker", te.Ticker).Msg("aggregate update failed")
	}

	r.snapshotPredictions(ctx, batch.Succeeded, clog)

	result := "ok"
	if len(stats.Failed) > 0 || len(stats.TickerErrors) > 0 {
		result = "partial"
	}
	r.finishCycle(stats, timer, result)

	clog.Info().
		Int("processed", stats.Processed).
		Int("accepted", stats.Accepted).
		Int("rejected", stats.Rejected).
		Int("failed_communities", len(stats.Failed)).
		Int("tickers_updated", len(stats.TickersUpdated)).
		Dur("duration", stats.Duration).
		Msg("cycle finished")
	return stats, nil
}

func (r *Runner) finishCycle(stats *CycleStats, timer *opshttp.CycleTimer, result string) {
	stats.Duration = r.now().Sub(stats.StartedAt)
	if timer != nil {
		timer.Stop(result)
	}
}

func (r *Runner) processCommunity(ctx context.Context, cc config.CommunityConfig, clog zerolog.Logger) communityOutcome {
	out := communityOutcome{community: cc.Name}

	var posts []models.Post
	err := r.guards.Platform.Do(ctx, func(ctx context.Context) error {
		var ferr error
		posts, ferr = r.set.Fetcher.FetchPosts(ctx, cc.Name, r.fetchLimit)
		return ferr
	})
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordProviderError("platform", "fetch")
		}
		out.err = fmt.Errorf("fetch %s: %w", cc.Name, err)
		return out
	}

	for i := range posts {
		if ctx.Err() != nil {
			out.err = ctx.Err()
			return out
		}
		post := &posts[i]
		out.processed++

		tickers := ExtractTickers(post.Title + " " + post.Body)
		if len(tickers) == 0 {
			continue
		}

		author := r.lookupAuthor(ctx, post.Author, clog)
		verdict, err := r.filter.Evaluate(ctx, post, author, cc)
		if err != nil {
			clog.Warn().Err(err).Str("community", cc.Name).Str("post_id", post.ID).Msg("filter evaluation failed, post skipped")
			continue
		}
		if !verdict.Passes {
			out.rejected++
			if r.metrics != nil {
				r.metrics.RecordRejected(cc.Name, verdict.RejectReasons[0])
			}
			continue
		}
		if r.metrics != nil {
			r.metrics.RecordAccepted(cc.Name)
		}

		sentiment := r.analyzeSentiment(ctx, post, clog)
		now := r.now()
		for _, ticker := range tickers {
			item := persistence.ScoredPost{
				Post: *post,
				Score: models.PostScore{
					PostID:              post.ID,
					Ticker:              ticker,
					QualityScore:        verdict.QualityScore,
					PassesFilter:        true,
					SentimentScore:      sentiment.Score,
					SentimentConfidence: sentiment.Confidence,
					DecayFactor:         models.DecayFactor(post.CreatedAt, now),
					ScoredAt:            now,
				},
			}
			if err := r.repo.Items.Insert(ctx, item); err != nil {
				clog.Warn().Err(err).Str("post_id", post.ID).Str("ticker", ticker).Msg("item insert failed")
				continue
			}
			out.accepted = append(out.accepted, item)
		}
	}
	return out
}

// lookupAuthor returns nil on reputation-store failure; the quality formula
// then scores the author component as zero rather than failing the post.
func (r *Runner) lookupAuthor(ctx context.Context, author string, clog zerolog.Logger) *models.AuthorProfile {
	profile, err := r.repo.Reputation.GetAuthor(ctx, author)
	if err != nil {
		clog.Warn().Err(err).Str("author", author).Msg("reputation lookup failed")
		return nil
	}
	return profile
}

// analyzeSentiment degrades to a neutral low-confidence result when the
// sentiment provider fails; an accepted post still counts as a mention.
func (r *Runner) analyzeSentiment(ctx context.Context, post *models.Post, clog zerolog.Logger) providers.SentimentResult {
	var res *providers.SentimentResult
	err := r.guards.Sentiment.Do(ctx, func(ctx context.Context) error {
		var aerr error
		res, aerr = r.set.Sentiment.Analyze(ctx, post.Title+" "+post.Body)
		return aerr
	})
	if err != nil || res == nil {
		if r.metrics != nil {
			r.metrics.RecordProviderError("sentiment", "analyze")
		}
		clog.Warn().Err(err).Str("post_id", post.ID).Msg("sentiment analysis degraded to neutral")
		return providers.SentimentResult{Score: 0, Confidence: 0.2}
	}
	return *res
}

// snapshotPredictions records the post-cycle sentiment of every updated
// ticker for the historical-accuracy backtest.
func (r *Runner) snapshotPredictions(ctx context.Context, tickers []string, clog zerolog.Logger) {
	for _, ticker := range tickers {
		agg, err := r.aggregator.Get(ctx, ticker)
		if err != nil {
			clog.Warn().Err(err).Str("ticker", ticker).Msg("prediction snapshot read failed")
			continue
		}
		pred := persistence.Prediction{
			Ticker:     ticker,
			Sentiment:  agg.Sentiment.Current,
			Confidence: agg.Sentiment.Confidence,
			RecordedAt: r.now(),
		}
		if err := r.repo.Predictions.InsertPrediction(ctx, pred); err != nil {
			clog.Warn().Err(err).Str("ticker", ticker).Msg("prediction snapshot write failed")
		}
	}
}

// Recompute runs the drift-correcting full rebuild of window counters.
func (r *Runner) Recompute(ctx context.Context) (aggregate.RecomputeResult, error) {
	return r.aggregator.Recompute(ctx)
}

// RefreshDecay re-derives stored decay factors from current post age.
func (r *Runner) RefreshDecay(ctx context.Context) (int, error) {
	return r.aggregator.RefreshDecay(ctx)
}
