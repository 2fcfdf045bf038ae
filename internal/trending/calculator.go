// Package trending ranks tickers by a composite momentum/interest score with
// a boost for cross-validated signals.
package trending

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stocktide/stocktide/internal/config"
	"github.com/stocktide/stocktide/internal/crossval"
	"github.com/stocktide/stocktide/internal/models"
)

// Composite trending weights, plus the multiplier applied to tickers whose
// signal independent communities corroborate.
const (
	weightMentions   = 0.30
	weightSentiment  = 0.25
	weightQuality    = 0.20
	weightCommunities = 0.15
	weightEngagement = 0.10

	crossValidatedBoost = 1.3

	// Fallback weights when cross-validation enrichment failed for a ticker.
	degradedMentionWeight   = 0.5
	degradedSentimentWeight = 0.3
)

// Score is one ranked ticker.
type Score struct {
	Ticker           string  `json:"ticker"`
	TrendingScore    float64 `json:"trending_score"`
	Rank             int     `json:"rank"`
	IsCrossValidated bool    `json:"is_cross_validated"`
	Degraded         bool    `json:"degraded"`
	FailureReason    string  `json:"failure_reason,omitempty"`

	// Constituent metrics.
	Mentions       int     `json:"mentions"`
	AvgSentiment   float64 `json:"avg_sentiment"`
	AvgQuality     float64 `json:"avg_quality"`
	CommunityCount int     `json:"community_count"`
	Engagement     int     `json:"engagement"` // upvotes + comments
}

// Calculator computes ranked trending lists.
type Calculator struct {
	crossval *crossval.Engine
	cfg      config.TrendingConfig
	log      zerolog.Logger
}

// New creates a trending calculator.
func New(cv *crossval.Engine, cfg config.TrendingConfig) *Calculator {
	return &Calculator{
		crossval: cv,
		cfg:      cfg,
		log:      log.With().Str("component", "trending").Logger(),
	}
}

// Rank filters, scores and ranks the given aggregates. Tickers whose
// cross-validation enrichment failed are kept on a degraded formula with the
// failure recorded, never dropped. Re-running on unchanged state yields an
// identical ordered list.
func (c *Calculator) Rank(ctx context.Context, aggs []*models.TickerAggregate, communities []string, window time.Duration) []Score {
	scores := make([]Score, 0, len(aggs))

	for _, agg := range aggs {
		if agg.Mentions.Total < c.cfg.MinMentions || agg.AvgQuality() < c.cfg.MinQuality {
			continue
		}
		scores = append(scores, c.scoreTicker(ctx, agg, communities, window))
	}

	// Ticker tie-break keeps the ordering stable and the run idempotent.
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].TrendingScore != scores[j].TrendingScore {
			return scores[i].TrendingScore > scores[j].TrendingScore
		}
		return scores[i].Ticker < scores[j].Ticker
	})

	if c.cfg.Limit > 0 && len(scores) > c.cfg.Limit {
		scores = scores[:c.cfg.Limit]
	}
	for i := range scores {
		scores[i].Rank = i + 1
	}
	return scores
}

func (c *Calculator) scoreTicker(ctx context.Context, agg *models.TickerAggregate, communities []string, window time.Duration) Score {
	s := Score{
		Ticker:         agg.Ticker,
		Mentions:       agg.Mentions.Total,
		AvgSentiment:   agg.Sentiment.Current,
		AvgQuality:     agg.AvgQuality(),
		CommunityCount: agg.CommunityCount(),
		Engagement:     agg.TotalUpvotes + agg.TotalComments,
	}

	validation := c.crossval.Validate(ctx, agg.Ticker, communities, window)
	if enrichmentFailed(validation) {
		c.log.Warn().
			Str("ticker", agg.Ticker).
			Msg("cross-validation enrichment failed, using degraded trending formula")
		s.Degraded = true
		s.FailureReason = "cross_validation_unavailable"
		s.TrendingScore = float64(s.Mentions)*degradedMentionWeight +
			math.Abs(s.AvgSentiment)*degradedSentimentWeight
		return s
	}

	s.IsCrossValidated = validation.IsValidated
	s.TrendingScore = float64(s.Mentions)*weightMentions +
		math.Abs(s.AvgSentiment)*weightSentiment +
		s.AvgQuality*weightQuality +
		float64(s.CommunityCount)*weightCommunities +
		float64(s.Engagement)/100*weightEngagement

	if s.IsCrossValidated {
		s.TrendingScore *= crossValidatedBoost
	}
	return s
}

// enrichmentFailed reports whether every community query errored, as opposed
// to communities genuinely reporting no mentions.
func enrichmentFailed(v *crossval.Result) bool {
	if len(v.PerCommunity) == 0 {
		return true
	}
	for _, cr := range v.PerCommunity {
		if cr.Error == "" {
			return false
		}
	}
	return true
}
