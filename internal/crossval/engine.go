// Package crossval corroborates a ticker's signal across independent
// communities. A signal nobody outside one venue is talking about never gets
// marked validated, no matter how loud that one venue is.
package crossval

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/providers"
)

// Validation requires corroboration from at least two communities and at
// least three total mentions.
const (
	minCommunities  = 2
	minTotalMentions = 3
)

// ReasonNoData marks a validation where every community query failed or
// returned nothing.
const ReasonNoData = "no_data"

// CommunityResult is one community's contribution to a validation.
type CommunityResult struct {
	Community       string  `json:"community"`
	MentionCount    int     `json:"mention_count"`
	AvgEngagement   float64 `json:"avg_engagement"`
	ConfidenceScore float64 `json:"confidence_score"` // 0-100
	Error           string  `json:"error,omitempty"`
}

// Result is the outcome of one cross-validation invocation.
type Result struct {
	Ticker        string            `json:"ticker"`
	PerCommunity  []CommunityResult `json:"per_community"`
	Score         float64           `json:"cross_validation_score"` // 0-100
	IsValidated   bool              `json:"is_validated"`
	TotalMentions int               `json:"total_mentions"`
	Reason        string            `json:"reason,omitempty"`
	CheckedAt     time.Time         `json:"checked_at"`
}

// CommunitiesWithHits counts communities that reported at least one mention.
func (r *Result) CommunitiesWithHits() int {
	n := 0
	for _, cr := range r.PerCommunity {
		if cr.Error == "" && cr.MentionCount > 0 {
			n++
		}
	}
	return n
}

// Engine runs cross-community validation through the platform searcher.
type Engine struct {
	searcher providers.PlatformSearcher
	guard    *providers.Guard
	log      zerolog.Logger
}

// New creates a cross-validation engine. The guard is optional; without one,
// searches run unguarded (tests).
func New(searcher providers.PlatformSearcher, guard *providers.Guard) *Engine {
	return &Engine{
		searcher: searcher,
		guard:    guard,
		log:      log.With().Str("component", "crossval").Logger(),
	}
}

// Validate queries each community for ticker mentions over the window and
// folds the answers into one validation result. Per-community failures are
// recorded on their entry and never abort the others.
func (e *Engine) Validate(ctx context.Context, ticker string, communities []string, window time.Duration) *Result {
	res := &Result{
		Ticker:    ticker,
		CheckedAt: time.Now(),
	}

	type indexed struct {
		idx int
		cr  CommunityResult
	}
	ch := make(chan indexed, len(communities))

	for i, community := range communities {
		go func(idx int, community string) {
			ch <- indexed{idx: idx, cr: e.queryCommunity(ctx, community, ticker, window)}
		}(i, community)
	}

	res.PerCommunity = make([]CommunityResult, len(communities))
	for range communities {
		r := <-ch
		res.PerCommunity[r.idx] = r.cr
	}

	e.score(res)
	return res
}

func (e *Engine) queryCommunity(ctx context.Context, community, ticker string, window time.Duration) CommunityResult {
	cr := CommunityResult{Community: community}

	var sr *providers.SearchResult
	search := func(ctx context.Context) error {
		var err error
		sr, err = e.searcher.SearchCommunity(ctx, community, ticker, window)
		return err
	}

	var err error
	if e.guard != nil {
		err = e.guard.Do(ctx, search)
	} else {
		err = search(ctx)
	}
	if err != nil {
		e.log.Warn().Err(err).
			Str("ticker", ticker).
			Str("community", community).
			Msg("community search failed")
		cr.Error = err.Error()
		return cr
	}

	cr.MentionCount = sr.MentionCount
	cr.AvgEngagement = sr.AvgEngagement
	if sr.MentionCount > 0 {
		cr.ConfidenceScore = models.ClampScore(float64(sr.MentionCount)*10 + sr.AvgEngagement/10)
	}
	return cr
}

// score computes the aggregate validation verdict. The aggregate averages
// only communities with hits, and is halved when fewer than two communities
// reported any, so single-venue chatter cannot dress itself up as consensus.
func (e *Engine) score(res *Result) {
	var scores []float64
	failures := 0
	for _, cr := range res.PerCommunity {
		if cr.Error != "" {
			failures++
			continue
		}
		res.TotalMentions += cr.MentionCount
		if cr.MentionCount > 0 {
			scores = append(scores, cr.ConfidenceScore)
		}
	}

	hits := len(scores)
	if failures == len(res.PerCommunity) || (hits == 0 && res.TotalMentions == 0) {
		res.Reason = ReasonNoData
		res.IsValidated = false
		res.Score = 0
		return
	}

	if hits > 0 {
		res.Score = stat.Mean(scores, nil)
		if hits < minCommunities {
			res.Score /= 2
		}
	}
	res.Score = models.ClampScore(res.Score)
	res.IsValidated = hits >= minCommunities && res.TotalMentions >= minTotalMentions
}
