// Package quality scores raw posts against community thresholds and filters
// out noise before anything reaches the aggregator.
package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/stocktide/stocktide/internal/config"
	"github.com/stocktide/stocktide/internal/models"
)

// Quality score component weights. Author reputation carries the most weight:
// engagement counts are the easiest signal to game.
const (
	weightUpvotes      = 0.25
	weightComments     = 0.25
	weightAuthor       = 0.30
	weightContentDepth = 0.15
	weightAwards       = 0.05
)

const (
	minContentLength  = 50 // combined title+body characters
	velocityWindow    = time.Hour
	maxAuthorPerHour  = 5 // accepted posts per author per community per hour
)

// Reject reasons, in gate order.
const (
	ReasonLowUpvotes    = "insufficient_upvotes"
	ReasonLowComments   = "insufficient_comments"
	ReasonLowQuality    = "below_quality_threshold"
	ReasonExcludedFlair = "excluded_flair"
	ReasonBlockedKeyword = "blocked_keyword"
	ReasonTooShort      = "content_too_short"
	ReasonSpam          = "spam_pattern"
	ReasonVelocityAbuse = "velocity_abuse"
)

// VelocityLookback answers trailing-window post counts. It is the filter's
// only I/O dependency and is injected so the filter stays deterministic in
// tests.
type VelocityLookback interface {
	// AuthorPostCount returns accepted posts by author in community since the
	// given time.
	AuthorPostCount(ctx context.Context, author, community string, since time.Time) (int, error)
	// CommunityPostCount returns accepted posts in community since the given
	// time.
	CommunityPostCount(ctx context.Context, community string, since time.Time) (int, error)
}

// Result is the filter verdict for one post.
type Result struct {
	QualityScore  float64  `json:"quality_score"` // 0-100
	Passes        bool     `json:"passes"`
	RejectReasons []string `json:"reject_reasons,omitempty"`
}

// Filter evaluates posts against a community configuration.
type Filter struct {
	velocity VelocityLookback
	now      func() time.Time
}

// NewFilter creates a quality filter with the given velocity lookback.
func NewFilter(velocity VelocityLookback) *Filter {
	return &Filter{velocity: velocity, now: time.Now}
}

// WithClock overrides the clock, for tests.
func (f *Filter) WithClock(now func() time.Time) *Filter {
	f.now = now
	return f
}

// Score computes the 0-100 quality score for a post. Pure given its inputs.
func Score(post *models.Post, author *models.AuthorProfile, cfg config.CommunityConfig) float64 {
	upvoteScore := cappedRatio(post.Upvotes, cfg.MinUpvotes)
	commentScore := cappedRatio(post.Comments, cfg.MinComments)

	authorScore := 0.0
	if author != nil {
		authorScore = models.ClampScore(author.QualityScore)
	}

	contentDepth := float64(len(post.Title)+len(post.Body)) / 10
	if contentDepth > 100 {
		contentDepth = 100
	}

	awardsBonus := float64(post.Awards) * 5
	if awardsBonus > 20 {
		awardsBonus = 20
	}

	score := upvoteScore*weightUpvotes +
		commentScore*weightComments +
		authorScore*weightAuthor +
		contentDepth*weightContentDepth +
		awardsBonus*weightAwards

	return models.ClampScore(score)
}

// cappedRatio maps count against a configured minimum onto 0-100, saturating
// once the minimum is met.
func cappedRatio(count, minimum int) float64 {
	if minimum <= 0 {
		return 100
	}
	ratio := float64(count) / float64(minimum)
	if ratio > 1 {
		ratio = 1
	}
	return ratio * 100
}

// Evaluate runs the full gate sequence for a post. Gates short-circuit: the
// first failure rejects with no partial credit, though Evaluate keeps checking
// the remaining cheap gates so the result can report every reason at once.
func (f *Filter) Evaluate(ctx context.Context, post *models.Post, author *models.AuthorProfile, cfg config.CommunityConfig) (Result, error) {
	res := Result{QualityScore: Score(post, author, cfg)}

	if post.Upvotes < cfg.MinUpvotes {
		res.RejectReasons = append(res.RejectReasons, ReasonLowUpvotes)
	}
	if post.Comments < cfg.MinComments {
		res.RejectReasons = append(res.RejectReasons, ReasonLowComments)
	}
	if res.QualityScore < cfg.QualityThreshold {
		res.RejectReasons = append(res.RejectReasons, ReasonLowQuality)
	}
	if flairExcluded(post.Flair, cfg.ExcludedFlairs) {
		res.RejectReasons = append(res.RejectReasons, ReasonExcludedFlair)
	}
	if containsBlockedKeyword(post.Title+" "+post.Body, cfg.KeywordFilters) {
		res.RejectReasons = append(res.RejectReasons, ReasonBlockedKeyword)
	}
	if len(post.Title)+len(post.Body) < minContentLength {
		res.RejectReasons = append(res.RejectReasons, ReasonTooShort)
	}
	if IsSpam(post.Title + " " + post.Body) {
		res.RejectReasons = append(res.RejectReasons, ReasonSpam)
	}

	// Velocity is the only gate that touches storage; it runs last so clean
	// rejects never pay for the lookback query.
	if len(res.RejectReasons) == 0 {
		abusive, err := f.velocityAbuse(ctx, post, cfg)
		if err != nil {
			return res, fmt.Errorf("velocity lookback for %s: %w", post.ID, err)
		}
		if abusive {
			res.RejectReasons = append(res.RejectReasons, ReasonVelocityAbuse)
		}
	}

	res.Passes = len(res.RejectReasons) == 0
	return res, nil
}

func (f *Filter) velocityAbuse(ctx context.Context, post *models.Post, cfg config.CommunityConfig) (bool, error) {
	since := f.now().Add(-velocityWindow)

	byAuthor, err := f.velocity.AuthorPostCount(ctx, post.Author, post.Community, since)
	if err != nil {
		return false, err
	}
	if byAuthor > maxAuthorPerHour {
		return true, nil
	}

	byCommunity, err := f.velocity.CommunityPostCount(ctx, post.Community, since)
	if err != nil {
		return false, err
	}
	return byCommunity > cfg.MaxPostsPerHour, nil
}

func flairExcluded(flair string, excluded []string) bool {
	if flair == "" {
		return false
	}
	for _, ex := range excluded {
		if flair == ex {
			return true
		}
	}
	return false
}
