package models

import (
	"math"
	"time"
)

// DecayWindowHours is the e-folding window of the recency decay applied to
// stored post scores.
const DecayWindowHours = 24.0

// DecayFactor returns exp(-ageHours/24) clamped to [0, 1] for a post created
// at the given time.
func DecayFactor(created, now time.Time) float64 {
	age := now.Sub(created).Hours()
	if age < 0 {
		age = 0
	}
	return math.Exp(-age / DecayWindowHours)
}

// Post represents one raw social item as fetched from the platform client.
// Immutable once fetched.
type Post struct {
	ID        string    `json:"id" db:"id"`
	Community string    `json:"community" db:"community"`
	Title     string    `json:"title" db:"title"`
	Body      string    `json:"body" db:"body"`
	Author    string    `json:"author" db:"author"`
	Upvotes   int       `json:"upvotes" db:"upvotes"`
	Comments  int       `json:"comments" db:"comments"`
	Awards    int       `json:"awards" db:"awards"`
	Flair     string    `json:"flair,omitempty" db:"flair"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AgeHours returns the post age in hours relative to now.
func (p *Post) AgeHours(now time.Time) float64 {
	return now.Sub(p.CreatedAt).Hours()
}

// ReputationTier buckets authors by long-run contribution quality.
type ReputationTier string

const (
	TierNovice  ReputationTier = "novice"
	TierRegular ReputationTier = "regular"
	TierTrusted ReputationTier = "trusted"
	TierExpert  ReputationTier = "expert"
	TierLegend  ReputationTier = "legend"
)

// AuthorProfile is the reputation snapshot for a post author, served by the
// reputation store collaborator.
type AuthorProfile struct {
	Author         string         `json:"author" db:"author"`
	AccountAgeDays int            `json:"account_age_days" db:"account_age_days"`
	Karma          int            `json:"karma" db:"karma"`
	QualityScore   float64        `json:"quality_score" db:"quality_score"` // 0-100
	Tier           ReputationTier `json:"tier" db:"tier"`
}

// IsHighQuality reports whether the author clears the contributor-quality bar
// used by the reputation confidence component.
func (a *AuthorProfile) IsHighQuality() bool {
	return a.QualityScore >= 70
}

// IsExpertTier reports whether the author is in the expert or legend tier.
func (a *AuthorProfile) IsExpertTier() bool {
	return a.Tier == TierExpert || a.Tier == TierLegend
}

// PostScore is the per-post scoring output of the quality filter plus the
// sentiment enrichment. Set once at ingestion; DecayFactor is refreshed in
// batch afterwards.
type PostScore struct {
	PostID              string    `json:"post_id" db:"post_id"`
	Ticker              string    `json:"ticker" db:"ticker"`
	QualityScore        float64   `json:"quality_score" db:"quality_score"`     // 0-100
	PassesFilter        bool      `json:"passes_filter" db:"passes_filter"`
	RejectReasons       []string  `json:"reject_reasons,omitempty" db:"-"`
	SentimentScore      float64   `json:"sentiment_score" db:"sentiment_score"` // -100..100
	SentimentConfidence float64   `json:"sentiment_confidence" db:"sentiment_confidence"` // 0-1
	DecayFactor         float64   `json:"decay_factor" db:"decay_factor"`       // 0-1, exp(-ageHours/24)
	ScoredAt            time.Time `json:"scored_at" db:"scored_at"`
}

// MentionCounts tracks rolling mention volumes for a ticker.
type MentionCounts struct {
	Total   int `json:"total" db:"mentions_total"`
	Last24h int `json:"last_24h" db:"mentions_24h"`
	Last7d  int `json:"last_7d" db:"mentions_7d"`
}

// SentimentTrend is the exponentially-weighted sentiment state for a ticker.
type SentimentTrend struct {
	Current    float64 `json:"current" db:"sentiment_current"`   // -100..100
	Previous   float64 `json:"previous" db:"sentiment_previous"` // -100..100
	Change     float64 `json:"change" db:"sentiment_change"`
	Confidence float64 `json:"confidence" db:"sentiment_confidence"` // 0-1
	weight     float64
}

// Weight returns the accumulated evidence weight behind Current.
func (s *SentimentTrend) Weight() float64 { return s.weight }

// SetWeight restores the accumulated evidence weight (used when rehydrating
// state from storage).
func (s *SentimentTrend) SetWeight(w float64) { s.weight = w }

// CommunityStats is the per-community slice of a ticker aggregate.
type CommunityStats struct {
	Count        int     `json:"count"`
	AvgSentiment float64 `json:"avg_sentiment"` // running average, -100..100
}

// TickerAggregate is the rolling per-ticker state maintained by the
// aggregator. Version supports optimistic-concurrency saves.
type TickerAggregate struct {
	Ticker        string                     `json:"ticker"`
	Mentions      MentionCounts              `json:"mentions"`
	Sentiment     SentimentTrend             `json:"sentiment"`
	QualityCount  int                        `json:"quality_mention_count"`
	QualitySum    float64                    `json:"quality_sum"`
	TotalUpvotes  int                        `json:"total_upvotes"`
	TotalComments int                        `json:"total_comments"`
	Communities   map[string]*CommunityStats `json:"community_breakdown"`
	UpdatedAt     time.Time                  `json:"updated_at"`
	Version       int64                      `json:"version"`
}

// NewTickerAggregate returns an empty aggregate for a ticker.
func NewTickerAggregate(ticker string) *TickerAggregate {
	return &TickerAggregate{
		Ticker:      ticker,
		Communities: make(map[string]*CommunityStats),
	}
}

// AvgQuality returns the mean quality score across counted mentions.
func (t *TickerAggregate) AvgQuality() float64 {
	if t.Mentions.Total == 0 {
		return 0
	}
	return t.QualitySum / float64(t.Mentions.Total)
}

// CommunityCount returns the number of distinct communities with mentions.
func (t *TickerAggregate) CommunityCount() int {
	return len(t.Communities)
}

// Clamp bounds a value to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampScore bounds a percentage-like score to [0, 100].
func ClampScore(v float64) float64 { return Clamp(v, 0, 100) }

// ClampSentiment bounds a sentiment value to [-100, 100].
func ClampSentiment(v float64) float64 { return Clamp(v, -100, 100) }
