// Package providers defines the contracts for every external collaborator the
// pipeline calls: platform fetch/search, news correlation, macro outlook,
// price history and text sentiment. The core never implements their
// protocols; it consumes these interfaces and tolerates their failures.
package providers

import (
	"context"
	"time"

	"github.com/stocktide/stocktide/internal/models"
)

// SearchResult is one community's answer to a ticker mention query.
type SearchResult struct {
	Community     string        `json:"community"`
	MentionCount  int           `json:"mention_count"`
	AvgEngagement float64       `json:"avg_engagement"` // (upvotes+comments)/mentions
	SamplePosts   []models.Post `json:"sample_posts,omitempty"`
}

// NewsAlignment classifies how external news sentiment relates to the
// community sentiment for a ticker.
type NewsAlignment string

const (
	NewsPositiveAligned NewsAlignment = "positive_aligned"
	NewsNegativeAligned NewsAlignment = "negative_aligned"
	NewsDivergent       NewsAlignment = "divergent"
	NewsMixed           NewsAlignment = "mixed"
)

// NewsCorrelation is the news provider's alignment verdict.
type NewsCorrelation struct {
	Class        NewsAlignment `json:"class"`
	Strength     float64       `json:"strength"` // 0-1
	ArticleCount int           `json:"article_count"`
}

// EconAssessment is the macro provider's overall read.
type EconAssessment string

const (
	EconFavorable   EconAssessment = "favorable"
	EconNeutral     EconAssessment = "neutral"
	EconUnfavorable EconAssessment = "unfavorable"
)

// EconOutlook is the macro provider's context for a ticker.
type EconOutlook struct {
	Assessment    EconAssessment `json:"assessment"`
	RiskFactors   []string       `json:"risk_factors,omitempty"`
	Opportunities []string       `json:"opportunities,omitempty"`
}

// PricePoint is one close in a historical price series.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Close     float64   `json:"close"`
}

// SentimentResult is the text-sentiment provider's verdict for one post.
type SentimentResult struct {
	Score      float64 `json:"score"`      // -100..100
	Confidence float64 `json:"confidence"` // 0-1
}

// PlatformFetcher pulls recent raw posts from a community.
type PlatformFetcher interface {
	FetchPosts(ctx context.Context, community string, limit int) ([]models.Post, error)
}

// PlatformSearcher re-queries a community for ticker mentions over a window.
type PlatformSearcher interface {
	SearchCommunity(ctx context.Context, community, ticker string, window time.Duration) (*SearchResult, error)
}

// NewsProvider classifies news alignment for a ticker's sentiment.
type NewsProvider interface {
	Correlation(ctx context.Context, ticker string, sentiment float64, window time.Duration) (*NewsCorrelation, error)
}

// EconProvider supplies macro-economic context for a ticker.
type EconProvider interface {
	Outlook(ctx context.Context, ticker string, sentiment float64) (*EconOutlook, error)
}

// PriceProvider supplies historical closes for accuracy backtesting.
type PriceProvider interface {
	HistoricalSeries(ctx context.Context, ticker string) ([]PricePoint, error)
}

// SentimentAnalyzer scores the sentiment of one piece of text.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, text string) (*SentimentResult, error)
}

// Set bundles every provider behind one handle.
type Set struct {
	Fetcher   PlatformFetcher
	Searcher  PlatformSearcher
	News      NewsProvider
	Econ      EconProvider
	Price     PriceProvider
	Sentiment SentimentAnalyzer
}
