// Package persistence defines the repository contracts for stored posts,
// scores, ticker aggregates and historical sentiment predictions. PostgreSQL
// implementations live in the postgres subpackage; in-memory implementations
// back tests and database-disabled deployments.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/stocktide/stocktide/internal/models"
)

// ErrVersionConflict is returned by SaveAggregate when the stored version no
// longer matches the one being written. Callers reload and retry.
var ErrVersionConflict = errors.New("aggregate version conflict")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ScoredPost pairs a raw post with its ingestion-time score.
type ScoredPost struct {
	Post  models.Post
	Score models.PostScore
}

// ItemRepo stores accepted posts and their scores, and answers the window
// queries the velocity gate and the recompute pass depend on.
type ItemRepo interface {
	Insert(ctx context.Context, item ScoredPost) error

	// AuthorPostCount counts accepted posts by an author in a community since
	// the given time.
	AuthorPostCount(ctx context.Context, author, community string, since time.Time) (int, error)

	// CommunityPostCount counts accepted posts in a community since the given
	// time.
	CommunityPostCount(ctx context.Context, community string, since time.Time) (int, error)

	// MentionCount counts accepted mentions of a ticker since the given time.
	// A zero since counts everything.
	MentionCount(ctx context.Context, ticker string, since time.Time) (int, error)

	// ListByTicker returns accepted posts for a ticker since the given time.
	ListByTicker(ctx context.Context, ticker string, since time.Time) ([]ScoredPost, error)

	// Contributors returns the distinct authors mentioning a ticker since the
	// given time.
	Contributors(ctx context.Context, ticker string, since time.Time) ([]string, error)

	// RefreshDecay recomputes the decay factor of stored scores from their
	// post age as of now. Returns the number of rows touched.
	RefreshDecay(ctx context.Context, now time.Time) (int, error)
}

// AggregateRepo stores per-ticker rolling aggregates with optimistic
// concurrency: SaveAggregate fails with ErrVersionConflict when the row
// version moved underneath the caller.
type AggregateRepo interface {
	GetAggregate(ctx context.Context, ticker string) (*models.TickerAggregate, error)
	SaveAggregate(ctx context.Context, agg *models.TickerAggregate) error
	ListTickers(ctx context.Context) ([]string, error)
}

// Prediction is one historical sentiment snapshot used by the accuracy
// backtest: what the aggregate said and when, so it can be compared to the
// subsequent price move.
type Prediction struct {
	Ticker     string    `json:"ticker" db:"ticker"`
	Sentiment  float64   `json:"sentiment" db:"sentiment"` // -100..100 at snapshot time
	Confidence float64   `json:"confidence" db:"confidence"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}

// PredictionRepo stores sentiment snapshots for accuracy backtesting.
type PredictionRepo interface {
	InsertPrediction(ctx context.Context, p Prediction) error
	ListPredictions(ctx context.Context, ticker string, since time.Time) ([]Prediction, error)
}

// ReputationRepo serves author reputation snapshots.
type ReputationRepo interface {
	GetAuthor(ctx context.Context, author string) (*models.AuthorProfile, error)
}

// Repository bundles every repo behind one handle.
type Repository struct {
	Items       ItemRepo
	Aggregates  AggregateRepo
	Predictions PredictionRepo
	Reputation  ReputationRepo
}
