package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/persistence"
)

// predictionRepo implements PredictionRepo for PostgreSQL.
type predictionRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPredictionRepo creates a PostgreSQL prediction repository.
func NewPredictionRepo(db *sqlx.DB, timeout time.Duration) persistence.PredictionRepo {
	return &predictionRepo{db: db, timeout: timeout}
}

func (r *predictionRepo) InsertPrediction(ctx context.Context, p persistence.Prediction) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO predictions (ticker, sentiment, confidence, recorded_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, p.Ticker, p.Sentiment, p.Confidence, p.RecordedAt); err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

func (r *predictionRepo) ListPredictions(ctx context.Context, ticker string, since time.Time) ([]persistence.Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ticker, sentiment, confidence, recorded_at
		FROM predictions
		WHERE ticker = $1 AND recorded_at >= $2
		ORDER BY recorded_at ASC`

	var preds []persistence.Prediction
	if err := r.db.SelectContext(ctx, &preds, query, ticker, since); err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	return preds, nil
}

// reputationRepo implements ReputationRepo for PostgreSQL. Unknown authors
// resolve to a novice default rather than an error, matching the in-memory
// implementation.
type reputationRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewReputationRepo creates a PostgreSQL reputation repository.
func NewReputationRepo(db *sqlx.DB, timeout time.Duration) persistence.ReputationRepo {
	return &reputationRepo{db: db, timeout: timeout}
}

func (r *reputationRepo) GetAuthor(ctx context.Context, author string) (*models.AuthorProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT author, account_age_days, karma, quality_score, tier
		FROM author_reputation
		WHERE author = $1`

	var profile models.AuthorProfile
	err := r.db.GetContext(ctx, &profile, query, author)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.AuthorProfile{
				Author:       author,
				QualityScore: 30,
				Tier:         models.TierNovice,
			}, nil
		}
		return nil, fmt.Errorf("failed to get author reputation: %w", err)
	}
	return &profile, nil
}
