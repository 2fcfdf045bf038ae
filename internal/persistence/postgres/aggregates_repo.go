package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/persistence"
)

// aggregateRepo implements AggregateRepo for PostgreSQL. The aggregate state
// is stored as JSONB; the version column carries the optimistic-concurrency
// token, and the sentiment evidence weight is stored alongside because it is
// not part of the JSON payload.
type aggregateRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewAggregateRepo creates a PostgreSQL aggregate repository.
func NewAggregateRepo(db *sqlx.DB, timeout time.Duration) persistence.AggregateRepo {
	return &aggregateRepo{db: db, timeout: timeout}
}

func (r *aggregateRepo) GetAggregate(ctx context.Context, ticker string) (*models.TickerAggregate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT payload, weight, version FROM ticker_aggregates WHERE ticker = $1`

	var payload []byte
	var weight float64
	var version int64
	err := r.db.QueryRowxContext(ctx, query, ticker).Scan(&payload, &weight, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get aggregate: %w", err)
	}

	var agg models.TickerAggregate
	if err := json.Unmarshal(payload, &agg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal aggregate: %w", err)
	}
	agg.Sentiment.SetWeight(weight)
	agg.Version = version
	return &agg, nil
}

// SaveAggregate writes the aggregate only when its version still matches the
// stored row, then bumps the version. New tickers insert at version 1.
func (r *aggregateRepo) SaveAggregate(ctx context.Context, agg *models.TickerAggregate) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("failed to marshal aggregate: %w", err)
	}

	if agg.Version == 0 {
		query := `
			INSERT INTO ticker_aggregates (ticker, payload, weight, version, updated_at)
			VALUES ($1, $2, $3, 1, $4)
			ON CONFLICT (ticker) DO NOTHING`
		res, err := r.db.ExecContext(ctx, query, agg.Ticker, payload, agg.Sentiment.Weight(), agg.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert aggregate: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return persistence.ErrVersionConflict
		}
		agg.Version = 1
		return nil
	}

	query := `
		UPDATE ticker_aggregates
		SET payload = $1, weight = $2, version = version + 1, updated_at = $3
		WHERE ticker = $4 AND version = $5`
	res, err := r.db.ExecContext(ctx, query, payload, agg.Sentiment.Weight(), agg.UpdatedAt, agg.Ticker, agg.Version)
	if err != nil {
		return fmt.Errorf("failed to update aggregate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return persistence.ErrVersionConflict
	}
	agg.Version++
	return nil
}

func (r *aggregateRepo) ListTickers(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `SELECT ticker FROM ticker_aggregates ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return tickers, nil
}
