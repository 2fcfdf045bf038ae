// Package postgres implements the persistence repositories on PostgreSQL
// via sqlx. The Manager owns the connection pool and hands out a wired
// Repository; deployments without a database run on the in-memory
// implementations instead.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/stocktide/stocktide/internal/config"
	"github.com/stocktide/stocktide/internal/persistence"
)

// Manager manages the database connection and repository instances.
type Manager struct {
	db     *sqlx.DB
	config config.PostgresConfig
	repos  *persistence.Repository
}

// NewManager opens the connection pool, verifies connectivity and wires the
// repositories. A disabled config returns a Manager with nil repositories.
func NewManager(cfg config.PostgresConfig) (*Manager, error) {
	if !cfg.Enabled {
		return &Manager{config: cfg}, nil
	}

	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required when enabled")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repos := &persistence.Repository{
		Items:       NewItemRepo(db, cfg.QueryTimeout),
		Aggregates:  NewAggregateRepo(db, cfg.QueryTimeout),
		Predictions: NewPredictionRepo(db, cfg.QueryTimeout),
		Reputation:  NewReputationRepo(db, cfg.QueryTimeout),
	}

	return &Manager{db: db, config: cfg, repos: repos}, nil
}

// Repository returns the wired repositories, or nil when disabled.
func (m *Manager) Repository() *persistence.Repository {
	return m.repos
}

// IsEnabled reports whether database persistence is active.
func (m *Manager) IsEnabled() bool {
	return m.config.Enabled && m.db != nil
}

// Ping tests connectivity.
func (m *Manager) Ping(ctx context.Context) error {
	if m.db == nil {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, m.config.QueryTimeout)
	defer cancel()
	return m.db.PingContext(pingCtx)
}

// Migrate creates the schema if it does not exist.
func (m *Manager) Migrate(ctx context.Context) error {
	if m.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if _, err := m.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

const schema = `
-- One row per (post, ticker) mention; a multi-ticker post stores several rows.
CREATE TABLE IF NOT EXISTS posts (
	id              TEXT NOT NULL,
	community       TEXT NOT NULL,
	title           TEXT NOT NULL,
	body            TEXT NOT NULL,
	author          TEXT NOT NULL,
	upvotes         INTEGER NOT NULL,
	comments        INTEGER NOT NULL,
	awards          INTEGER NOT NULL,
	flair           TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL,
	ticker          TEXT NOT NULL,
	quality_score   DOUBLE PRECISION NOT NULL,
	sentiment_score DOUBLE PRECISION NOT NULL,
	sentiment_conf  DOUBLE PRECISION NOT NULL,
	decay_factor    DOUBLE PRECISION NOT NULL,
	scored_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (id, ticker)
);
CREATE INDEX IF NOT EXISTS idx_posts_ticker_created ON posts (ticker, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_posts_author_community ON posts (author, community, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_posts_community_created ON posts (community, created_at DESC);

CREATE TABLE IF NOT EXISTS ticker_aggregates (
	ticker       TEXT PRIMARY KEY,
	payload      JSONB NOT NULL,
	weight       DOUBLE PRECISION NOT NULL,
	version      BIGINT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS predictions (
	id          BIGSERIAL PRIMARY KEY,
	ticker      TEXT NOT NULL,
	sentiment   DOUBLE PRECISION NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_ticker_recorded ON predictions (ticker, recorded_at DESC);

CREATE TABLE IF NOT EXISTS author_reputation (
	author           TEXT PRIMARY KEY,
	account_age_days INTEGER NOT NULL,
	karma            INTEGER NOT NULL,
	quality_score    DOUBLE PRECISION NOT NULL,
	tier             TEXT NOT NULL
);
`
