package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/persistence"
)

// itemRepo implements ItemRepo for PostgreSQL.
type itemRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewItemRepo creates a PostgreSQL item repository.
func NewItemRepo(db *sqlx.DB, timeout time.Duration) persistence.ItemRepo {
	return &itemRepo{db: db, timeout: timeout}
}

// Insert adds an accepted post with its score.
func (r *itemRepo) Insert(ctx context.Context, item persistence.ScoredPost) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO posts (id, community, title, body, author, upvotes, comments, awards, flair,
			created_at, ticker, quality_score, sentiment_score, sentiment_conf, decay_factor, scored_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.db.ExecContext(ctx, query,
		item.Post.ID, item.Post.Community, item.Post.Title, item.Post.Body,
		item.Post.Author, item.Post.Upvotes, item.Post.Comments, item.Post.Awards,
		item.Post.Flair, item.Post.CreatedAt,
		item.Score.Ticker, item.Score.QualityScore, item.Score.SentimentScore,
		item.Score.SentimentConfidence, item.Score.DecayFactor, item.Score.ScoredAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate mention %s/%s: %w", item.Post.ID, item.Score.Ticker, err)
		}
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

func (r *itemRepo) AuthorPostCount(ctx context.Context, author, community string, since time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	// Rows are per (post, ticker); distinct ids keep a multi-ticker post from
	// counting more than once toward the velocity cap.
	query := `SELECT COUNT(DISTINCT id) FROM posts WHERE author = $1 AND community = $2 AND created_at >= $3`
	if err := r.db.QueryRowxContext(ctx, query, author, community, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count author posts: %w", err)
	}
	return count, nil
}

func (r *itemRepo) CommunityPostCount(ctx context.Context, community string, since time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	query := `SELECT COUNT(DISTINCT id) FROM posts WHERE community = $1 AND created_at >= $2`
	if err := r.db.QueryRowxContext(ctx, query, community, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count community posts: %w", err)
	}
	return count, nil
}

func (r *itemRepo) MentionCount(ctx context.Context, ticker string, since time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	query := `SELECT COUNT(*) FROM posts WHERE ticker = $1 AND created_at >= $2`
	if err := r.db.QueryRowxContext(ctx, query, ticker, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count mentions: %w", err)
	}
	return count, nil
}

func (r *itemRepo) ListByTicker(ctx context.Context, ticker string, since time.Time) ([]persistence.ScoredPost, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, community, title, body, author, upvotes, comments, awards, flair,
			created_at, ticker, quality_score, sentiment_score, sentiment_conf, decay_factor, scored_at
		FROM posts
		WHERE ticker = $1 AND created_at >= $2
		ORDER BY created_at DESC`

	rows, err := r.db.QueryxContext(ctx, query, ticker, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts by ticker: %w", err)
	}
	defer rows.Close()

	var items []persistence.ScoredPost
	for rows.Next() {
		var item persistence.ScoredPost
		err := rows.Scan(
			&item.Post.ID, &item.Post.Community, &item.Post.Title, &item.Post.Body,
			&item.Post.Author, &item.Post.Upvotes, &item.Post.Comments, &item.Post.Awards,
			&item.Post.Flair, &item.Post.CreatedAt,
			&item.Score.Ticker, &item.Score.QualityScore, &item.Score.SentimentScore,
			&item.Score.SentimentConfidence, &item.Score.DecayFactor, &item.Score.ScoredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		item.Score.PostID = item.Post.ID
		item.Score.PassesFilter = true
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return items, nil
}

func (r *itemRepo) Contributors(ctx context.Context, ticker string, since time.Time) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT DISTINCT author FROM posts WHERE ticker = $1 AND created_at >= $2 ORDER BY author`
	rows, err := r.db.QueryxContext(ctx, query, ticker, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query contributors: %w", err)
	}
	defer rows.Close()

	var authors []string
	for rows.Next() {
		var author string
		if err := rows.Scan(&author); err != nil {
			return nil, fmt.Errorf("failed to scan contributor: %w", err)
		}
		authors = append(authors, author)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return authors, nil
}

// RefreshDecay recomputes every stored decay factor from post age as of now.
// LEAST(exp(-hours/24), 1) mirrors models.DecayFactor, clock-skewed
// future-dated posts included.
func (r *itemRepo) RefreshDecay(ctx context.Context, now time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE posts
		SET decay_factor = LEAST(EXP(-EXTRACT(EPOCH FROM ($1::timestamptz - created_at)) / 3600.0 / $2), 1)`
	res, err := r.db.ExecContext(ctx, query, now, models.DecayWindowHours)
	if err != nil {
		return 0, fmt.Errorf("failed to refresh decay: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(n), nil
}
