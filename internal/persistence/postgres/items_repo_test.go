package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/persistence"
)

func newMockItemRepo(t *testing.T) (persistence.ItemRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewItemRepo(sqlx.NewDb(db, "sqlmock"), 5*time.Second), mock
}

func mentionOf(id, ticker string, createdAt time.Time) persistence.ScoredPost {
	return persistence.ScoredPost{
		Post: models.Post{
			ID:        id,
			Community: "stocks",
			Title:     "Earnings beat",
			Body:      "Guidance raised across the board.",
			Author:    "alice",
			Upvotes:   20,
			Comments:  5,
			CreatedAt: createdAt,
		},
		Score: models.PostScore{
			PostID:       id,
			Ticker:       ticker,
			QualityScore: 65,
			PassesFilter: true,
			DecayFactor:  1,
			ScoredAt:     createdAt,
		},
	}
}

func TestSchema_OneRowPerTickerMention(t *testing.T) {
	assert.Contains(t, schema, "PRIMARY KEY (id, ticker)",
		"a multi-ticker post must be able to store one row per mentioned ticker")
	assert.NotContains(t, schema, "id              TEXT PRIMARY KEY")
}

func TestInsert_RowPerTicker(t *testing.T) {
	repo, mock := newMockItemRepo(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	// The same post inserts cleanly once per mentioned ticker.
	for range []string{"AAA", "BBB"} {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO posts")).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	require.NoError(t, repo.Insert(context.Background(), mentionOf("p1", "AAA", now)))
	require.NoError(t, repo.Insert(context.Background(), mentionOf("p1", "BBB", now)))
}

func TestInsert_DuplicateMention(t *testing.T) {
	repo, mock := newMockItemRepo(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO posts")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Insert(context.Background(), mentionOf("p1", "AAA", now))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate mention p1/AAA")
}

func TestVelocityCounts_DistinctPostIDs(t *testing.T) {
	repo, mock := newMockItemRepo(t)
	since := time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT id) FROM posts WHERE author = $1 AND community = $2")).
		WithArgs("alice", "stocks", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	byAuthor, err := repo.AuthorPostCount(context.Background(), "alice", "stocks", since)
	require.NoError(t, err)
	assert.Equal(t, 2, byAuthor)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT id) FROM posts WHERE community = $1")).
		WithArgs("stocks", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	byCommunity, err := repo.CommunityPostCount(context.Background(), "stocks", since)
	require.NoError(t, err)
	assert.Equal(t, 4, byCommunity)
}

func TestRefreshDecay_ClampsAtOne(t *testing.T) {
	repo, mock := newMockItemRepo(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	// Future-dated rows must not decay above 1, so the SQL clamps the
	// exponential the same way models.DecayFactor does.
	mock.ExpectExec(regexp.QuoteMeta("SET decay_factor = LEAST(EXP(")).
		WithArgs(now, models.DecayWindowHours).
		WillReturnResult(sqlmock.NewResult(0, 3))

	touched, err := repo.RefreshDecay(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, touched)
}
