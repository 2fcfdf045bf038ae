package quality

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocktide/stocktide/internal/config"
	"github.com/stocktide/stocktide/internal/models"
)

// fakeVelocity is a canned VelocityLookback.
type fakeVelocity struct {
	authorCount    int
	communityCount int
	err            error
}

func (f *fakeVelocity) AuthorPostCount(context.Context, string, string, time.Time) (int, error) {
	return f.authorCount, f.err
}

func (f *fakeVelocity) CommunityPostCount(context.Context, string, time.Time) (int, error) {
	return f.communityCount, f.err
}

func goodPost() *models.Post {
	return &models.Post{
		ID:        "p1",
		Community: "stocks",
		Title:     "ACME earnings deep dive",
		Body:      strings.Repeat("Margins expanded for the third straight quarter. ", 8),
		Author:    "alice",
		Upvotes:   25,
		Comments:  8,
		Awards:    1,
		CreatedAt: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
}

func trustedAuthor() *models.AuthorProfile {
	return &models.AuthorProfile{
		Author:       "alice",
		QualityScore: 80,
		Tier:         models.TierTrusted,
	}
}

func TestScore_WeightedFormula(t *testing.T) {
	cfg := config.DefaultCommunity("stocks")
	post := &models.Post{
		Title:   strings.Repeat("a", 100),
		Body:    strings.Repeat("b", 100),
		Upvotes: 5, // exactly at minimum -> 100
		Comments: 1, // half of minimum -> 50
		Awards:  2,  // 10 bonus points
	}
	author := &models.AuthorProfile{QualityScore: 60}

	// 100*.25 + 50*.25 + 60*.30 + 20*.15 + 10*.05
	got := Score(post, author, cfg)
	assert.InDelta(t, 59.0, got, 1e-9)
}

func TestScore_Caps(t *testing.T) {
	cfg := config.DefaultCommunity("stocks")
	post := &models.Post{
		Title:   strings.Repeat("x", 5000),
		Body:    strings.Repeat("y", 5000),
		Upvotes: 100000,
		Comments: 100000,
		Awards:  100,
	}
	author := &models.AuthorProfile{QualityScore: 200}

	got := Score(post, author, cfg)
	assert.LessOrEqual(t, got, 100.0)

	// Every component saturated: 25 + 25 + 30 + 15 + 1.
	assert.InDelta(t, 96.0, got, 1e-9)
}

func TestScore_NilAuthorScoresZeroReputation(t *testing.T) {
	cfg := config.DefaultCommunity("stocks")
	post := goodPost()

	withAuthor := Score(post, trustedAuthor(), cfg)
	without := Score(post, nil, cfg)
	assert.InDelta(t, 80*0.30, withAuthor-without, 1e-9)
}

func TestEvaluate_AcceptsQualityPost(t *testing.T) {
	filter := NewFilter(&fakeVelocity{})
	cfg := config.DefaultCommunity("stocks")

	res, err := filter.Evaluate(context.Background(), goodPost(), trustedAuthor(), cfg)
	require.NoError(t, err)
	assert.True(t, res.Passes)
	assert.Empty(t, res.RejectReasons)
	assert.Greater(t, res.QualityScore, cfg.QualityThreshold)
}

func TestEvaluate_PumpPostRejectedForUpvotesAndSpam(t *testing.T) {
	filter := NewFilter(&fakeVelocity{})
	cfg := config.DefaultCommunity("wallstreetbets")

	post := &models.Post{
		ID:        "pump1",
		Community: "wallstreetbets",
		Body:      "BUY BUY BUY 🚀🚀🚀🚀🚀🚀🚀🚀🚀🚀",
		Author:    "pumper",
		Upvotes:   3,
		Comments:  2,
		CreatedAt: time.Now(),
	}

	res, err := filter.Evaluate(context.Background(), post, nil, cfg)
	require.NoError(t, err)
	assert.False(t, res.Passes)
	assert.Contains(t, res.RejectReasons, ReasonLowUpvotes)
	assert.Contains(t, res.RejectReasons, ReasonSpam)
}

func TestEvaluate_MonotonicInMinUpvotes(t *testing.T) {
	filter := NewFilter(&fakeVelocity{})
	post := goodPost()
	author := trustedAuthor()

	strict := config.DefaultCommunity("stocks")
	strict.MinUpvotes = 25

	res, err := filter.Evaluate(context.Background(), post, author, strict)
	require.NoError(t, err)
	require.True(t, res.Passes)

	// Lowering the threshold must never flip an accepted post to rejected.
	for _, min := range []int{20, 10, 5, 1, 0} {
		relaxed := strict
		relaxed.MinUpvotes = min
		res, err := filter.Evaluate(context.Background(), post, author, relaxed)
		require.NoError(t, err)
		assert.True(t, res.Passes, "minUpvotes=%d", min)
	}
}

func TestEvaluate_GateReasons(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *models.Post, cfg *config.CommunityConfig)
		reason string
	}{
		{
			name:   "low_comments",
			mutate: func(p *models.Post, _ *config.CommunityConfig) { p.Comments = 0 },
			reason: ReasonLowComments,
		},
		{
			name: "below_quality_threshold",
			mutate: func(_ *models.Post, cfg *config.CommunityConfig) {
				cfg.QualityThreshold = 99
			},
			reason: ReasonLowQuality,
		},
		{
			name: "excluded_flair",
			mutate: func(p *models.Post, cfg *config.CommunityConfig) {
				p.Flair = "Meme"
				cfg.ExcludedFlairs = []string{"Meme", "Shitpost"}
			},
			reason: ReasonExcludedFlair,
		},
		{
			name: "blocked_keyword",
			mutate: func(p *models.Post, cfg *config.CommunityConfig) {
				p.Body += " guaranteed returns, join my discord"
				cfg.KeywordFilters = []string{"guaranteed returns"}
			},
			reason: ReasonBlockedKeyword,
		},
		{
			name: "content_too_short",
			mutate: func(p *models.Post, _ *config.CommunityConfig) {
				p.Title = "ACME?"
				p.Body = "thoughts?"
			},
			reason: ReasonTooShort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := NewFilter(&fakeVelocity{})
			cfg := config.DefaultCommunity("stocks")
			post := goodPost()
			tt.mutate(post, &cfg)

			res, err := filter.Evaluate(context.Background(), post, trustedAuthor(), cfg)
			require.NoError(t, err)
			assert.False(t, res.Passes)
			assert.Contains(t, res.RejectReasons, tt.reason)
		})
	}
}

func TestEvaluate_VelocityAbuse(t *testing.T) {
	cfg := config.DefaultCommunity("stocks")

	t.Run("author_over_limit", func(t *testing.T) {
		filter := NewFilter(&fakeVelocity{authorCount: 6})
		res, err := filter.Evaluate(context.Background(), goodPost(), trustedAuthor(), cfg)
		require.NoError(t, err)
		assert.False(t, res.Passes)
		assert.Equal(t, []string{ReasonVelocityAbuse}, res.RejectReasons)
	})

	t.Run("community_over_limit", func(t *testing.T) {
		filter := NewFilter(&fakeVelocity{communityCount: cfg.MaxPostsPerHour + 1})
		res, err := filter.Evaluate(context.Background(), goodPost(), trustedAuthor(), cfg)
		require.NoError(t, err)
		assert.False(t, res.Passes)
		assert.Contains(t, res.RejectReasons, ReasonVelocityAbuse)
	})

	t.Run("lookback_error_propagates", func(t *testing.T) {
		filter := NewFilter(&fakeVelocity{err: errors.New("store down")})
		_, err := filter.Evaluate(context.Background(), goodPost(), trustedAuthor(), cfg)
		assert.Error(t, err)
	})

	t.Run("rejected_post_skips_lookback", func(t *testing.T) {
		// A post failing a cheap gate must not pay for the velocity query.
		filter := NewFilter(&fakeVelocity{err: errors.New("store down")})
		post := goodPost()
		post.Upvotes = 0
		res, err := filter.Evaluate(context.Background(), post, trustedAuthor(), cfg)
		require.NoError(t, err)
		assert.False(t, res.Passes)
	})
}
