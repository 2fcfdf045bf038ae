package persistence

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stocktide/stocktide/internal/models"
)

// NewMemoryRepository returns a Repository backed entirely by process memory.
// Used by tests and by deployments that run with postgres disabled.
func NewMemoryRepository() *Repository {
	return &Repository{
		Items:       NewMemoryItemRepo(),
		Aggregates:  NewMemoryAggregateRepo(),
		Predictions: NewMemoryPredictionRepo(),
		Reputation:  NewMemoryReputationRepo(),
	}
}

// MemoryItemRepo is an in-memory ItemRepo.
type MemoryItemRepo struct {
	mu    sync.RWMutex
	items []ScoredPost
}

// NewMemoryItemRepo creates an empty in-memory item repo.
func NewMemoryItemRepo() *MemoryItemRepo {
	return &MemoryItemRepo{}
}

func (r *MemoryItemRepo) Insert(_ context.Context, item ScoredPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	return nil
}

// Stored items are per (post, ticker); the velocity counts deduplicate by
// post ID so a multi-ticker post counts once.
func (r *MemoryItemRepo) AuthorPostCount(_ context.Context, author, community string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, it := range r.items {
		if it.Post.Author == author && it.Post.Community == community && it.Post.CreatedAt.After(since) {
			seen[it.Post.ID] = struct{}{}
		}
	}
	return len(seen), nil
}

func (r *MemoryItemRepo) CommunityPostCount(_ context.Context, community string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, it := range r.items {
		if it.Post.Community == community && it.Post.CreatedAt.After(since) {
			seen[it.Post.ID] = struct{}{}
		}
	}
	return len(seen), nil
}

func (r *MemoryItemRepo) MentionCount(_ context.Context, ticker string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, it := range r.items {
		if !tickerMatches(it, ticker) {
			continue
		}
		if since.IsZero() || it.Post.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryItemRepo) ListByTicker(_ context.Context, ticker string, since time.Time) ([]ScoredPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ScoredPost
	for _, it := range r.items {
		if !tickerMatches(it, ticker) {
			continue
		}
		if since.IsZero() || it.Post.CreatedAt.After(since) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *MemoryItemRepo) Contributors(_ context.Context, ticker string, since time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	for _, it := range r.items {
		if !tickerMatches(it, ticker) {
			continue
		}
		if since.IsZero() || it.Post.CreatedAt.After(since) {
			seen[it.Post.Author] = true
		}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryItemRepo) RefreshDecay(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		r.items[i].Score.DecayFactor = models.DecayFactor(r.items[i].Post.CreatedAt, now)
	}
	return len(r.items), nil
}

func tickerMatches(it ScoredPost, ticker string) bool {
	return strings.EqualFold(it.Score.Ticker, ticker)
}

// MemoryAggregateRepo is an in-memory AggregateRepo with the same optimistic
// concurrency semantics as the postgres implementation.
type MemoryAggregateRepo struct {
	mu   sync.Mutex
	aggs map[string]*models.TickerAggregate
}

// NewMemoryAggregateRepo creates an empty in-memory aggregate repo.
func NewMemoryAggregateRepo() *MemoryAggregateRepo {
	return &MemoryAggregateRepo{aggs: make(map[string]*models.TickerAggregate)}
}

func (r *MemoryAggregateRepo) GetAggregate(_ context.Context, ticker string) (*models.TickerAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agg, ok := r.aggs[ticker]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAggregate(agg), nil
}

func (r *MemoryAggregateRepo) SaveAggregate(_ context.Context, agg *models.TickerAggregate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.aggs[agg.Ticker]
	if ok && existing.Version != agg.Version {
		return ErrVersionConflict
	}
	saved := cloneAggregate(agg)
	saved.Version++
	r.aggs[agg.Ticker] = saved
	agg.Version = saved.Version
	return nil
}

func (r *MemoryAggregateRepo) ListTickers(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.aggs))
	for t := range r.aggs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func cloneAggregate(agg *models.TickerAggregate) *models.TickerAggregate {
	cp := *agg
	cp.Communities = make(map[string]*models.CommunityStats, len(agg.Communities))
	for name, cs := range agg.Communities {
		c := *cs
		cp.Communities[name] = &c
	}
	cp.Sentiment.SetWeight(agg.Sentiment.Weight())
	return &cp
}

// MemoryPredictionRepo is an in-memory PredictionRepo.
type MemoryPredictionRepo struct {
	mu    sync.RWMutex
	preds []Prediction
}

// NewMemoryPredictionRepo creates an empty in-memory prediction repo.
func NewMemoryPredictionRepo() *MemoryPredictionRepo {
	return &MemoryPredictionRepo{}
}

func (r *MemoryPredictionRepo) InsertPrediction(_ context.Context, p Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preds = append(r.preds, p)
	return nil
}

func (r *MemoryPredictionRepo) ListPredictions(_ context.Context, ticker string, since time.Time) ([]Prediction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Prediction
	for _, p := range r.preds {
		if strings.EqualFold(p.Ticker, ticker) && p.RecordedAt.After(since) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

// MemoryReputationRepo is an in-memory ReputationRepo. Unknown authors get a
// novice default snapshot rather than an error.
type MemoryReputationRepo struct {
	mu      sync.RWMutex
	authors map[string]*models.AuthorProfile
}

// NewMemoryReputationRepo creates an empty in-memory reputation repo.
func NewMemoryReputationRepo() *MemoryReputationRepo {
	return &MemoryReputationRepo{authors: make(map[string]*models.AuthorProfile)}
}

// SetAuthor stores a reputation snapshot.
func (r *MemoryReputationRepo) SetAuthor(profile *models.AuthorProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authors[profile.Author] = profile
}

func (r *MemoryReputationRepo) GetAuthor(_ context.Context, author string) (*models.AuthorProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.authors[author]; ok {
		cp := *p
		return &cp, nil
	}
	return &models.AuthorProfile{
		Author:       author,
		QualityScore: 30,
		Tier:         models.TierNovice,
	}, nil
}
