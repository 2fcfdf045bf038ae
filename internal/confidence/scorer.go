// Package confidence combines six independently-imperfect evidence channels
// into one defensible confidence score for a ticker signal. Any channel can
// fail without taking the calculation down: it degrades to a neutral default
// and the result says so.
package confidence

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stocktide/stocktide/internal/crossval"
	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/persistence"
	"github.com/stocktide/stocktide/internal/providers"
)

// Level is the discrete confidence tier.
type Level string

const (
	LevelVeryLow  Level = "very_low"
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelVeryHigh Level = "very_high"
)

// LevelFor maps a composite score to its tier. Pure, order-preserving step
// function.
func LevelFor(score float64) Level {
	switch {
	case score >= 85:
		return LevelVeryHigh
	case score >= 70:
		return LevelHigh
	case score >= 50:
		return LevelMedium
	case score >= 30:
		return LevelLow
	default:
		return LevelVeryLow
	}
}

// Insights lists the strongest and weakest evidence channels.
type Insights struct {
	Strengths  []string `json:"strengths,omitempty"`
	Weaknesses []string `json:"weaknesses,omitempty"`
}

// Result is the full confidence verdict for a ticker.
type Result struct {
	Ticker          string           `json:"ticker"`
	Score           float64          `json:"score"` // 0-100 weighted composite
	Level           Level            `json:"level"`
	Components      []Component      `json:"components"`
	Insights        Insights         `json:"insights"`
	RiskFactors     []RiskFactor     `json:"risk_factors,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	Degraded        []string         `json:"degraded_components,omitempty"`
	IsValidated     bool             `json:"is_validated"`
	ComputedAt      time.Time        `json:"computed_at"`
}

// Component returns the named component, if computed.
func (r *Result) Component(name string) (Component, bool) {
	for _, c := range r.Components {
		if c.Name == name {
			return c, true
		}
	}
	return Component{}, false
}

// Options toggles the enrichment channels. Core channels (data points,
// reputation, cross-validation) are always computed.
type Options struct {
	IncludeHistorical bool
	IncludeNews       bool
	IncludeEcon       bool
	Window            time.Duration
}

// DefaultOptions enables every channel over a 24h window.
func DefaultOptions() Options {
	return Options{
		IncludeHistorical: true,
		IncludeNews:       true,
		IncludeEcon:       true,
		Window:            24 * time.Hour,
	}
}

// cacheKey identifies a result by ticker and the options it was computed
// under, so a channel-skipping or re-windowed read never serves a result
// computed with different channels.
func (o Options) cacheKey(ticker string) string {
	return fmt.Sprintf("%s:%s:h%t:n%t:e%t",
		ticker, o.Window, o.IncludeHistorical, o.IncludeNews, o.IncludeEcon)
}

// ResultCache is a short-TTL cache of confidence results.
type ResultCache interface {
	Get(ctx context.Context, key string) (*Result, bool)
	Set(ctx context.Context, key string, res *Result) error
}

// Scorer computes composite confidence for tickers.
type Scorer struct {
	repo     *persistence.Repository
	crossval *crossval.Engine
	news     providers.NewsProvider
	econ     providers.EconProvider
	price    providers.PriceProvider
	guards   *providers.Guards
	cache    ResultCache
	log      zerolog.Logger
}

// NewScorer wires a confidence scorer. Guards and cache are optional.
func NewScorer(repo *persistence.Repository, cv *crossval.Engine, set providers.Set, guards *providers.Guards) *Scorer {
	return &Scorer{
		repo:     repo,
		crossval: cv,
		news:     set.News,
		econ:     set.Econ,
		price:    set.Price,
		guards:   guards,
		log:      log.With().Str("component", "confidence").Logger(),
	}
}

// WithCache attaches a short-TTL result cache.
func (s *Scorer) WithCache(cache ResultCache) *Scorer {
	s.cache = cache
	return s
}

// Score computes the confidence verdict for a ticker. Enrichment channels run
// concurrently; each failure degrades its own component and nothing else.
// Only the inability to read the ticker aggregate itself is an error.
func (s *Scorer) Score(ctx context.Context, ticker string, communities []string, opts Options) (*Result, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, opts.cacheKey(ticker)); ok {
			return cached, nil
		}
	}

	agg, err := s.repo.Aggregates.GetAggregate(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("load aggregate for %s: %w", ticker, err)
	}

	res := &Result{
		Ticker:     ticker,
		ComputedAt: time.Now(),
	}

	// Local-evidence components first; they only touch our own storage.
	res.add(scoreDataPoints(agg))
	res.add(s.reputationComponent(ctx, ticker, opts.Window))
	res.add(scoreCrossValidation(agg))

	// Provider-bound channels fan out concurrently and join with
	// partial-failure tolerance.
	for comp := range s.enrich(ctx, ticker, agg, opts) {
		res.add(comp)
	}

	validation := s.crossval.Validate(ctx, ticker, communities, opts.Window)
	res.IsValidated = validation.IsValidated

	s.finish(res)

	if s.cache != nil {
		if err := s.cache.Set(ctx, opts.cacheKey(ticker), res); err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("confidence cache write failed")
		}
	}
	return res, nil
}

func (r *Result) add(c Component) {
	r.Components = append(r.Components, c)
	if c.Degraded {
		r.Degraded = append(r.Degraded, c.Name)
	}
}

func (s *Scorer) reputationComponent(ctx context.Context, ticker string, window time.Duration) Component {
	authors, err := s.contributorProfiles(ctx, ticker, window)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("reputation lookup failed")
		return degradedComponent(ComponentReputation, err.Error())
	}
	return scoreReputation(authors)
}

func (s *Scorer) contributorProfiles(ctx context.Context, ticker string, window time.Duration) ([]*models.AuthorProfile, error) {
	names, err := s.repo.Items.Contributors(ctx, ticker, time.Now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("list contributors: %w", err)
	}
	profiles := make([]*models.AuthorProfile, 0, len(names))
	for _, name := range names {
		p, err := s.repo.Reputation.GetAuthor(ctx, name)
		if err != nil {
			// One missing profile is not worth degrading the channel over.
			s.log.Debug().Err(err).Str("author", name).Msg("author profile lookup failed")
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// enrich runs the provider-bound channels concurrently and streams their
// components back as they land.
func (s *Scorer) enrich(ctx context.Context, ticker string, agg *models.TickerAggregate, opts Options) <-chan Component {
	type task struct {
		name string
		run  func(ctx context.Context) (Component, error)
	}

	var tasks []task
	if opts.IncludeNews {
		tasks = append(tasks, task{ComponentNews, func(ctx context.Context) (Component, error) {
			return s.newsComponent(ctx, ticker, agg.Sentiment.Current, opts.Window)
		}})
	}
	if opts.IncludeEcon {
		tasks = append(tasks, task{ComponentEcon, func(ctx context.Context) (Component, error) {
			return s.econComponent(ctx, ticker, agg.Sentiment.Current)
		}})
	}
	if opts.IncludeHistorical {
		tasks = append(tasks, task{ComponentHistorical, func(ctx context.Context) (Component, error) {
			return s.historicalComponent(ctx, ticker)
		}})
	}

	out := make(chan Component, len(tasks))
	if len(tasks) == 0 {
		close(out)
		return out
	}

	done := make(chan struct{}, len(tasks))
	for _, t := range tasks {
		go func(t task) {
			defer func() { done <- struct{}{} }()
			comp, err := t.run(ctx)
			if err != nil {
				s.log.Warn().Err(err).
					Str("ticker", ticker).
					Str("channel", t.name).
					Msg("enrichment channel degraded")
				comp = degradedComponent(t.name, err.Error())
			}
			out <- comp
		}(t)
	}
	go func() {
		for range tasks {
			<-done
		}
		close(out)
	}()
	return out
}

func (s *Scorer) newsComponent(ctx context.Context, ticker string, sentiment float64, window time.Duration) (Component, error) {
	var corr *providers.NewsCorrelation
	call := func(ctx context.Context) error {
		var err error
		corr, err = s.news.Correlation(ctx, ticker, sentiment, window)
		return err
	}
	if err := s.guardedCall(ctx, s.guardFor("news"), call); err != nil {
		return Component{}, err
	}
	return scoreNews(corr), nil
}

func (s *Scorer) econComponent(ctx context.Context, ticker string, sentiment float64) (Component, error) {
	var outlook *providers.EconOutlook
	call := func(ctx context.Context) error {
		var err error
		outlook, err = s.econ.Outlook(ctx, ticker, sentiment)
		return err
	}
	if err := s.guardedCall(ctx, s.guardFor("econ"), call); err != nil {
		return Component{}, err
	}
	return scoreEcon(outlook), nil
}

func (s *Scorer) historicalComponent(ctx context.Context, ticker string) (Component, error) {
	var comp Component
	call := func(ctx context.Context) error {
		var err error
		comp, err = scoreHistorical(ctx, ticker, s.repo.Predictions, s.price)
		return err
	}
	if err := s.guardedCall(ctx, s.guardFor("price"), call); err != nil {
		return Component{}, err
	}
	return comp, nil
}

func (s *Scorer) guardFor(name string) *providers.Guard {
	if s.guards == nil {
		return nil
	}
	switch name {
	case "news":
		return s.guards.News
	case "econ":
		return s.guards.Econ
	case "price":
		return s.guards.Price
	}
	return nil
}

func (s *Scorer) guardedCall(ctx context.Context, guard *providers.Guard, fn func(ctx context.Context) error) error {
	if guard == nil {
		return fn(ctx)
	}
	return guard.Do(ctx, fn)
}

// finish computes the composite, level, insights, risks and recommendations.
// The composite is a weighted average over the healthy components only;
// degraded ones are reported at neutral but renormalized out of the average
// so an unavailable channel neither inflates nor deflates the verdict.
func (s *Scorer) finish(res *Result) {
	var weighted, totalWeight float64
	for _, c := range res.Components {
		if c.Degraded {
			continue
		}
		weighted += c.Score * c.Weight
		totalWeight += c.Weight
	}
	if totalWeight > 0 {
		res.Score = models.ClampScore(weighted / totalWeight)
	} else {
		res.Score = neutralScore
	}
	res.Level = LevelFor(res.Score)

	res.Insights = buildInsights(res.Components)
	res.RiskFactors = buildRiskFactors(res)
	res.Recommendations = buildRecommendations(res)

	sort.Slice(res.Components, func(i, j int) bool {
		return res.Components[i].Weight > res.Components[j].Weight
	})
}
