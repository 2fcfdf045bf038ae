package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stocktide/stocktide/internal/cache"
	"github.com/stocktide/stocktide/internal/config"
	"github.com/stocktide/stocktide/internal/confidence"
	"github.com/stocktide/stocktide/internal/crossval"
	opshttp "github.com/stocktide/stocktide/internal/interfaces/http"
	"github.com/stocktide/stocktide/internal/persistence"
	"github.com/stocktide/stocktide/internal/persistence/postgres"
	"github.com/stocktide/stocktide/internal/pipeline"
	"github.com/stocktide/stocktide/internal/providers"
	"github.com/stocktide/stocktide/internal/trending"
)

// app holds the wired object graph shared by all subcommands.
type app struct {
	cfg       config.Config
	repo      *persistence.Repository
	pg        *postgres.Manager
	redis     *cache.RedisConfidenceCache
	memory    *cache.MemoryConfidenceCache
	confCache confidence.ResultCache
	set       providers.Set
	guards    *providers.Guards
	metrics   *opshttp.MetricsRegistry
	runner    *pipeline.Runner
}

// confidenceCacheEntries bounds the in-process fallback confidence cache.
const confidenceCacheEntries = 512

// buildApp loads configuration and wires storage, providers and the runner.
// Without a config file it runs on built-in defaults with a starter
// community set, in-memory persistence and no Redis.
func buildApp(cmd *cobra.Command) (*app, error) {
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
		cfg.Communities = []config.CommunityConfig{
			config.DefaultCommunity("stocks"),
			config.DefaultCommunity("investing"),
			config.DefaultCommunity("wallstreetbets"),
		}
	}
	setLogLevel(cmd, cfg.LogLevel)

	a := &app{cfg: cfg}

	pg, err := postgres.NewManager(cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.pg = pg
	if pg.IsEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		a.repo = pg.Repository()
		log.Info().Msg("postgres persistence enabled")
	} else {
		a.repo = persistence.NewMemoryRepository()
		log.Info().Msg("postgres disabled, using in-memory persistence")
	}

	a.metrics = opshttp.NewMetricsRegistry()

	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		rc, err := cache.NewRedisConfidenceCache(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.redis = rc
		a.confCache = cache.Instrument(rc, rc.Name(), a.metrics)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis confidence cache enabled")
	} else {
		a.memory = cache.NewMemoryConfidenceCache(confidenceCacheEntries, cfg.Redis.TTL)
		a.confCache = cache.Instrument(a.memory, a.memory.Name(), a.metrics)
		log.Info().Msg("redis disabled, using in-process confidence cache")
	}

	// Platform, news, macro and price client protocols are deployment
	// specific and out of scope here; the in-tree stand-ins keep the full
	// pipeline runnable end to end.
	a.set = providers.Set{
		Fetcher:   providers.NewFakeFetcher(),
		Searcher:  providers.NewFakeSearcher(),
		News:      providers.NewFakeNews(),
		Econ:      providers.NewFakeEcon(),
		Price:     providers.NewFakePrice(),
		Sentiment: providers.NewLexiconSentiment(),
	}
	a.guards = providers.NewGuards(cfg.Providers)
	a.runner = pipeline.NewRunner(cfg, a.repo, a.set, a.guards).WithMetrics(a.metrics)

	return a, nil
}

// trendingCalculator builds the ranking path of the graph.
func (a *app) trendingCalculator() *trending.Calculator {
	cv := crossval.New(a.set.Searcher, a.guards.Platform)
	return trending.New(cv, a.cfg.Trending)
}

// confidenceScorer builds the confidence path of the graph.
func (a *app) confidenceScorer() *confidence.Scorer {
	cv := crossval.New(a.set.Searcher, a.guards.Platform)
	return confidence.NewScorer(a.repo, cv, a.set, a.guards).WithCache(a.confCache)
}

// activeCommunityNames returns the names of the enabled communities.
func (a *app) activeCommunityNames() []string {
	active := a.cfg.ActiveCommunities()
	names := make([]string, len(active))
	for i, cc := range active {
		names[i] = cc.Name
	}
	return names
}

// pgHealth adapts the postgres manager to the ops health checker.
type pgHealth struct{ pg *postgres.Manager }

func (p pgHealth) Name() string                   { return "postgres" }
func (p pgHealth) Ping(ctx context.Context) error { return p.pg.Ping(ctx) }

// healthCheckers lists the dependencies the /health endpoint probes.
func (a *app) healthCheckers() []opshttp.HealthChecker {
	var checkers []opshttp.HealthChecker
	if a.pg.IsEnabled() {
		checkers = append(checkers, pgHealth{pg: a.pg})
	}
	if a.redis != nil {
		checkers = append(checkers, a.redis)
	}
	return checkers
}

// Close releases storage connections.
func (a *app) Close() {
	if a.memory != nil {
		a.memory.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close failed")
		}
	}
	if a.pg != nil {
		if err := a.pg.Close(); err != nil {
			log.Warn().Err(err).Msg("postgres close failed")
		}
	}
}
