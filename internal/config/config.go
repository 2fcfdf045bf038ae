// Package config loads and validates the stocktide configuration file.
// All knobs are named, typed fields with documented defaults; merge-by-map
// config is deliberately not supported.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CommunityConfig holds the per-community thresholds used by the quality
// filter and the cycle runner.
type CommunityConfig struct {
	Name             string   `yaml:"name"`
	MinUpvotes       int      `yaml:"min_upvotes"`        // default 5
	MinComments      int      `yaml:"min_comments"`       // default 2
	QualityThreshold float64  `yaml:"quality_threshold"`  // default 40, 0-100
	MaxPostsPerHour  int      `yaml:"max_posts_per_hour"` // community-wide velocity cap, default 50
	ExcludedFlairs   []string `yaml:"excluded_flairs"`
	KeywordFilters   []string `yaml:"keyword_filters"`
	IsActive         bool     `yaml:"is_active"`
}

// SchedulerConfig controls the periodic pipeline cycles.
type SchedulerConfig struct {
	CycleSchedule  string        `yaml:"cycle_schedule"`  // cron expr, default "@every 15m"
	CommunityFanout int          `yaml:"community_fanout"` // parallel communities per wave, default 3
	BatchDelay     time.Duration `yaml:"batch_delay"`     // pause between waves, default 2s
}

// ProviderConfig bounds one external provider.
type ProviderConfig struct {
	Timeout time.Duration `yaml:"timeout"` // per-call timeout, default 10s
	RPS     float64       `yaml:"rps"`     // token bucket refill, default 1
	Burst   int           `yaml:"burst"`   // token bucket size, default 3
	Retries int           `yaml:"retries"` // rate-limit retries per cycle, default 2
}

// ProvidersConfig holds per-channel provider settings.
type ProvidersConfig struct {
	Platform ProviderConfig `yaml:"platform"`
	News     ProviderConfig `yaml:"news"`
	Econ     ProviderConfig `yaml:"econ"`
	Price    ProviderConfig `yaml:"price"`
	Sentiment ProviderConfig `yaml:"sentiment"`
}

// RedisConfig configures the short-TTL confidence result cache.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // confidence result TTL, default 5m
}

// PostgresConfig configures the persistent item/aggregate store.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// TrendingConfig bounds the trending calculator's pre-filter.
type TrendingConfig struct {
	MinMentions int     `yaml:"min_mentions"` // default 3
	MinQuality  float64 `yaml:"min_quality"`  // default 30
	Limit       int     `yaml:"limit"`        // default 20
}

// OpsConfig configures the metrics/health HTTP listener.
type OpsConfig struct {
	Addr string `yaml:"addr"` // default ":9090"
}

// Config is the root configuration document.
type Config struct {
	Communities []CommunityConfig `yaml:"communities"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Redis       RedisConfig       `yaml:"redis"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Trending    TrendingConfig    `yaml:"trending"`
	Ops         OpsConfig         `yaml:"ops"`
	LogLevel    string            `yaml:"log_level"` // default "info"
}

// Default returns the built-in configuration. Every field a loaded file omits
// falls back to these values.
func Default() Config {
	provider := ProviderConfig{
		Timeout: 10 * time.Second,
		RPS:     1.0,
		Burst:   3,
		Retries: 2,
	}
	return Config{
		Scheduler: SchedulerConfig{
			CycleSchedule:   "@every 15m",
			CommunityFanout: 3,
			BatchDelay:      2 * time.Second,
		},
		Providers: ProvidersConfig{
			Platform:  provider,
			News:      provider,
			Econ:      provider,
			Price:     provider,
			Sentiment: provider,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  5 * time.Minute,
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			QueryTimeout:    30 * time.Second,
		},
		Trending: TrendingConfig{
			MinMentions: 3,
			MinQuality:  30,
			Limit:       20,
		},
		Ops:      OpsConfig{Addr: ":9090"},
		LogLevel: "info",
	}
}

// DefaultCommunity returns a community entry with documented default
// thresholds applied.
func DefaultCommunity(name string) CommunityConfig {
	return CommunityConfig{
		Name:             name,
		MinUpvotes:       5,
		MinComments:      2,
		QualityThreshold: 40,
		MaxPostsPerHour:  50,
		IsActive:         true,
	}
}

// Load reads and validates configuration from a YAML file. Missing fields
// inherit defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Scheduler.CycleSchedule == "" {
		c.Scheduler.CycleSchedule = d.Scheduler.CycleSchedule
	}
	if c.Scheduler.CommunityFanout <= 0 {
		c.Scheduler.CommunityFanout = d.Scheduler.CommunityFanout
	}
	if c.Scheduler.BatchDelay <= 0 {
		c.Scheduler.BatchDelay = d.Scheduler.BatchDelay
	}
	for _, p := range []*ProviderConfig{
		&c.Providers.Platform, &c.Providers.News, &c.Providers.Econ,
		&c.Providers.Price, &c.Providers.Sentiment,
	} {
		if p.Timeout <= 0 {
			p.Timeout = d.Providers.Platform.Timeout
		}
		if p.RPS <= 0 {
			p.RPS = d.Providers.Platform.RPS
		}
		if p.Burst <= 0 {
			p.Burst = d.Providers.Platform.Burst
		}
		if p.Retries < 0 {
			p.Retries = d.Providers.Platform.Retries
		}
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = d.Redis.TTL
	}
	if c.Trending.MinMentions <= 0 {
		c.Trending.MinMentions = d.Trending.MinMentions
	}
	if c.Trending.Limit <= 0 {
		c.Trending.Limit = d.Trending.Limit
	}
	if c.Ops.Addr == "" {
		c.Ops.Addr = d.Ops.Addr
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	for i := range c.Communities {
		cc := &c.Communities[i]
		if cc.MinUpvotes == 0 && cc.MinComments == 0 && cc.QualityThreshold == 0 {
			def := DefaultCommunity(cc.Name)
			def.IsActive = cc.IsActive
			def.ExcludedFlairs = cc.ExcludedFlairs
			def.KeywordFilters = cc.KeywordFilters
			*cc = def
		}
		if cc.MaxPostsPerHour <= 0 {
			cc.MaxPostsPerHour = 50
		}
	}
}

// Validate checks load-time invariants. A configuration with no active
// communities is rejected: every pipeline cycle would be a no-op.
func (c *Config) Validate() error {
	if len(c.ActiveCommunities()) == 0 {
		return fmt.Errorf("config: no active communities")
	}
	seen := make(map[string]bool, len(c.Communities))
	for _, cc := range c.Communities {
		if cc.Name == "" {
			return fmt.Errorf("config: community with empty name")
		}
		if seen[cc.Name] {
			return fmt.Errorf("config: duplicate community %q", cc.Name)
		}
		seen[cc.Name] = true
		if cc.QualityThreshold < 0 || cc.QualityThreshold > 100 {
			return fmt.Errorf("config: community %q quality_threshold %v out of [0,100]", cc.Name, cc.QualityThreshold)
		}
		if cc.MinUpvotes < 0 || cc.MinComments < 0 {
			return fmt.Errorf("config: community %q negative minimum thresholds", cc.Name)
		}
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("config: postgres enabled without dsn")
	}
	return nil
}

// ActiveCommunities returns the communities enabled for processing.
func (c *Config) ActiveCommunities() []CommunityConfig {
	out := make([]CommunityConfig, 0, len(c.Communities))
	for _, cc := range c.Communities {
		if cc.IsActive {
			out = append(out, cc)
		}
	}
	return out
}

// Community returns the configuration for a named community.
func (c *Config) Community(name string) (CommunityConfig, bool) {
	for _, cc := range c.Communities {
		if cc.Name == name {
			return cc, true
		}
	}
	return CommunityConfig{}, false
}
