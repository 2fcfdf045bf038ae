package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stocktide.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
communities:
  - name: stocks
    is_active: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "@every 15m", cfg.Scheduler.CycleSchedule)
	assert.Equal(t, 3, cfg.Scheduler.CommunityFanout)
	assert.Equal(t, 2*time.Second, cfg.Scheduler.BatchDelay)
	assert.Equal(t, 10*time.Second, cfg.Providers.News.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, 20, cfg.Trending.Limit)
	assert.Equal(t, ":9090", cfg.Ops.Addr)
	assert.Equal(t, "info", cfg.LogLevel)

	require.Len(t, cfg.Communities, 1)
	cc := cfg.Communities[0]
	assert.Equal(t, 5, cc.MinUpvotes)
	assert.Equal(t, 2, cc.MinComments)
	assert.Equal(t, 40.0, cc.QualityThreshold)
	assert.Equal(t, 50, cc.MaxPostsPerHour)
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
scheduler:
  cycle_schedule: "@every 5m"
  community_fanout: 6
communities:
  - name: wallstreetbets
    min_upvotes: 50
    min_comments: 10
    quality_threshold: 60
    max_posts_per_hour: 200
    excluded_flairs: [Meme, Shitpost]
    keyword_filters: ["guaranteed returns"]
    is_active: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "@every 5m", cfg.Scheduler.CycleSchedule)
	assert.Equal(t, 6, cfg.Scheduler.CommunityFanout)

	cc := cfg.Communities[0]
	assert.Equal(t, 50, cc.MinUpvotes)
	assert.Equal(t, 60.0, cc.QualityThreshold)
	assert.Equal(t, []string{"Meme", "Shitpost"}, cc.ExcludedFlairs)
}

func TestValidate_NoActiveCommunitiesIsFatal(t *testing.T) {
	path := writeConfig(t, `
communities:
  - name: stocks
    is_active: false
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active communities")
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "duplicate_community",
			yaml: `
communities:
  - name: stocks
    is_active: true
  - name: stocks
    is_active: true
`,
			want: "duplicate community",
		},
		{
			name: "quality_threshold_out_of_range",
			yaml: `
communities:
  - name: stocks
    min_upvotes: 5
    min_comments: 2
    quality_threshold: 150
    is_active: true
`,
			want: "quality_threshold",
		},
		{
			name: "postgres_enabled_without_dsn",
			yaml: `
postgres:
  enabled: true
communities:
  - name: stocks
    is_active: true
`,
			want: "postgres enabled without dsn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestActiveCommunities(t *testing.T) {
	cfg := Default()
	cfg.Communities = []CommunityConfig{
		DefaultCommunity("stocks"),
		{Name: "dormant", IsActive: false},
		DefaultCommunity("investing"),
	}

	active := cfg.ActiveCommunities()
	require.Len(t, active, 2)
	assert.Equal(t, "stocks", active[0].Name)
	assert.Equal(t, "investing", active[1].Name)
}

func TestCommunityLookup(t *testing.T) {
	cfg := Default()
	cfg.Communities = []CommunityConfig{DefaultCommunity("stocks")}

	cc, ok := cfg.Community("stocks")
	require.True(t, ok)
	assert.Equal(t, "stocks", cc.Name)

	_, ok = cfg.Community("missing")
	assert.False(t, ok)
}
