package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// MetricsRegistry holds all Prometheus metrics for stocktide.
type MetricsRegistry struct {
	// Cycle metrics
	CycleDuration *prometheus.HistogramVec
	ActiveCycles  prometheus.Gauge
	TotalCycles   prometheus.Counter

	// Item flow metrics
	ItemsAccepted *prometheus.CounterVec
	ItemsRejected *prometheus.CounterVec

	// Provider metrics
	ProviderErrors *prometheus.CounterVec

	// Cache performance metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetricsRegistry creates a metrics registry on its own Prometheus
// registry so tests can instantiate it without global collisions.
func NewMetricsRegistry() *MetricsRegistry {
	m := &MetricsRegistry{
		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stocktide_cycle_duration_seconds",
				Help:    "Duration of pipeline cycles in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"result"},
		),
		ActiveCycles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stocktide_active_cycles",
				Help: "Number of currently running pipeline cycles",
			},
		),
		TotalCycles: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stocktide_cycles_total",
				Help: "Total number of pipeline cycles started",
			},
		),
		ItemsAccepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocktide_items_accepted_total",
				Help: "Posts accepted by the quality filter, by community",
			},
			[]string{"community"},
		),
		ItemsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocktide_items_rejected_total",
				Help: "Posts rejected by the quality filter, by community and reason",
			},
			[]string{"community", "reason"},
		),
		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocktide_provider_errors_total",
				Help: "External provider failures by provider and error class",
			},
			[]string{"provider", "error_type"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocktide_cache_hits_total",
				Help: "Cache hits by cache type",
			},
			[]string{"cache_type"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocktide_cache_misses_total",
				Help: "Cache misses by cache type",
			},
			[]string{"cache_type"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.CycleDuration,
		m.ActiveCycles,
		m.TotalCycles,
		m.ItemsAccepted,
		m.ItemsRejected,
		m.ProviderErrors,
		m.CacheHits,
		m.CacheMisses,
	)

	return m
}

// Registry exposes the underlying Prometheus registry for the /metrics
// handler.
func (m *MetricsRegistry) Registry() *prometheus.Registry {
	return m.registry
}

// CycleTimer tracks one pipeline cycle's duration.
type CycleTimer struct {
	metrics *MetricsRegistry
	start   time.Time
}

// StartCycle marks a cycle as running and begins timing it.
func (m *MetricsRegistry) StartCycle() *CycleTimer {
	m.ActiveCycles.Inc()
	m.TotalCycles.Inc()
	return &CycleTimer{metrics: m, start: time.Now()}
}

// Stop completes the cycle timing and records the metric.
func (t *CycleTimer) Stop(result string) {
	duration := time.Since(t.start)
	t.metrics.ActiveCycles.Dec()
	t.metrics.CycleDuration.WithLabelValues(result).Observe(duration.Seconds())

	log.Debug().
		Str("result", result).
		Dur("duration", duration).
		Msg("Pipeline cycle completed")
}

// RecordAccepted records an accepted post for a community.
func (m *MetricsRegistry) RecordAccepted(community string) {
	m.ItemsAccepted.WithLabelValues(community).Inc()
}

// RecordRejected records a rejected post with its first reject reason.
func (m *MetricsRegistry) RecordRejected(community, reason string) {
	m.ItemsRejected.WithLabelValues(community, reason).Inc()
}

// RecordProviderError records an external provider failure.
func (m *MetricsRegistry) RecordProviderError(provider, errorType string) {
	m.ProviderErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordCacheHit records a cache hit for the specified cache type.
func (m *MetricsRegistry) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss for the specified cache type.
func (m *MetricsRegistry) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}
