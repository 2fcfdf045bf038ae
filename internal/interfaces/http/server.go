// Package http serves the operational HTTP surface: health checks and
// Prometheus metrics. The signal API itself is out of scope; consumers read
// results through the CLI or their own integration.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// HealthChecker reports liveness of one dependency.
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

// Server is the ops HTTP server.
type Server struct {
	addr     string
	metrics  *MetricsRegistry
	checkers []HealthChecker
	srv      *http.Server
	log      zerolog.Logger
}

// NewServer builds the ops server with routing for /health and /metrics.
func NewServer(addr string, metrics *MetricsRegistry, checkers ...HealthChecker) *Server {
	s := &Server{
		addr:     addr,
		metrics:  metrics,
		checkers: checkers,
		log:      log.With().Str("component", "ops_http").Logger(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})).Methods("GET")

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.addr).Msg("ops server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:     "ok",
		Components: make(map[string]string, len(s.checkers)),
		Timestamp:  time.Now().UTC(),
	}
	status := http.StatusOK
	for _, c := range s.checkers {
		if err := c.Ping(ctx); err != nil {
			resp.Components[c.Name()] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[c.Name()] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn().Err(err).Msg("failed to write health response")
	}
}
