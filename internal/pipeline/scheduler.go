package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stocktide/stocktide/internal/config"
)

// Scheduler drives periodic pipeline cycles plus the slower maintenance
// passes (recompute, decay refresh). An overlapping trigger is skipped, not
// queued: cycles are idempotent over the item store, so the next one picks
// up whatever the skipped one would have.
type Scheduler struct {
	runner  *Runner
	cron    *cron.Cron
	cfg     config.SchedulerConfig
	running atomic.Bool
	log     zerolog.Logger
}

// Maintenance cadence. Recompute corrects window-count drift; decay refresh
// re-derives stored item decay from age.
const (
	recomputeSchedule = "@hourly"
	decaySchedule     = "@every 6h"
)

// NewScheduler creates a scheduler for the given runner.
func NewScheduler(runner *Runner, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		runner: runner,
		cron:   cron.New(),
		cfg:    cfg,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the jobs and starts the cron loop. The provided context
// bounds every scheduled run.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.CycleSchedule, func() { s.runCycle(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(recomputeSchedule, func() { s.runRecompute(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(decaySchedule, func() { s.runDecayRefresh(ctx) }); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.cfg.CycleSchedule).Msg("scheduler started")
	return nil
}

// Stop halts scheduling and waits for any in-flight job to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow triggers a cycle immediately, outside the schedule. Returns the
// stats from the run, or nil when a cycle is already in flight.
func (s *Scheduler) RunNow(ctx context.Context) (*CycleStats, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn().Msg("cycle already running, manual trigger skipped")
		return nil, nil
	}
	defer s.running.Store(false)
	return s.runner.RunCycle(ctx)
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn().Msg("previous cycle still running, tick skipped")
		return
	}
	defer s.running.Store(false)

	if _, err := s.runner.RunCycle(ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduled cycle failed")
	}
}

func (s *Scheduler) runRecompute(ctx context.Context) {
	res, err := s.runner.Recompute(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("recompute pass failed")
		return
	}
	s.log.Info().
		Int("tickers", res.TickersChecked).
		Int("corrected", res.TickersCorrected).
		Int("errors", len(res.Failed)).
		Msg("recompute pass finished")
}

func (s *Scheduler) runDecayRefresh(ctx context.Context) {
	n, err := s.runner.RefreshDecay(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("decay refresh failed")
		return
	}
	s.log.Info().Int("items", n).Msg("decay refresh finished")
}
