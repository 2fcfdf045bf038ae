package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	opshttp "github.com/stocktide/stocktide/internal/interfaces/http"
	"github.com/stocktide/stocktide/internal/pipeline"
)

// runDaemon starts the scheduled pipeline and the ops server, then blocks
// until SIGINT/SIGTERM.
func runDaemon(cmd *cobra.Command, _ []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := pipeline.NewScheduler(a.runner, a.cfg.Scheduler)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	server := opshttp.NewServer(a.cfg.Ops.Addr, a.metrics, a.healthCheckers()...)
	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	// First cycle immediately so the daemon is useful before the first tick.
	go func() {
		if _, err := sched.RunNow(ctx); err != nil {
			log.Error().Err(err).Msg("initial cycle failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("ops server failed")
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("ops server shutdown failed")
	}
	return nil
}
