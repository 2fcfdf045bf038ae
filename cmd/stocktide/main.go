package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "stocktide"
	version = "v1.2.0"
)

var configPath string

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Social sentiment signal pipeline for stock tickers",
		Version: version,
		Long: `stocktide turns noisy social posts about stock tickers into per-ticker
sentiment signals with defensible confidence scores.

Run 'stocktide run' for the scheduled daemon, 'stocktide cycle' for a single
pipeline pass, or 'stocktide trending' / 'stocktide confidence' to read
current results.`,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override (trace|debug|info|warn|error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduled ingestion daemon",
		Long:  "Start the cron-driven pipeline plus the ops HTTP server, until interrupted",
		RunE:  runDaemon,
	}

	cycleCmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run one pipeline cycle and exit",
		RunE:  runCycle,
	}

	trendingCmd := &cobra.Command{
		Use:   "trending",
		Short: "Print the current trending ticker ranking",
		RunE:  runTrending,
	}
	trendingCmd.Flags().Int("limit", 0, "Maximum tickers to rank (0 = config default)")
	trendingCmd.Flags().Int("window", 24, "Cross-validation lookback window in hours")

	confidenceCmd := &cobra.Command{
		Use:   "confidence <ticker>",
		Short: "Score confidence for one ticker",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfidence,
	}
	confidenceCmd.Flags().Int("window", 24, "Lookback window in hours")
	confidenceCmd.Flags().Bool("no-news", false, "Skip the news enrichment channel")
	confidenceCmd.Flags().Bool("no-econ", false, "Skip the macro enrichment channel")
	confidenceCmd.Flags().Bool("no-historical", false, "Skip the historical accuracy backtest")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve only the ops HTTP endpoints (health, metrics)",
		RunE:  runServe,
	}

	rootCmd.AddCommand(runCmd, cycleCmd, trendingCmd, confidenceCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setLogLevel(cmd *cobra.Command, configured string) {
	level := configured
	if override, _ := cmd.Flags().GetString("log-level"); override != "" {
		level = override
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("unknown log level, using info")
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
