package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/stocktide/stocktide/internal/models"
)

// runTrending ranks the known tickers and prints the result table.
func runTrending(cmd *cobra.Command, _ []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
		a.cfg.Trending.Limit = limit
	}
	windowHours, _ := cmd.Flags().GetInt("window")

	tickers, err := a.repo.Aggregates.ListTickers(ctx)
	if err != nil {
		return fmt.Errorf("list tickers: %w", err)
	}
	aggs := make([]*models.TickerAggregate, 0, len(tickers))
	for _, ticker := range tickers {
		agg, err := a.repo.Aggregates.GetAggregate(ctx, ticker)
		if err != nil {
			return fmt.Errorf("load aggregate %s: %w", ticker, err)
		}
		aggs = append(aggs, agg)
	}

	scores := a.trendingCalculator().Rank(ctx, aggs, a.activeCommunityNames(), time.Duration(windowHours)*time.Hour)
	if len(scores) == 0 {
		fmt.Println("No tickers meet the trending thresholds.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tTICKER\tSCORE\tMENTIONS\tSENTIMENT\tQUALITY\tVALIDATED")
	for _, s := range scores {
		validated := "no"
		if s.IsCrossValidated {
			validated = "yes"
		}
		if s.Degraded {
			validated = "degraded"
		}
		fmt.Fprintf(w, "%d\t%s\t%.1f\t%d\t%+.1f\t%.1f\t%s\n",
			s.Rank, s.Ticker, s.TrendingScore, s.Mentions, s.AvgSentiment, s.AvgQuality, validated)
	}
	return w.Flush()
}
