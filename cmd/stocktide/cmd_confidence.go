package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stocktide/stocktide/internal/confidence"
)

// runConfidence scores one ticker and prints the full verdict as JSON.
func runConfidence(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ticker := strings.ToUpper(args[0])

	opts := confidence.DefaultOptions()
	if hours, _ := cmd.Flags().GetInt("window"); hours > 0 {
		opts.Window = time.Duration(hours) * time.Hour
	}
	if skip, _ := cmd.Flags().GetBool("no-news"); skip {
		opts.IncludeNews = false
	}
	if skip, _ := cmd.Flags().GetBool("no-econ"); skip {
		opts.IncludeEcon = false
	}
	if skip, _ := cmd.Flags().GetBool("no-historical"); skip {
		opts.IncludeHistorical = false
	}

	res, err := a.confidenceScorer().Score(context.Background(), ticker, a.activeCommunityNames(), opts)
	if err != nil {
		return fmt.Errorf("score %s: %w", ticker, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
