package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// runCycle executes one pipeline cycle and prints its stats as JSON.
func runCycle(cmd *cobra.Command, _ []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.runner.RunCycle(context.Background())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		return fmt.Errorf("encode cycle stats: %w", err)
	}
	if len(stats.Failed) > 0 {
		return fmt.Errorf("cycle completed with %d failed communities", len(stats.Failed))
	}
	return nil
}
