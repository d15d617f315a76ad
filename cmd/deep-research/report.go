// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-research/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Re-synthesize the report from the latest checkpoint",
	Long: `Report loads the most recent run's checkpoint from the state directory and
synthesizes a fresh report from its learnings and sources. Useful after an
interrupted run, or to regenerate a report with a different model.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("model", "", "chat model identifier")
	reportCmd.Flags().String("base-url", "", "OpenAI-compatible API base URL")
	reportCmd.Flags().String("state-dir", "", "checkpoint database directory")
	reportCmd.Flags().String("output", "", "report output directory")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg := buildRunConfig(cmd)

	checkpoint, err := store.OpenLatest(cfg.Research.StateDir)
	if err != nil {
		return err
	}
	defer checkpoint.Close()

	ctx := context.Background()
	state, topic, goal, err := checkpoint.Load(ctx)
	if err != nil {
		return err
	}
	return synthesize(ctx, cfg, topic, goal, state)
}
