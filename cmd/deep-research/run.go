// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/deep-research/internal/engine"
	"github.com/pdiddy/deep-research/internal/evaluate"
	"github.com/pdiddy/deep-research/internal/fetch"
	"github.com/pdiddy/deep-research/internal/gather"
	"github.com/pdiddy/deep-research/internal/governor"
	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/plan"
	"github.com/pdiddy/deep-research/internal/report"
	"github.com/pdiddy/deep-research/internal/secrets"
	"github.com/pdiddy/deep-research/internal/store"
	"github.com/pdiddy/deep-research/internal/websearch"
	"github.com/pdiddy/deep-research/pkg/types"
)

const (
	defaultBreadth     = 4
	defaultDepth       = 2
	defaultConcurrency = 2
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a recursive research session",
	Long: `Run executes a full research session: root queries are planned from the
topic, each query is searched, fetched, and summarized into learnings, and
follow-up questions seed the next depth level. After every level the goal
evaluator decides whether to continue. The session ends with a markdown
report written to the output directory.

Interrupting the run with Ctrl-C stops expansion; the report is still
synthesized from whatever was collected.`,
	RunE: runResearch,
}

func init() {
	runCmd.Flags().String("topic", "", "research topic (required)")
	runCmd.Flags().String("goal", "", "research goal (composed from the topic when empty)")
	runCmd.Flags().Int("breadth", defaultBreadth, "maximum sibling queries at the root level")
	runCmd.Flags().Int("depth", defaultDepth, "number of expansion levels")
	runCmd.Flags().Int("concurrency", defaultConcurrency, "ceiling on in-flight external operations")
	runCmd.Flags().String("backend", "", "search backend: duckduckgo or serper")
	runCmd.Flags().String("model", "", "chat model identifier")
	runCmd.Flags().String("base-url", "", "OpenAI-compatible API base URL")
	runCmd.Flags().String("state-dir", "", "checkpoint database directory")
	runCmd.Flags().String("output", "", "report output directory")

	rootCmd.AddCommand(runCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	cfg := buildRunConfig(cmd)
	if err := cfg.Research.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := llm.New(cfg.AI, logger)
	if err != nil {
		return err
	}
	if cfg.Research.Goal == "" {
		cfg.Research.Goal = client.ComposeGoal(ctx, cfg.Research.Topic)
		fmt.Fprintln(os.Stderr, "Composed research goal:")
		fmt.Fprintln(os.Stderr, cfg.Research.Goal)
	}

	gov, err := governor.New(cfg.Research.Concurrency)
	if err != nil {
		return err
	}
	backend, err := websearch.New(cfg.Search)
	if err != nil {
		return err
	}

	state := store.NewState()
	checkpoint, err := store.OpenCheckpoint(cfg.Research.StateDir, cfg.Research.Topic, cfg.Research.Goal)
	if err != nil {
		return err
	}
	defer checkpoint.Close()

	eng := &engine.Engine{
		Planner: plan.New(client, logger),
		Unit: &gather.Unit{
			Provider:     backend,
			Fetcher:      fetch.New(cfg.Fetch),
			Summarizer:   client,
			Gov:          gov,
			Log:          logger,
			MaxResults:   cfg.Search.MaxResults,
			FetchTimeout: cfg.Fetch.Timeout,
			MaxLearnings: cfg.Research.LearningsPerQuery,
			MaxFollowUps: cfg.Research.FollowUpsPerQuery,
		},
		Evaluator:  evaluate.New(client, logger),
		State:      state,
		Checkpoint: checkpoint,
		Gov:        gov,
		Cfg:        cfg.Research,
		Log:        logger,
	}

	outcome, err := eng.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "run finished: %s (epochs: %d, learnings: %d, sources: %d)\n",
		outcome.Reason, outcome.EpochsCompleted, outcome.Learnings, outcome.Sources)

	// Synthesis runs on a fresh context so an interrupted session still
	// yields a report from the collected state.
	stop()
	return synthesize(context.Background(), cfg, cfg.Research.Topic, cfg.Research.Goal, state)
}

// synthesize builds, renders, and writes the final report from accumulated
// state. Shared by the run and report subcommands.
func synthesize(ctx context.Context, cfg types.RunConfig, topic, goal string, state *store.State) error {
	client, err := llm.New(cfg.Report.AIConfig, logger)
	if err != nil {
		return err
	}
	builder := report.New(client, cfg.Report, logger)
	rep, err := builder.Build(ctx, topic, goal, state.Learnings(), state.Sources(), state.History())
	if err != nil {
		return err
	}
	path, err := builder.Write(rep)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "report written:", path)
	return nil
}

// buildRunConfig layers configuration sources: documented defaults, then
// the viper config file, then command-line flags, then API keys resolved
// from flags, environment, and .secrets/.
func buildRunConfig(cmd *cobra.Command) types.RunConfig {
	var cfg types.RunConfig

	cfg.Research.Topic = viper.GetString("research.topic")
	cfg.Research.Goal = viper.GetString("research.goal")
	cfg.Research.Breadth = viper.GetInt("research.breadth")
	cfg.Research.Depth = viper.GetInt("research.depth")
	cfg.Research.Concurrency = viper.GetInt("research.concurrency")
	cfg.Research.BranchDivisor = viper.GetInt("research.branch_divisor")
	cfg.Research.StagnationThreshold = viper.GetInt("research.stagnation_threshold")
	cfg.Research.LearningsPerQuery = viper.GetInt("research.learnings_per_query")
	cfg.Research.FollowUpsPerQuery = viper.GetInt("research.follow_ups_per_query")
	cfg.Research.StateDir = viper.GetString("research.state_dir")
	cfg.Search.Backend = types.SearchBackend(viper.GetString("search.backend"))
	cfg.Search.MaxResults = viper.GetInt("search.max_results")
	cfg.AI.Model = viper.GetString("ai.model")
	cfg.AI.BaseURL = viper.GetString("ai.base_url")
	cfg.Report.Model = viper.GetString("report.model")
	cfg.Report.OutputDir = viper.GetString("report.output_dir")

	if v := flagString(cmd, "topic"); v != "" {
		cfg.Research.Topic = v
	}
	if v := flagString(cmd, "goal"); v != "" {
		cfg.Research.Goal = v
	}
	cfg.Research.Breadth = overlayInt(cmd, "breadth", cfg.Research.Breadth)
	cfg.Research.Depth = overlayInt(cmd, "depth", cfg.Research.Depth)
	cfg.Research.Concurrency = overlayInt(cmd, "concurrency", cfg.Research.Concurrency)
	if v := flagString(cmd, "backend"); v != "" {
		cfg.Search.Backend = types.SearchBackend(v)
	}
	if v := flagString(cmd, "model"); v != "" {
		cfg.AI.Model = v
	}
	if v := flagString(cmd, "base-url"); v != "" {
		cfg.AI.BaseURL = v
	}
	if v := flagString(cmd, "state-dir"); v != "" {
		cfg.Research.StateDir = v
	}
	if v := flagString(cmd, "output"); v != "" {
		cfg.Report.OutputDir = v
	}

	cfg.AI.APIKey = secrets.Resolve(loadedSecrets, cfg.AI.APIKey, "OPENAI_API_KEY", secrets.KeyOpenAI)
	cfg.Search.SerperAPIKey = secrets.Resolve(loadedSecrets, cfg.Search.SerperAPIKey, "SERPER_API_KEY", secrets.KeySerper)

	cfg.Defaults()
	if cfg.Report.APIKey == "" {
		cfg.Report.APIKey = cfg.AI.APIKey
	}
	return cfg
}

// flagString reads a string flag that may not be defined on every command.
func flagString(cmd *cobra.Command, name string) string {
	if cmd.Flags().Lookup(name) == nil {
		return ""
	}
	v, _ := cmd.Flags().GetString(name)
	return v
}

// overlayInt applies an int flag over a config-file value. The flag wins
// when explicitly set or when the config left the value unset; otherwise
// the flag's default only fills a zero value.
func overlayInt(cmd *cobra.Command, name string, current int) int {
	f := cmd.Flags().Lookup(name)
	if f == nil {
		return current
	}
	v, _ := cmd.Flags().GetInt(name)
	if f.Changed || current == 0 {
		return v
	}
	return current
}
