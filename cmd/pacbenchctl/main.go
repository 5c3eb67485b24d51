package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pacbench/internal/env"
	"pacbench/internal/model"
	"pacbench/internal/policy"
	"pacbench/internal/storage"
	"pacbench/pkg/pacbench"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "pacbench.db"
)

type globalFlags struct {
	storeKind string
	dbPath    string
	runsDir   string
}

func main() {
	for _, envFile := range []string{".env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "pacbenchctl",
		Short:         "pacbenchctl evaluates agent policies against game environments and records reproducible episode statistics.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.storeKind, "store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	root.PersistentFlags().StringVar(&flags.dbPath, "db-path", defaultDBPath, "sqlite database path")
	root.PersistentFlags().StringVar(&flags.runsDir, "runs-dir", defaultRunsDir, "run artifacts directory")

	root.AddCommand(
		newInitCommand(flags),
		newResetCommand(flags),
		newRunCommand(flags),
		newRunsCommand(flags),
		newEpisodesCommand(flags),
		newReportCommand(flags),
		newExportCommand(flags),
		newWatchCommand(),
		newEnvsCommand(flags),
		newPoliciesCommand(flags),
	)
	return root
}

func newClient(flags *globalFlags) (*pacbench.Client, error) {
	return pacbench.New(pacbench.Options{
		StoreKind:  flags.storeKind,
		DBPath:     flags.dbPath,
		RunsDir:    flags.runsDir,
		ExportsDir: defaultExportsDir,
	})
}

func newInitCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the store backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(flags)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Init(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("initialized store=%s\n", flags.storeKind)
			return nil
		},
	}
}

func newResetCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the store backend, dropping persisted runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(flags)
			if err != nil {
				return err
			}
			defer client.Close()

			// Init clears every table/map to its empty state.
			if err := client.Init(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("reset store=%s\n", flags.storeKind)
			return nil
		},
	}
}

func newRunCommand(flags *globalFlags) *cobra.Command {
	var req pacbench.RunRequest

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an evaluation batch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(flags)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			fmt.Printf("run completed run_id=%s env=%s policy=%s episodes=%d seed=%d\n",
				summary.RunID, req.Env, req.Policy, summary.Stats.Episodes, req.Seed)
			printStats(summary.Stats)
			if summary.PersistenceDegraded {
				fmt.Println("persistence_degraded=true")
			}
			if summary.ArtifactsDir != "" {
				fmt.Printf("artifacts_dir=%s\n", summary.ArtifactsDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Env, "env", "paclite", "environment name")
	cmd.Flags().StringVar(&req.Policy, "policy", "random", "policy: random|greedy|mcts|neural")
	cmd.Flags().IntVar(&req.Episodes, "episodes", 100, "number of episodes")
	cmd.Flags().Int64Var(&req.Seed, "seed", 0, "base seed; episode i uses seed+i")
	cmd.Flags().IntVar(&req.MaxSteps, "max-steps", 500, "step ceiling per episode")
	cmd.Flags().IntVar(&req.Parallelism, "parallelism", 4, "worker count")
	cmd.Flags().Int64Var(&req.TimeoutMS, "timeout-ms", 0, "run deadline in ms; remaining episodes are skipped")
	cmd.Flags().IntVar(&req.SearchBudgetNodes, "search-budget-nodes", 0, "mcts node budget per decision")
	cmd.Flags().Int64Var(&req.SearchBudgetMS, "search-budget-ms", 0, "mcts wall-clock budget per decision in ms")
	cmd.Flags().StringVar(&req.WeightsPath, "weights", "", "neural policy weights JSON path")
	return cmd
}

func newRunsCommand(flags *globalFlags) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("limit must be > 0")
			}
			client, err := newClient(flags)
			if err != nil {
				return err
			}
			defer client.Close()

			runs, err := client.Runs(cmd.Context(), pacbench.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs found")
				return nil
			}
			if jsonOut {
				return printJSON(runs)
			}
			for _, run := range runs {
				fmt.Printf("run_id=%s created_at=%s env=%s policy=%s episodes=%d seed=%d success_rate=%.4f reward_mean=%.4f\n",
					run.RunID, run.CreatedAtUTC, run.Env, run.Policy, run.Episodes, run.Seed, run.SuccessRate, run.RewardMean)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit runs list as JSON")
	return cmd
}

func newEpisodesCommand(flags *globalFlags) *cobra.Command {
	var req pacbench.EpisodesRequest
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "episodes",
		Short: "Print per-episode results for a run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(flags)
			if err != nil {
				return err
			}
			defer client.Close()

			episodes, err := client.Episodes(cmd.Context(), req)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(episodes)
			}
			for _, ep := range episodes {
				fmt.Printf("index=%d seed=%d reward=%.4f steps=%d terminal_reason=%s failed=%t\n",
					ep.Index, ep.Seed, ep.Reward, ep.Steps, ep.TerminalReason, ep.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.RunID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&req.Latest, "latest", false, "use the most recent run")
	cmd.Flags().IntVar(&req.Limit, "limit", 0, "max episodes to print (<=0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit episodes as JSON")
	return cmd
}

func newReportCommand(flags *globalFlags) *cobra.Command {
	var req pacbench.ReportRequest
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a run's aggregate report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(flags)
			if err != nil {
				return err
			}
			defer client.Close()

			report, err := client.Report(cmd.Context(), req)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(report)
			}

			fmt.Printf("run_id=%s env=%s policy=%s seed=%d created_at=%s\n",
				report.Config.RunID, report.Config.Env, report.Config.Policy, report.Config.Seed, report.Config.CreatedAtUTC)
			printStats(report.Stats)
			if report.PersistenceDegraded {
				fmt.Printf("persistence_degraded=true last_error=%q\n", report.PersistenceLastError)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.RunID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&req.Latest, "latest", false, "use the most recent run")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit report as JSON")
	return cmd
}

func newExportCommand(flags *globalFlags) *cobra.Command {
	var req pacbench.ExportRequest

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a run's artifacts to an output directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(flags)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Export(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Printf("exported run_id=%s dir=%s\n", summary.RunID, summary.Directory)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.RunID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&req.Latest, "latest", false, "export the most recent run")
	cmd.Flags().StringVar(&req.OutDir, "out", "", "output directory (default exports)")
	return cmd
}

func newWatchCommand() *cobra.Command {
	var policyName string
	var seed int64
	var maxSteps int
	var frameDelayMS int64

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Play one rendered episode in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return watchEpisode(cmd.Context(), policyName, seed, maxSteps, time.Duration(frameDelayMS)*time.Millisecond)
		},
	}

	cmd.Flags().StringVar(&policyName, "policy", "greedy", "policy: random|greedy|mcts|neural")
	cmd.Flags().Int64Var(&seed, "seed", 0, "episode seed")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 500, "step ceiling")
	cmd.Flags().Int64Var(&frameDelayMS, "frame-delay-ms", 120, "delay between frames in ms")
	return cmd
}

func watchEpisode(ctx context.Context, policyName string, seed int64, maxSteps int, frameDelay time.Duration) error {
	p, err := policy.New(policy.Spec{Name: policyName})
	if err != nil {
		return err
	}

	game := env.NewPaclite()
	p.Reset(seed)
	obs, err := game.Reset(seed)
	if err != nil {
		return err
	}

	reward := 0.0
	for step := 0; step < maxSteps; step++ {
		fmt.Print("\033[H\033[2J")
		fmt.Print(game.Render())
		fmt.Printf("step=%d reward=%.1f pellets_left=%d\n", obs.Step, reward, obs.PelletsLeft)

		action, err := p.Act(ctx, obs)
		if err != nil {
			return err
		}
		tr, err := game.Step(action)
		if err != nil {
			return err
		}
		reward += tr.Reward
		obs = tr.Next

		if tr.Terminal {
			fmt.Print("\033[H\033[2J")
			fmt.Print(game.Render())
			fmt.Printf("episode over reason=%s reward=%.1f steps=%d\n", tr.Reason, reward, obs.Step)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(frameDelay):
		}
	}
	fmt.Printf("episode truncated reward=%.1f steps=%d\n", reward, maxSteps)
	return nil
}

func newEnvsCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "envs",
		Short: "List registered environments",
		RunE: func(_ *cobra.Command, _ []string) error {
			client, err := newClient(flags)
			if err != nil {
				return err
			}
			defer client.Close()

			for _, name := range client.Envs() {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func newPoliciesCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List available policies",
		RunE: func(_ *cobra.Command, _ []string) error {
			client, err := newClient(flags)
			if err != nil {
				return err
			}
			defer client.Close()

			for _, name := range client.Policies() {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func printStats(stats model.RunStats) {
	fmt.Printf("episodes=%d completed=%d failed=%d skipped=%d success_rate=%.4f\n",
		stats.Episodes, stats.Completed, stats.Failed, stats.Skipped, stats.SuccessRate)
	fmt.Printf("reward mean=%.4f median=%.4f std=%.4f min=%.4f max=%.4f\n",
		stats.RewardMean, stats.RewardMedian, stats.RewardStd, stats.RewardMin, stats.RewardMax)
	fmt.Printf("length mean=%.2f std=%.2f min=%.0f max=%.0f total_steps=%s\n",
		stats.LengthMean, stats.LengthStd, stats.LengthMin, stats.LengthMax,
		humanize.Comma(stats.TotalSteps))
}

func printJSON(value any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
