package pacbench

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pacbench/internal/harness"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:  "memory",
		RunsDir:    filepath.Join(t.TempDir(), "runs"),
		ExportsDir: filepath.Join(t.TempDir(), "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})
	return client
}

func smallRun() RunRequest {
	return RunRequest{
		Env:         "paclite",
		Policy:      "random",
		Episodes:    5,
		Seed:        7,
		MaxSteps:    120,
		Parallelism: 2,
	}
}

func TestClientRunProducesArtifactsAndReport(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	summary, err := client.Run(ctx, smallRun())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected a run id")
	}
	if summary.PersistenceDegraded {
		t.Fatal("healthy run must not be degraded")
	}
	if summary.Stats.Episodes != 5 {
		t.Fatalf("stats cover %d episodes, want 5", summary.Stats.Episodes)
	}

	for _, file := range []string{"config.json", "episodes.csv", "report.json"} {
		if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, file)); err != nil {
			t.Fatalf("missing artifact %s: %v", file, err)
		}
	}

	report, err := client.Report(ctx, ReportRequest{Latest: true})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Config.RunID != summary.RunID || len(report.Results) != 5 {
		t.Fatalf("unexpected report: %+v", report.Config)
	}

	episodes, err := client.Episodes(ctx, EpisodesRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("episodes: %v", err)
	}
	if len(episodes) != 5 {
		t.Fatalf("expected 5 episodes, got %d", len(episodes))
	}
	for i, episode := range episodes {
		if episode.Index != i {
			t.Fatalf("episodes out of order: %+v", episodes)
		}
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID {
		t.Fatalf("unexpected run listing: %+v", runs)
	}

	exported, err := client.Export(ctx, ExportRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exported.Directory, "report.json")); err != nil {
		t.Fatalf("missing exported report: %v", err)
	}
}

func TestClientRunIsReproducibleForFixedSeed(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	first, err := client.Run(ctx, smallRun())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := client.Run(ctx, smallRun())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if first.RunID == second.RunID {
		t.Fatal("each run must get its own id")
	}
	if first.Stats != second.Stats {
		t.Fatalf("same request produced different stats: %+v vs %+v", first.Stats, second.Stats)
	}
}

func TestClientRunRejectsInvalidConfiguration(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	for _, episodes := range []int{0, -1} {
		req := smallRun()
		req.Episodes = episodes
		_, err := client.Run(ctx, req)
		var confErr *harness.ConfigurationError
		if !errors.As(err, &confErr) {
			t.Fatalf("episodes=%d: expected ConfigurationError, got %v", episodes, err)
		}
		if confErr.Field != "episodes" {
			t.Fatalf("episodes=%d: rejected field %q, want episodes", episodes, confErr.Field)
		}
	}

	req := smallRun()
	req.Policy = "oracle"
	if _, err := client.Run(ctx, req); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestClientResolveRunIDRules(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	if _, err := client.Report(ctx, ReportRequest{RunID: "run-1", Latest: true}); err == nil {
		t.Fatal("expected error when both run id and latest are set")
	}
	if _, err := client.Report(ctx, ReportRequest{}); err == nil {
		t.Fatal("expected error when neither run id nor latest is set")
	}
	if _, err := client.Report(ctx, ReportRequest{Latest: true}); err == nil {
		t.Fatal("expected error when no runs exist")
	}
}

func TestClientListsEnvsAndPolicies(t *testing.T) {
	client := newTestClient(t)

	envs := client.Envs()
	if len(envs) == 0 || envs[0] != "paclite" {
		t.Fatalf("unexpected env list: %v", envs)
	}
	policies := client.Policies()
	if len(policies) != 4 {
		t.Fatalf("unexpected policy list: %v", policies)
	}
}
