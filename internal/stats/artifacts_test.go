package stats

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pacbench/internal/model"
)

func sampleReport(runID string) model.RunReport {
	return model.RunReport{
		Config: model.RunConfig{
			RunID:         runID,
			Env:           "paclite",
			Policy:        "greedy",
			Episodes:      2,
			Seed:          42,
			MaxStepsPerEp: 500,
			Parallelism:   1,
			CreatedAtUTC:  "2026-08-25T00:00:00Z",
		},
		Stats: model.RunStats{Episodes: 2, Completed: 2, Successes: 1, SuccessRate: 0.5},
		Results: []model.EpisodeResult{
			{RunID: runID, Index: 0, Seed: 42, Reward: 110.5, Steps: 77, TerminalReason: model.TerminalGoal},
			{RunID: runID, Index: 1, Seed: 43, Reward: -100, Steps: 31, TerminalReason: model.TerminalFailure},
		},
		GeneratedAtUTC: "2026-08-25T00:01:00Z",
	}
}

func TestWriteRunArtifactsLayout(t *testing.T) {
	baseDir := t.TempDir()

	runDir, err := WriteRunArtifacts(baseDir, sampleReport("run-1"))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	if runDir != filepath.Join(baseDir, "run-1") {
		t.Fatalf("unexpected run dir: %s", runDir)
	}

	for _, file := range []string{"config.json", "episodes.csv", "report.json"} {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("missing artifact %s: %v", file, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(runDir, "episodes.csv"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !strings.HasPrefix(string(data), "index,seed,reward,steps,terminal_reason,failed\n") {
		t.Fatalf("unexpected csv header: %q", string(data))
	}
}

func TestEpisodeCSVRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	report := sampleReport("run-1")
	if _, err := WriteRunArtifacts(baseDir, report); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	rows, ok, err := ReadEpisodeCSV(baseDir, "run-1")
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !ok || len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %v %d", ok, len(rows))
	}
	if rows[0].Reward != 110.5 || rows[0].TerminalReason != model.TerminalGoal {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Seed != 43 || rows[1].Failed {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}
}

func TestReadRunReportRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	if _, err := WriteRunArtifacts(baseDir, sampleReport("run-1")); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	report, ok, err := ReadRunReport(baseDir, "run-1")
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !ok {
		t.Fatal("expected a persisted report")
	}
	if report.Stats.SuccessRate != 0.5 || len(report.Results) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}

	_, ok, err = ReadRunReport(baseDir, "no-such-run")
	if err != nil {
		t.Fatalf("read missing report: %v", err)
	}
	if ok {
		t.Fatal("expected missing report to report not found")
	}
}

func TestRunIndexNewestFirstAndUpsert(t *testing.T) {
	baseDir := t.TempDir()

	entries := []RunIndexEntry{
		{RunID: "run-a", Env: "paclite", Policy: "random", CreatedAtUTC: "2026-08-25T00:00:01Z"},
		{RunID: "run-b", Env: "paclite", Policy: "greedy", CreatedAtUTC: "2026-08-25T00:00:02Z"},
		{RunID: "run-c", Env: "paclite", Policy: "mcts", CreatedAtUTC: "2026-08-25T00:00:03Z"},
	}
	for _, entry := range entries {
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(index) != 3 || index[0].RunID != "run-c" || index[2].RunID != "run-a" {
		t.Fatalf("expected newest-first index, got %+v", index)
	}

	updated := entries[1]
	updated.SuccessRate = 0.9
	if err := AppendRunIndex(baseDir, updated); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	index, err = ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index after upsert: %v", err)
	}
	if len(index) != 3 {
		t.Fatalf("upsert must not duplicate entries, got %d", len(index))
	}
	for _, entry := range index {
		if entry.RunID == "run-b" && entry.SuccessRate != 0.9 {
			t.Fatalf("upsert did not replace entry: %+v", entry)
		}
	}
}

func TestExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := t.TempDir()
	if _, err := WriteRunArtifacts(baseDir, sampleReport("run-1")); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	dst, err := ExportRunArtifacts(baseDir, "run-1", outDir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	for _, file := range []string{"config.json", "episodes.csv", "report.json"} {
		if _, err := os.Stat(filepath.Join(dst, file)); err != nil {
			t.Fatalf("missing exported %s: %v", file, err)
		}
	}

	if _, err := ExportRunArtifacts(baseDir, "no-such-run", outDir); err == nil {
		t.Fatal("expected error exporting a missing run")
	}
}
