package storage

import (
	"context"
	"testing"

	"pacbench/internal/model"
)

func versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func TestMemoryStoreRunConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := model.RunConfig{
		VersionedRecord: versioned(),
		RunID:           "run-1",
		Env:             "paclite",
		Policy:          "greedy",
		Episodes:        10,
		Seed:            42,
		MaxStepsPerEp:   500,
		Parallelism:     4,
		CreatedAtUTC:    "2026-08-25T00:00:00Z",
	}
	if err := store.SaveRunConfig(ctx, input); err != nil {
		t.Fatalf("save config: %v", err)
	}

	output, ok, err := store.GetRunConfig(ctx, "run-1")
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted run config")
	}
	if output.Policy != "greedy" || output.Seed != 42 {
		t.Fatalf("unexpected config: %+v", output)
	}

	_, ok, err = store.GetRunConfig(ctx, "no-such-run")
	if err != nil {
		t.Fatalf("get missing config: %v", err)
	}
	if ok {
		t.Fatal("expected missing run to report not found")
	}
}

func TestMemoryStoreEpisodesSortedByIndex(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, index := range []int{2, 0, 1} {
		result := model.EpisodeResult{
			VersionedRecord: versioned(),
			RunID:           "run-1",
			Index:           index,
			Seed:            int64(42 + index),
			TerminalReason:  model.TerminalGoal,
		}
		if err := store.AppendEpisode(ctx, result); err != nil {
			t.Fatalf("append episode %d: %v", index, err)
		}
	}

	episodes, ok, err := store.GetEpisodes(ctx, "run-1")
	if err != nil {
		t.Fatalf("get episodes: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted episodes")
	}
	if len(episodes) != 3 {
		t.Fatalf("expected 3 episodes, got %d", len(episodes))
	}
	for i, episode := range episodes {
		if episode.Index != i {
			t.Fatalf("episodes out of order: %+v", episodes)
		}
	}
}

func TestMemoryStoreRunReportRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	report := model.RunReport{
		VersionedRecord: versioned(),
		Config:          model.RunConfig{VersionedRecord: versioned(), RunID: "run-1"},
		Stats:           model.RunStats{Episodes: 5, Successes: 2},
	}
	if err := store.SaveRunReport(ctx, report); err != nil {
		t.Fatalf("save report: %v", err)
	}

	output, ok, err := store.GetRunReport(ctx, "run-1")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted report")
	}
	if output.Stats.Successes != 2 {
		t.Fatalf("unexpected report: %+v", output)
	}
}

func TestMemoryStoreListRunIDsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, id := range []string{"run-a", "run-b", "run-c"} {
		config := model.RunConfig{VersionedRecord: versioned(), RunID: id}
		if err := store.SaveRunConfig(ctx, config); err != nil {
			t.Fatalf("save config %s: %v", id, err)
		}
	}

	ids, err := store.ListRunIDs(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(ids) != 3 || ids[0] != "run-c" || ids[2] != "run-a" {
		t.Fatalf("expected newest-first order, got %v", ids)
	}
}
