// Package harness schedules a batch of episodes across a worker pool and
// aggregates their results. Episode seeds are fixed up front from the base
// seed, so the per-episode outcome stream is identical at any parallelism.
package harness

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pacbench/internal/env"
	"pacbench/internal/metrics"
	"pacbench/internal/model"
	"pacbench/internal/policy"
	"pacbench/internal/runner"
	"pacbench/internal/storage"
)

// ConfigurationError reports an invalid run configuration. It is raised
// before any environment is constructed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// Config is the full description of one evaluation run.
type Config struct {
	RunID       string
	Env         string
	Policy      policy.Spec
	Episodes    int
	Seed        int64
	MaxSteps    int
	Parallelism int
	Timeout     time.Duration

	// NewPolicy overrides the policy registry; used by tests to inject
	// scripted policies.
	NewPolicy func() (runner.Policy, error)
}

// Outcome is everything a run produced: the results in episode-index order
// and the merged statistics.
type Outcome struct {
	Results []model.EpisodeResult
	Stats   model.RunStats
}

// SeedFor derives the seed of episode i from the run's base seed. The
// mapping depends only on the base seed and the index, never on scheduling.
func SeedFor(base int64, i int) int64 {
	return base + int64(i)
}

func (c Config) validate() error {
	if c.Env == "" {
		return &ConfigurationError{Field: "env", Reason: "is required"}
	}
	if _, err := env.Lookup(c.Env); err != nil {
		return &ConfigurationError{Field: "env", Reason: err.Error()}
	}
	if c.NewPolicy == nil {
		if _, err := policy.New(c.Policy); err != nil {
			return &ConfigurationError{Field: "policy", Reason: err.Error()}
		}
	}
	if c.Episodes <= 0 {
		return &ConfigurationError{Field: "episodes", Reason: "must be positive"}
	}
	if c.MaxSteps <= 0 {
		return &ConfigurationError{Field: "max_steps", Reason: "must be positive"}
	}
	if c.Parallelism < 1 {
		return &ConfigurationError{Field: "parallelism", Reason: "must be at least 1"}
	}
	return nil
}

func (c Config) newPolicy() (runner.Policy, error) {
	if c.NewPolicy != nil {
		return c.NewPolicy()
	}
	return policy.New(c.Policy)
}

// Run executes the configured batch. OnEpisode, when non-nil, is invoked
// from a single goroutine as each episode finishes, in completion order.
// A run-level timeout does not fail the run: episodes that never ran are
// recorded as skipped.
func Run(ctx context.Context, cfg Config, onEpisode func(model.EpisodeResult)) (*Outcome, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	factory, err := env.Lookup(cfg.Env)
	if err != nil {
		return nil, &ConfigurationError{Field: "env", Reason: err.Error()}
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	type job struct {
		idx  int
		seed int64
	}
	type result struct {
		idx int
		res model.EpisodeResult
	}

	jobs := make(chan job)
	results := make(chan result, cfg.Episodes)

	workerCount := cfg.Parallelism
	if workerCount > cfg.Episodes {
		workerCount = cfg.Episodes
	}

	recorders := make([]*metrics.Recorder, workerCount)
	policyErrs := make([]error, workerCount)

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		recorders[w] = metrics.NewRecorder()
		go func(w int) {
			defer wg.Done()

			p, err := cfg.newPolicy()
			if err != nil {
				policyErrs[w] = err
				for j := range jobs {
					results <- result{idx: j.idx, res: skippedResult(cfg, j.idx, j.seed)}
				}
				return
			}

			for j := range jobs {
				res, err := runner.RunEpisode(ctx, factory, p, runner.EpisodeSpec{
					RunID:    cfg.RunID,
					Index:    j.idx,
					Seed:     j.seed,
					MaxSteps: cfg.MaxSteps,
				})
				if err != nil {
					// Deadline or cancellation: the episode never finished.
					res = skippedResult(cfg, j.idx, j.seed)
				}
				recorders[w].Observe(res)
				results <- result{idx: j.idx, res: res}
			}
		}(w)
	}

	go func() {
		for i := 0; i < cfg.Episodes; i++ {
			jobs <- job{idx: i, seed: SeedFor(cfg.Seed, i)}
		}
		close(jobs)
	}()

	ordered := make([]model.EpisodeResult, cfg.Episodes)
	for i := 0; i < cfg.Episodes; i++ {
		r := <-results
		ordered[r.idx] = r.res
		if onEpisode != nil {
			onEpisode(r.res)
		}
	}
	wg.Wait()
	close(results)

	for _, err := range policyErrs {
		if err != nil {
			return nil, &ConfigurationError{Field: "policy", Reason: err.Error()}
		}
	}

	merged := metrics.NewRecorder()
	for _, r := range recorders {
		merged.Merge(r)
	}

	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })
	return &Outcome{Results: ordered, Stats: merged.Stats()}, nil
}

func skippedResult(cfg Config, idx int, seed int64) model.EpisodeResult {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return model.EpisodeResult{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		RunID:          cfg.RunID,
		Index:          idx,
		Seed:           seed,
		Policy:         cfg.Policy.Name,
		TerminalReason: model.TerminalSkipped,
		StartedAtUTC:   now,
		FinishedAtUTC:  now,
	}
}
