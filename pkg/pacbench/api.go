// Package pacbench is the embeddable client API. Everything the CLI can do
// goes through a Client, so other programs can drive evaluation runs
// directly.
package pacbench

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"pacbench/internal/env"
	"pacbench/internal/harness"
	"pacbench/internal/model"
	"pacbench/internal/policy"
	"pacbench/internal/stats"
	"pacbench/internal/storage"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "pacbench.db"

	persistRetryDelay = 100 * time.Millisecond
)

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
}

type Client struct {
	store storage.Store

	runsDir    string
	exportsDir string
}

type RunRequest struct {
	Env               string
	Policy            string
	Episodes          int
	Seed              int64
	MaxSteps          int
	Parallelism       int
	TimeoutMS         int64
	SearchBudgetNodes int
	SearchBudgetMS    int64
	WeightsPath       string
}

type RunSummary struct {
	RunID               string
	ArtifactsDir        string
	Stats               model.RunStats
	PersistenceDegraded bool
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Env          string
	Policy       string
	Episodes     int
	Seed         int64
	SuccessRate  float64
	RewardMean   float64
}

type EpisodesRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ReportRequest struct {
	RunID  string
	Latest bool
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		runsDir:    runsDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Envs lists the registered environment names.
func (c *Client) Envs() []string { return env.Names() }

// Policies lists the available policy variants.
func (c *Client) Policies() []string { return policy.Names() }

// Run executes one evaluation batch and persists its records. Storage
// failures do not abort the run: each write is retried once, and if it still
// fails the summary and report carry a degraded flag instead.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Env == "" {
		req.Env = "paclite"
	}
	if req.Policy == "" {
		req.Policy = "random"
	}
	// No default for Episodes: a zero count is a configuration error, not an
	// unset convenience, and must be rejected before any environment exists.
	if req.MaxSteps == 0 {
		req.MaxSteps = 500
	}
	if req.Parallelism == 0 {
		req.Parallelism = 4
	}

	if err := c.store.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	now := time.Now().UTC()
	runID := fmt.Sprintf("%s-%s-%s", req.Env, req.Policy, uuid.NewString()[:8])

	cfg := harness.Config{
		RunID: runID,
		Env:   req.Env,
		Policy: policy.Spec{
			Name:        req.Policy,
			BudgetNodes: req.SearchBudgetNodes,
			BudgetTime:  time.Duration(req.SearchBudgetMS) * time.Millisecond,
			WeightsPath: req.WeightsPath,
		},
		Episodes:    req.Episodes,
		Seed:        req.Seed,
		MaxSteps:    req.MaxSteps,
		Parallelism: req.Parallelism,
		Timeout:     time.Duration(req.TimeoutMS) * time.Millisecond,
	}

	runConfig := model.RunConfig{
		VersionedRecord:  versionedRecord(),
		RunID:            runID,
		Env:              req.Env,
		Policy:           req.Policy,
		Episodes:         req.Episodes,
		Seed:             req.Seed,
		MaxStepsPerEp:    req.MaxSteps,
		Parallelism:      req.Parallelism,
		RunTimeoutMS:     req.TimeoutMS,
		SearchBudgetNode: req.SearchBudgetNodes,
		SearchBudgetMS:   req.SearchBudgetMS,
		WeightsPath:      req.WeightsPath,
		CreatedAtUTC:     now.Format(time.RFC3339Nano),
	}

	var degraded degradedState
	degraded.attempt("save run config", func() error {
		return c.store.SaveRunConfig(ctx, runConfig)
	})

	outcome, err := harness.Run(ctx, cfg, func(result model.EpisodeResult) {
		degraded.attempt("append episode", func() error {
			return c.store.AppendEpisode(ctx, result)
		})
	})
	if err != nil {
		return RunSummary{}, err
	}

	report := model.RunReport{
		VersionedRecord: versionedRecord(),
		Config:          runConfig,
		Stats:           outcome.Stats,
		Results:         outcome.Results,
		GeneratedAtUTC:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	report.PersistenceDegraded = degraded.flagged
	report.PersistenceLastError = degraded.lastError

	degraded.attempt("save run report", func() error {
		report.PersistenceDegraded = degraded.flagged
		report.PersistenceLastError = degraded.lastError
		return c.store.SaveRunReport(ctx, report)
	})

	var runDir string
	degraded.attempt("write run artifacts", func() error {
		dir, err := stats.WriteRunArtifacts(c.runsDir, report)
		if err != nil {
			return err
		}
		runDir = dir
		return nil
	})
	degraded.attempt("append run index", func() error {
		return stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
			RunID:        runID,
			Env:          req.Env,
			Policy:       req.Policy,
			Episodes:     req.Episodes,
			Seed:         req.Seed,
			SuccessRate:  outcome.Stats.SuccessRate,
			RewardMean:   outcome.Stats.RewardMean,
			CreatedAtUTC: now.Format(time.RFC3339Nano),
		})
	})

	summary := RunSummary{
		RunID:               runID,
		Stats:               outcome.Stats,
		PersistenceDegraded: degraded.flagged,
	}
	if runDir != "" {
		summary.ArtifactsDir = filepath.Clean(runDir)
	}
	return summary, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Env:          e.Env,
			Policy:       e.Policy,
			Episodes:     e.Episodes,
			Seed:         e.Seed,
			SuccessRate:  e.SuccessRate,
			RewardMean:   e.RewardMean,
		})
	}
	return out, nil
}

func (c *Client) Episodes(ctx context.Context, req EpisodesRequest) ([]model.EpisodeResult, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}

	// An uninitialized or unreachable store is not fatal for reads; the
	// artifacts directory holds the durable copy.
	episodes, ok, err := c.store.GetEpisodes(ctx, runID)
	if err != nil {
		ok = false
	}
	if !ok {
		report, found, err := stats.ReadRunReport(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("episodes not found for run id: %s", runID)
		}
		episodes = report.Results
	}

	if req.Limit > 0 && len(episodes) > req.Limit {
		episodes = episodes[:req.Limit]
	}
	return episodes, nil
}

func (c *Client) Report(ctx context.Context, req ReportRequest) (model.RunReport, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return model.RunReport{}, err
	}

	report, ok, err := c.store.GetRunReport(ctx, runID)
	if err != nil {
		ok = false
	}
	if ok {
		return report, nil
	}

	report, ok, err = stats.ReadRunReport(c.runsDir, runID)
	if err != nil {
		return model.RunReport{}, err
	}
	if !ok {
		return model.RunReport{}, fmt.Errorf("report not found for run id: %s", runID)
	}
	return report, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

// degradedState tracks whether any persistence write failed after its retry.
type degradedState struct {
	flagged   bool
	lastError string
}

func (d *degradedState) attempt(op string, write func() error) {
	err := write()
	if err == nil {
		return
	}
	time.Sleep(persistRetryDelay)
	if err = write(); err == nil {
		return
	}
	perr := &storage.PersistenceError{Op: op, Err: err}
	d.flagged = true
	d.lastError = perr.Error()
}

func versionedRecord() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: storage.CurrentSchemaVersion,
		CodecVersion:  storage.CurrentCodecVersion,
	}
}
