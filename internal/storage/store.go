package storage

import (
	"context"
	"fmt"

	"pacbench/internal/model"
)

// Store defines transaction-like persistence operations for run records.
type Store interface {
	Init(ctx context.Context) error
	SaveRunConfig(ctx context.Context, config model.RunConfig) error
	GetRunConfig(ctx context.Context, runID string) (model.RunConfig, bool, error)
	AppendEpisode(ctx context.Context, result model.EpisodeResult) error
	GetEpisodes(ctx context.Context, runID string) ([]model.EpisodeResult, bool, error)
	SaveRunReport(ctx context.Context, report model.RunReport) error
	GetRunReport(ctx context.Context, runID string) (model.RunReport, bool, error)
	ListRunIDs(ctx context.Context) ([]string, error)
}

// PersistenceError wraps a storage failure that survived its retry. The run
// itself continues; the final report carries a degraded flag instead.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
