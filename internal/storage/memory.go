package storage

import (
	"context"
	"sort"
	"sync"

	"pacbench/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	configs     map[string]model.RunConfig
	episodes    map[string][]model.EpisodeResult
	reports     map[string]model.RunReport
	order       []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.configs = make(map[string]model.RunConfig)
	s.episodes = make(map[string][]model.EpisodeResult)
	s.reports = make(map[string]model.RunReport)
	s.order = nil
	return nil
}

func (s *MemoryStore) SaveRunConfig(_ context.Context, config model.RunConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.configs[config.RunID]; !seen {
		s.order = append(s.order, config.RunID)
	}
	s.configs[config.RunID] = config
	return nil
}

func (s *MemoryStore) GetRunConfig(_ context.Context, runID string) (model.RunConfig, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	config, ok := s.configs[runID]
	return config, ok, nil
}

func (s *MemoryStore) AppendEpisode(_ context.Context, result model.EpisodeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.episodes[result.RunID] = append(s.episodes[result.RunID], result)
	return nil
}

func (s *MemoryStore) GetEpisodes(_ context.Context, runID string) ([]model.EpisodeResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	episodes, ok := s.episodes[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.EpisodeResult, len(episodes))
	copy(copied, episodes)
	sort.Slice(copied, func(i, j int) bool { return copied[i].Index < copied[j].Index })
	return copied, true, nil
}

func (s *MemoryStore) SaveRunReport(_ context.Context, report model.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports[report.Config.RunID] = report
	return nil
}

func (s *MemoryStore) GetRunReport(_ context.Context, runID string) (model.RunReport, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[runID]
	return report, ok, nil
}

// ListRunIDs returns run IDs newest-first, by insertion order of their
// configs.
func (s *MemoryStore) ListRunIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		ids = append(ids, s.order[i])
	}
	return ids, nil
}
