package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"pulsenet/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	histories   map[string]model.EpochHistory
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.histories = make(map[string]model.EpochHistory)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return err
	}
	run.FinalCounts = append([]int(nil), run.FinalCounts...)
	run.FinalEstimates = append([]float64(nil), run.FinalEstimates...)
	run.Probabilities = append([]float64(nil), run.Probabilities...)
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortNewestFirst(runs)
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *MemoryStore) SaveEpochHistory(_ context.Context, history model.EpochHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	if err := checkVersion(history.VersionedRecord); err != nil {
		return err
	}
	history.Records = append([]model.EpochRecord(nil), history.Records...)
	s.histories[history.RunID] = history
	return nil
}

func (s *MemoryStore) GetEpochHistory(_ context.Context, runID string) (model.EpochHistory, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.histories[runID]
	return history, ok, nil
}

func sortNewestFirst(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID < runs[j].ID
	})
}
