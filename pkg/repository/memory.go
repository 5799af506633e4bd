package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/domain/interfaces"
	"github.com/mortality-lab/kcor/pkg/domain/model"
	"github.com/mortality-lab/kcor/pkg/domain/types"
)

// Memory implements RunRepository interface with in-memory storage
type Memory struct {
	mu   sync.RWMutex
	runs map[types.RunID]*model.RunRecord
}

// NewMemory creates a new memory repository
func NewMemory() *Memory {
	return &Memory{
		runs: make(map[types.RunID]*model.RunRecord),
	}
}

// PutRun saves or replaces a run record
func (m *Memory) PutRun(ctx context.Context, run *model.RunRecord) error {
	if run == nil {
		return goerr.New("run is nil")
	}
	if err := run.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid run ID")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Deep copy to prevent external modifications
	m.runs[run.ID] = run.Copy()
	return nil
}

// GetRun retrieves a run by ID
func (m *Memory) GetRun(ctx context.Context, id types.RunID) (*model.RunRecord, error) {
	if id == "" {
		return nil, goerr.New("run ID is empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	run, exists := m.runs[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrRunNotFound, "failed to get run", goerr.V("id", id))
	}

	// Return a copy to prevent external modification
	return run.Copy(), nil
}

// ListRuns lists runs newest first
func (m *Memory) ListRuns(ctx context.Context, limit int) ([]*model.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]*model.RunRecord, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, run.Copy())
	}
	sortRuns(runs)

	// Apply limit
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Close closes the repository (no-op for memory)
func (m *Memory) Close() error {
	return nil
}

// Count returns the number of stored runs
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

// sortRuns orders runs by start time, newest first, breaking ties by ID
func sortRuns(runs []*model.RunRecord) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID > runs[j].ID
	})
}

var _ interfaces.RunRepository = (*Memory)(nil) // Compile-time interface check
