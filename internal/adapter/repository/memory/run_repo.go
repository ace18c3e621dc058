package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/simaogato/tokendrop-backend/internal/domain"
)

// runRepository implements domain.RunRepository
type runRepository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]domain.BatchRun
}

// NewRunRepository creates a new run repository
func NewRunRepository() domain.RunRepository {
	return &runRepository{runs: make(map[uuid.UUID]domain.BatchRun)}
}

// Save creates or replaces the snapshot of a run
// A terminal snapshot is never replaced by a non-terminal one.
func (r *runRepository) Save(ctx context.Context, run domain.BatchRun) error {
	if run.ID == uuid.Nil {
		return fmt.Errorf("failed to save run: missing ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.runs[run.ID]; ok && existing.IsTerminal() && !run.IsTerminal() {
		return nil
	}
	r.runs[run.ID] = run.Clone()
	return nil
}

// GetByID retrieves the latest snapshot of a run
func (r *runRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.BatchRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrRunNotFound)
	}
	out := run.Clone()
	return &out, nil
}

// List retrieves all known runs, newest first
func (r *runRepository) List(ctx context.Context) ([]domain.BatchRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]domain.BatchRun, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run.Clone())
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID.String() < runs[j].ID.String()
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}
