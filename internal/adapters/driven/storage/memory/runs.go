package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

type syncRunStore struct {
	*Store
}

var _ driven.SyncRunStore = (*syncRunStore)(nil)

// CreateRun records a run at start.
func (s *syncRunStore) CreateRun(_ context.Context, run *domain.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("%w: run %s already exists", domain.ErrInvalidInput, run.ID)
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

// FinaliseRun writes the final state of a run still marked running.
func (s *syncRunStore) FinaliseRun(_ context.Context, run *domain.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.runs[run.ID]
	if !ok {
		return fmt.Errorf("getting run: %w", domain.ErrNotFound)
	}
	if existing.Status != domain.RunRunning {
		return domain.ErrRunFinalised
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

// GetRun retrieves a run by ID.
func (s *syncRunStore) GetRun(_ context.Context, id string) (*domain.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneRun(&run)
	return &out, nil
}

// ListRuns returns a course's runs, newest first.
func (s *syncRunStore) ListRuns(_ context.Context, courseID string, limit int) ([]domain.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SyncRun
	for _, run := range s.runs {
		if run.CourseID == courseID {
			out = append(out, cloneRun(&run))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FailUnfinished marks every running run as failed with reason.
func (s *syncRunStore) FailUnfinished(_ context.Context, at time.Time, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, run := range s.runs {
		if run.Status != domain.RunRunning {
			continue
		}
		run.Status = domain.RunFailed
		run.FinishedAt = at
		run.Errors = []domain.RunError{{Code: domain.CodeInternal, Message: reason}}
		s.runs[id] = run
		n++
	}
	return n, nil
}

// cloneRun deep-copies the counters so callers cannot mutate stored runs.
func cloneRun(run *domain.SyncRun) domain.SyncRun {
	out := *run
	out.Counts = make(map[domain.ContentKind]*domain.KindCounts, len(run.Counts))
	for k, c := range run.Counts {
		cc := *c
		out.Counts[k] = &cc
	}
	if run.Errors != nil {
		out.Errors = append([]domain.RunError(nil), run.Errors...)
	}
	return out
}
