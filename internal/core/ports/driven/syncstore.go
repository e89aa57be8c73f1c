package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

// SyncRunStore persists the append-only sync run history.
type SyncRunStore interface {
	// CreateRun records a run at start.
	CreateRun(ctx context.Context, run *domain.SyncRun) error

	// FinaliseRun writes the final state of a run.
	// Returns domain.ErrRunFinalised if the run was already finalised.
	FinaliseRun(ctx context.Context, run *domain.SyncRun) error

	// GetRun retrieves a run by ID.
	// Returns domain.ErrNotFound if the run does not exist.
	GetRun(ctx context.Context, id string) (*domain.SyncRun, error)

	// ListRuns returns a course's runs, newest first.
	ListRuns(ctx context.Context, courseID string, limit int) ([]domain.SyncRun, error)

	// FailUnfinished finalises runs left running by a previous process as failed.
	// Returns the number of runs closed.
	FailUnfinished(ctx context.Context, at time.Time, reason string) (int, error)
}
