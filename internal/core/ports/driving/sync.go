package driving

import (
	"context"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

// SyncEngine coordinates incremental synchronisation of courses.
type SyncEngine interface {
	// Sync runs one synchronisation of a course. A call for a course that
	// is already syncing joins the in-flight run and returns its result.
	Sync(ctx context.Context, courseID string) (*domain.SyncRun, error)

	// SyncUser refreshes the user's course list and syncs every active course.
	// It always returns a summary; failures are enumerated inside it.
	SyncUser(ctx context.Context, userID string) (*domain.SyncSummary, error)

	// History returns a course's runs, newest first.
	History(ctx context.Context, courseID string, limit int) ([]domain.SyncRun, error)

	// Status returns sync status for a course.
	Status(ctx context.Context, courseID string) (*SyncStatus, error)
}

// SyncStatus represents the current state of a course's synchronisation.
type SyncStatus struct {
	// CourseID identifies the course.
	CourseID string

	// Running indicates if sync is currently in progress.
	Running bool

	// LastRun is the most recent finalised run, if any.
	LastRun *domain.SyncRun
}
