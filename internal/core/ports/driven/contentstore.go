package driven

import (
	"context"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

// ContentStore persists content units and submissions.
type ContentStore interface {
	// GetUnits returns the stored units of a kind keyed by external ID.
	// Missing IDs are absent from the map.
	GetUnits(ctx context.Context, courseID string, kind domain.ContentKind, externalIDs []string) (map[string]domain.ContentUnit, error)

	// ListLiveExternalIDs returns the external IDs of non-deleted units of a kind.
	ListLiveExternalIDs(ctx context.Context, courseID string, kind domain.ContentKind) ([]string, error)

	// GetSubmissions returns stored submissions keyed by external ID.
	GetSubmissions(ctx context.Context, courseID string, externalIDs []string) (map[string]domain.Submission, error)

	// ListSubmissions returns all stored submissions for a course.
	ListSubmissions(ctx context.Context, courseID string) ([]domain.Submission, error)

	// CommitPage writes a page's units and submissions and advances the
	// kind's cursor in one transaction.
	CommitPage(ctx context.Context, commit domain.PageCommit) error

	// GetUnit retrieves a unit by ID.
	// Returns domain.ErrNotFound if the unit does not exist.
	GetUnit(ctx context.Context, id string) (*domain.ContentUnit, error)

	// ListUnits returns all units of a course, including deleted ones.
	ListUnits(ctx context.Context, courseID string) ([]domain.ContentUnit, error)

	// ListDirty returns the dirty units of a course.
	ListDirty(ctx context.Context, courseID string) ([]domain.ContentUnit, error)

	// MarkIndexed clears the dirty flag if the unit still has contentHash
	// and deletion state. A unit re-dirtied by a newer sync keeps its flag.
	MarkIndexed(ctx context.Context, unitID, contentHash string, deleted bool) error
}
