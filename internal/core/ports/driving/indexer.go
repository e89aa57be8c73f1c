package driving

import (
	"context"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

// Indexer turns dirty content units into index chunks.
type Indexer interface {
	// IndexCourse processes every dirty unit of a course.
	// Units that fail stay dirty; their errors are returned alongside the stats.
	IndexCourse(ctx context.Context, courseID string) (domain.IndexStats, []domain.RunError, error)

	// IndexUnit regenerates or removes the chunks of one unit.
	IndexUnit(ctx context.Context, unit domain.ContentUnit) (int, error)
}
