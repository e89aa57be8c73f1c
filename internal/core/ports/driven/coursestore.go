package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

// CourseStore persists courses, memberships and per-kind sync cursors.
type CourseStore interface {
	// SaveCourse creates or updates course metadata. Cursors are left untouched.
	SaveCourse(ctx context.Context, course domain.Course) error

	// GetCourse retrieves a course by ID.
	// Returns domain.ErrNotFound if the course does not exist.
	GetCourse(ctx context.Context, id string) (*domain.Course, error)

	// ListCourses returns all known courses.
	ListCourses(ctx context.Context) ([]domain.Course, error)

	// AddMember records that userID can see courseID.
	AddMember(ctx context.Context, courseID, userID string) error

	// ListCoursesForUser returns the courses userID is a member of.
	ListCoursesForUser(ctx context.Context, userID string) ([]domain.Course, error)

	// ArchiveMissing soft-archives the active courses owned by ownerID
	// that are not in keep. Returns the number archived.
	ArchiveMissing(ctx context.Context, ownerID string, keep []string) (int, error)

	// RemoveMissingMembers drops userID's memberships of courses not in keep.
	// Returns the number removed.
	RemoveMissingMembers(ctx context.Context, userID string, keep []string) (int, error)

	// MarkSynced sets the course's last_synced_at.
	MarkSynced(ctx context.Context, courseID string, at time.Time) error

	// GetCursor returns the stored cursor for a course and kind.
	// Returns an empty string when no cursor is stored.
	GetCursor(ctx context.Context, courseID string, kind domain.ContentKind) (string, error)
}
