package driven

import (
	"context"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

// AccessResolver resolves the set of courses a user may query.
type AccessResolver interface {
	AccessibleCourses(ctx context.Context, userID string) (domain.AccessFilter, error)
}
