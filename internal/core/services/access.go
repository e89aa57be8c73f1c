package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

// Ensure MembershipAccess implements the interface.
var _ driven.AccessResolver = (*MembershipAccess)(nil)

// MembershipAccess resolves access from the course memberships recorded
// while listing each user's courses.
type MembershipAccess struct {
	courses driven.CourseStore
}

// NewMembershipAccess creates a membership-based access resolver.
func NewMembershipAccess(courses driven.CourseStore) *MembershipAccess {
	return &MembershipAccess{courses: courses}
}

// AccessibleCourses returns the courses userID is a member of.
// An unknown or empty user gets an empty filter.
func (a *MembershipAccess) AccessibleCourses(ctx context.Context, userID string) (domain.AccessFilter, error) {
	if userID == "" {
		return domain.NewAccessFilter(), nil
	}
	courses, err := a.courses.ListCoursesForUser(ctx, userID)
	if err != nil {
		return domain.AccessFilter{}, fmt.Errorf("list courses for user: %w", err)
	}
	ids := make([]string, len(courses))
	for i := range courses {
		ids[i] = courses[i].ID
	}
	return domain.NewAccessFilter(ids...), nil
}
