package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

type courseStore struct {
	*Store
}

var _ driven.CourseStore = (*courseStore)(nil)

// SaveCourse creates or updates course metadata.
func (s *courseStore) SaveCourse(_ context.Context, course domain.Course) error {
	if course.ID == "" {
		return fmt.Errorf("%w: course ID is required", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.courses[course.ID]; ok && !existing.CreatedAt.IsZero() {
		course.CreatedAt = existing.CreatedAt
	}
	s.courses[course.ID] = course
	return nil
}

// GetCourse retrieves a course by ID.
func (s *courseStore) GetCourse(_ context.Context, id string) (*domain.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	course, ok := s.courses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &course, nil
}

// ListCourses returns all known courses ordered by name.
func (s *courseStore) ListCourses(_ context.Context) ([]domain.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Course, 0, len(s.courses))
	for _, c := range s.courses {
		result = append(result, c)
	}
	sortCourses(result)
	return result, nil
}

// AddMember records that userID can see courseID.
func (s *courseStore) AddMember(_ context.Context, courseID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[courseID]; !ok {
		return fmt.Errorf("adding member: %w", domain.ErrNotFound)
	}
	users, ok := s.members[courseID]
	if !ok {
		users = make(map[string]struct{})
		s.members[courseID] = users
	}
	users[userID] = struct{}{}
	return nil
}

// ListCoursesForUser returns the courses userID is a member of.
func (s *courseStore) ListCoursesForUser(_ context.Context, userID string) ([]domain.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Course
	for courseID, users := range s.members {
		if _, ok := users[userID]; !ok {
			continue
		}
		if c, ok := s.courses[courseID]; ok {
			result = append(result, c)
		}
	}
	sortCourses(result)
	return result, nil
}

// ArchiveMissing soft-archives the owner's active courses not in keep.
func (s *courseStore) ArchiveMissing(_ context.Context, ownerID string, keep []string) (int, error) {
	kept := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	archived := 0
	for id, c := range s.courses {
		if c.OwnerID != ownerID || c.State != domain.CourseActive {
			continue
		}
		if _, ok := kept[id]; ok {
			continue
		}
		c.State = domain.CourseArchived
		c.UpdatedAt = s.now()
		s.courses[id] = c
		archived++
	}
	return archived, nil
}

// RemoveMissingMembers drops userID's memberships of courses not in keep.
func (s *courseStore) RemoveMissingMembers(_ context.Context, userID string, keep []string) (int, error) {
	kept := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for courseID, users := range s.members {
		if _, ok := kept[courseID]; ok {
			continue
		}
		if _, ok := users[userID]; !ok {
			continue
		}
		delete(users, userID)
		removed++
	}
	return removed, nil
}

// MarkSynced sets the course's last sync time.
func (s *courseStore) MarkSynced(_ context.Context, courseID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[courseID]
	if !ok {
		return domain.ErrNotFound
	}
	c.LastSyncedAt = at
	s.courses[courseID] = c
	return nil
}

// GetCursor returns the stored cursor for a course and kind.
func (s *courseStore) GetCursor(_ context.Context, courseID string, kind domain.ContentKind) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[cursorKey{courseID, kind}], nil
}

func sortCourses(cs []domain.Course) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Name != cs[j].Name {
			return cs[i].Name < cs[j].Name
		}
		return cs[i].ID < cs[j].ID
	})
}
