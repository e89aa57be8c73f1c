package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

type contentStore struct {
	*Store
}

var _ driven.ContentStore = (*contentStore)(nil)

// GetUnits returns the stored units of a kind keyed by external ID.
func (s *contentStore) GetUnits(_ context.Context, courseID string, kind domain.ContentKind, externalIDs []string) (map[string]domain.ContentUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.ContentUnit, len(externalIDs))
	for _, ext := range externalIDs {
		if u, ok := s.units[domain.UnitID(courseID, kind, ext)]; ok {
			out[ext] = u
		}
	}
	return out, nil
}

// ListLiveExternalIDs returns the external IDs of non-deleted records of a kind.
func (s *contentStore) ListLiveExternalIDs(_ context.Context, courseID string, kind domain.ContentKind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	if kind == domain.KindSubmission {
		for _, sub := range s.submissions {
			if sub.CourseID == courseID && !sub.Deleted {
				ids = append(ids, sub.ExternalID)
			}
		}
	} else {
		for _, u := range s.units {
			if u.CourseID == courseID && u.Kind == kind && !u.Deleted {
				ids = append(ids, u.ExternalID)
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// GetSubmissions returns stored submissions keyed by external ID.
func (s *contentStore) GetSubmissions(_ context.Context, courseID string, externalIDs []string) (map[string]domain.Submission, error) {
	want := make(map[string]struct{}, len(externalIDs))
	for _, id := range externalIDs {
		want[id] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Submission, len(externalIDs))
	for _, sub := range s.submissions {
		if sub.CourseID != courseID {
			continue
		}
		if _, ok := want[sub.ExternalID]; ok {
			out[sub.ExternalID] = cloneSubmission(sub)
		}
	}
	return out, nil
}

// ListSubmissions returns all stored submissions for a course.
func (s *contentStore) ListSubmissions(_ context.Context, courseID string) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Submission
	for _, sub := range s.submissions {
		if sub.CourseID == courseID {
			out = append(out, cloneSubmission(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

// CommitPage applies a page's units, submissions and cursor together.
// Nothing is written if any record references an unknown course.
func (s *contentStore) CommitPage(_ context.Context, commit domain.PageCommit) error {
	if commit.CourseID == "" || !commit.Kind.Valid() {
		return fmt.Errorf("%w: commit needs a course and a valid kind", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[commit.CourseID]; !ok {
		return fmt.Errorf("saving cursor: course %s: %w", commit.CourseID, domain.ErrNotFound)
	}
	for _, u := range commit.Units {
		if _, ok := s.courses[u.CourseID]; !ok {
			return fmt.Errorf("saving unit %s: course %s: %w", u.ID, u.CourseID, domain.ErrNotFound)
		}
	}
	for _, sub := range commit.Submissions {
		if _, ok := s.courses[sub.CourseID]; !ok {
			return fmt.Errorf("saving submission %s: course %s: %w", sub.ID, sub.CourseID, domain.ErrNotFound)
		}
	}

	for _, u := range commit.Units {
		if existing, ok := s.units[u.ID]; ok {
			u.CreatedAt = existing.CreatedAt
		}
		s.units[u.ID] = u
	}
	for _, sub := range commit.Submissions {
		s.submissions[sub.ID] = cloneSubmission(sub)
	}
	s.cursors[cursorKey{commit.CourseID, commit.Kind}] = commit.Cursor
	return nil
}

// GetUnit retrieves a unit by ID.
func (s *contentStore) GetUnit(_ context.Context, id string) (*domain.ContentUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

// ListUnits returns all units of a course, including deleted ones.
func (s *contentStore) ListUnits(_ context.Context, courseID string) ([]domain.ContentUnit, error) {
	return s.filterUnits(courseID, func(domain.ContentUnit) bool { return true }), nil
}

// ListDirty returns the dirty units of a course.
func (s *contentStore) ListDirty(_ context.Context, courseID string) ([]domain.ContentUnit, error) {
	return s.filterUnits(courseID, func(u domain.ContentUnit) bool { return u.Dirty }), nil
}

// MarkIndexed clears the dirty flag when hash and deletion state still match.
func (s *contentStore) MarkIndexed(_ context.Context, unitID, contentHash string, deleted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[unitID]
	if !ok || u.ContentHash != contentHash || u.Deleted != deleted {
		return nil
	}
	u.Dirty = false
	s.units[unitID] = u
	return nil
}

func (s *contentStore) filterUnits(courseID string, keep func(domain.ContentUnit) bool) []domain.ContentUnit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ContentUnit
	for _, u := range s.units {
		if u.CourseID == courseID && keep(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ExternalID < out[j].ExternalID
	})
	return out
}

func cloneSubmission(sub domain.Submission) domain.Submission {
	if sub.Grade != nil {
		g := *sub.Grade
		sub.Grade = &g
	}
	return sub
}
