package httpapi

import (
	"context"
	"sync"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driving"
)

// fakeSync is a scripted driving.SyncEngine.
type fakeSync struct {
	mu      sync.Mutex
	summary *domain.SyncSummary
	run     *domain.SyncRun
	runs    []domain.SyncRun
	err     error
	users   []string
	courses []string
	limits  []int
}

func (f *fakeSync) Sync(_ context.Context, courseID string) (*domain.SyncRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.courses = append(f.courses, courseID)
	return f.run, f.err
}

func (f *fakeSync) SyncUser(_ context.Context, userID string) (*domain.SyncSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	return f.summary, f.err
}

func (f *fakeSync) History(_ context.Context, courseID string, limit int) ([]domain.SyncRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.courses = append(f.courses, courseID)
	f.limits = append(f.limits, limit)
	return f.runs, f.err
}

func (f *fakeSync) Status(_ context.Context, courseID string) (*driving.SyncStatus, error) {
	return &driving.SyncStatus{CourseID: courseID}, nil
}

// fakeQA records the filter it was called with.
type fakeQA struct {
	answer   *domain.Answer
	err      error
	question string
	filter   domain.AccessFilter
}

func (f *fakeQA) Answer(_ context.Context, question string, filter domain.AccessFilter) (*domain.Answer, error) {
	f.question = question
	f.filter = filter
	return f.answer, f.err
}

// staticAccess maps users to course IDs.
type staticAccess map[string][]string

func (a staticAccess) AccessibleCourses(_ context.Context, userID string) (domain.AccessFilter, error) {
	return domain.NewAccessFilter(a[userID]...), nil
}
