package mcp

import (
	"context"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driving"
)

// mockQAService is a mock implementation of driving.QAService.
type mockQAService struct {
	answer *domain.Answer
	err    error
	filter domain.AccessFilter
}

func (m *mockQAService) Answer(_ context.Context, _ string, filter domain.AccessFilter) (*domain.Answer, error) {
	m.filter = filter
	return m.answer, m.err
}

// mockAccess grants a fixed set of courses per user.
type mockAccess struct {
	courses map[string][]string
	err     error
}

func (m *mockAccess) AccessibleCourses(_ context.Context, userID string) (domain.AccessFilter, error) {
	return domain.NewAccessFilter(m.courses[userID]...), m.err
}

// mockSyncEngine is a mock implementation of driving.SyncEngine.
type mockSyncEngine struct {
	run     *domain.SyncRun
	summary *domain.SyncSummary
	runs    []domain.SyncRun
	err     error
	synced  []string
}

func (m *mockSyncEngine) Sync(_ context.Context, courseID string) (*domain.SyncRun, error) {
	m.synced = append(m.synced, courseID)
	return m.run, m.err
}

func (m *mockSyncEngine) SyncUser(_ context.Context, userID string) (*domain.SyncSummary, error) {
	m.synced = append(m.synced, "user:"+userID)
	return m.summary, m.err
}

func (m *mockSyncEngine) History(_ context.Context, _ string, _ int) ([]domain.SyncRun, error) {
	return m.runs, m.err
}

func (m *mockSyncEngine) Status(_ context.Context, courseID string) (*driving.SyncStatus, error) {
	return &driving.SyncStatus{CourseID: courseID}, m.err
}

func aliceAccess() *mockAccess {
	return &mockAccess{courses: map[string][]string{"alice": {"c1"}}}
}
