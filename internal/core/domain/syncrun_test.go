package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestNewSyncRun(t *testing.T) {
	run := NewSyncRun("run-1", "c1", runStart)

	assert.Equal(t, RunRunning, run.Status)
	assert.False(t, run.IsFinal())
	for _, k := range SyncKinds() {
		require.Contains(t, run.Counts, k)
		assert.Zero(t, *run.Counts[k])
	}
}

func TestSyncRun_CountsForUnknownMap(t *testing.T) {
	run := &SyncRun{}
	run.CountsFor(KindMaterial).Created++
	assert.Equal(t, 1, run.Counts[KindMaterial].Created)
}

func TestSyncRun_Finalise(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SyncRun)
		want   RunStatus
	}{
		{"clean", func(*SyncRun) {}, RunSucceeded},
		{"recorded error", func(r *SyncRun) {
			r.Record(KindAssignment, 2, ErrRateLimited)
		}, RunPartial},
		{"aborted", func(r *SyncRun) {
			r.Abort(KindAnnouncement, 1, ErrAuthExpired)
		}, RunFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := NewSyncRun("run-1", "c1", runStart)
			tt.mutate(run)
			run.Finalise(runStart.Add(time.Minute))

			assert.Equal(t, tt.want, run.Status)
			assert.True(t, run.IsFinal())
			assert.Equal(t, runStart.Add(time.Minute), run.FinishedAt)
		})
	}
}

func TestSyncRun_RecordClassifies(t *testing.T) {
	run := NewSyncRun("run-1", "c1", runStart)
	run.Record(KindMaterial, 3, errors.New("boom"))
	run.Abort(KindMaterial, 4, ErrStoreFailure)

	require.Len(t, run.Errors, 2)
	assert.Equal(t, CodeInternal, run.Errors[0].Code)
	assert.Equal(t, 3, run.Errors[0].Page)
	assert.Equal(t, CodeStoreFailure, run.Errors[1].Code)
	assert.True(t, run.Aborted())
}

func TestKindCounts_Synced(t *testing.T) {
	c := KindCounts{Created: 2, Updated: 1, Unchanged: 4, Deleted: 3, Fetched: 10}
	assert.Equal(t, 7, c.Synced())
}

func TestSyncSummary_Add(t *testing.T) {
	var s SyncSummary

	ok := NewSyncRun("r1", "c1", runStart)
	ok.CountsFor(KindAssignment).Created = 3
	ok.Finalise(runStart)
	s.Add(Course{ID: "c1", Name: "Biology"}, ok)

	partial := NewSyncRun("r2", "c2", runStart)
	partial.CountsFor(KindAssignment).Unchanged = 2
	partial.Record(KindMaterial, 1, ErrRemoteUnavailable)
	partial.Finalise(runStart)
	s.Add(Course{ID: "c2", Name: "History"}, partial)

	failed := NewSyncRun("r3", "c3", runStart)
	failed.CountsFor(KindAssignment).Created = 5
	failed.Abort(KindAssignment, 1, ErrAuthExpired)
	failed.Finalise(runStart)
	s.Add(Course{ID: "c3", Name: "Maths"}, failed)

	assert.Equal(t, 2, s.CoursesSynced)
	assert.Equal(t, 10, s.AssignmentsSynced)
	assert.Len(t, s.Runs, 3)
	require.Len(t, s.Failures, 2)
	assert.Equal(t, "c2", s.Failures[0].CourseID)
	assert.Equal(t, RunPartial, s.Failures[0].Status)
	assert.Equal(t, "Maths", s.Failures[1].CourseName)
	assert.Equal(t, CodeAuthExpired, s.Failures[1].Errors[0].Code)
}
