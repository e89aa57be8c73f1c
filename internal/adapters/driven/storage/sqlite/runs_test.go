package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

func TestSyncRunStore_Lifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	runs := store.SyncRunStore()

	run := domain.NewSyncRun("01RUN", "c1", testNow)
	require.NoError(t, runs.CreateRun(ctx, run))

	got, err := runs.GetRun(ctx, "01RUN")
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, got.Status)
	assert.False(t, got.IsFinal())

	run.CountsFor(domain.KindAssignment).Created = 3
	run.Index = domain.IndexStats{Indexed: 3, Chunks: 4}
	run.Record(domain.KindAnnouncement, 2, errors.New("boom"))
	run.Finalise(testNow.Add(time.Minute))
	require.NoError(t, runs.FinaliseRun(ctx, run))

	got, err = runs.GetRun(ctx, "01RUN")
	require.NoError(t, err)
	assert.Equal(t, domain.RunPartial, got.Status)
	assert.Equal(t, 3, got.Counts[domain.KindAssignment].Created)
	assert.Equal(t, 4, got.Index.Chunks)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, 2, got.Errors[0].Page)
	assert.True(t, got.FinishedAt.Equal(testNow.Add(time.Minute)))

	assert.ErrorIs(t, runs.FinaliseRun(ctx, run), domain.ErrRunFinalised)
}

func TestSyncRunStore_GetRun_NotFound(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.SyncRunStore().GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSyncRunStore_ListRuns_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	runs := store.SyncRunStore()

	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, runs.CreateRun(ctx, domain.NewSyncRun(id, "c1", testNow.Add(time.Duration(i)*time.Second))))
	}
	require.NoError(t, runs.CreateRun(ctx, domain.NewSyncRun("other", "c2", testNow)))

	list, err := runs.ListRuns(ctx, "c1", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r3", list[0].ID)
	assert.Equal(t, "r2", list[1].ID)

	all, err := runs.ListRuns(ctx, "c1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSyncRunStore_FailUnfinished(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	runs := store.SyncRunStore()

	require.NoError(t, runs.CreateRun(ctx, domain.NewSyncRun("open", "c1", testNow)))
	done := domain.NewSyncRun("done", "c1", testNow)
	require.NoError(t, runs.CreateRun(ctx, done))
	done.Finalise(testNow)
	require.NoError(t, runs.FinaliseRun(ctx, done))

	n, err := runs.FailUnfinished(ctx, testNow.Add(time.Hour), "interrupted")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := runs.GetRun(ctx, "open")
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, got.Status)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, "interrupted", got.Errors[0].Message)

	got, err = runs.GetRun(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceeded, got.Status)
}
