package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/postprocessors/chunker"
)

func newUnit(courseID, ext, title, body string) domain.ContentUnit {
	return domain.ContentUnit{
		ID:          domain.UnitID(courseID, domain.KindAssignment, ext),
		CourseID:    courseID,
		ExternalID:  ext,
		Kind:        domain.KindAssignment,
		Title:       title,
		Body:        body,
		UpdatedAt:   testStart,
		ContentHash: domain.HashContent(title, body),
		Dirty:       true,
		CreatedAt:   testStart,
		SyncedAt:    testStart,
	}
}

func commitUnits(t *testing.T, f *fixture, units ...domain.ContentUnit) {
	t.Helper()
	require.NoError(t, f.store.ContentStore().CommitPage(context.Background(), domain.PageCommit{
		CourseID: "c1", Kind: domain.KindAssignment, Units: units,
	}))
}

func TestIndexer_IndexesDirtyUnits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	commitUnits(t, f, newUnit("c1", "w1", "Lab 3", "Due Friday"), newUnit("c1", "w2", "Essay", "Due Monday"))

	stats, errs, err := f.indexer.IndexCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, 2, stats.Indexed)
	assert.Equal(t, 2, stats.Chunks)

	dirty, err := f.store.ContentStore().ListDirty(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, dirty)

	chunks, err := f.store.IndexStore().ChunksForUnit(ctx, domain.UnitID("c1", domain.KindAssignment, "w1"))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0].Vector, testDims)
	assert.Equal(t, "Lab 3", chunks[0].Title)
}

func TestIndexer_EmbedRetries(t *testing.T) {
	f := newFixture(t)
	flaky := &flakyEmbedder{EmbeddingService: f.embedder, failures: 2}
	ix := NewIndexer(f.store.ContentStore(), f.store.IndexStore(), chunker.New(), flaky)
	commitUnits(t, f, newUnit("c1", "w1", "Lab 3", "Due Friday"))

	stats, errs, err := ix.IndexCourse(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 3, flaky.calls)
}

func TestIndexer_EmbeddingFailureLeavesUnitDirty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flaky := &flakyEmbedder{EmbeddingService: f.embedder, failures: 4}
	ix := NewIndexer(f.store.ContentStore(), f.store.IndexStore(), chunker.New(), flaky, WithEmbedRetries(3))
	commitUnits(t, f, newUnit("c1", "w1", "Lab 3", "Due Friday"), newUnit("c1", "w2", "Essay", "Due Monday"))

	stats, errs, err := ix.IndexCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Indexed)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.CodeEmbeddingFailure, errs[0].Code)
	assert.Equal(t, domain.UnitID("c1", domain.KindAssignment, "w1"), errs[0].UnitID)

	dirty, err := f.store.ContentStore().ListDirty(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	assert.Equal(t, "w1", dirty[0].ExternalID)

	// The next pass picks the unit up again.
	stats, errs, err = ix.IndexCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, 1, stats.Indexed)
}

func TestIndexer_WriteConflicts(t *testing.T) {
	t.Run("retried", func(t *testing.T) {
		f := newFixture(t)
		idx := &conflictIndex{IndexStore: f.store.IndexStore(), conflicts: 2}
		ix := NewIndexer(f.store.ContentStore(), idx, chunker.New(), f.embedder)
		commitUnits(t, f, newUnit("c1", "w1", "Lab 3", "Due Friday"))

		stats, errs, err := ix.IndexCourse(context.Background(), "c1")
		require.NoError(t, err)
		assert.Empty(t, errs)
		assert.Equal(t, 1, stats.Indexed)
		assert.Equal(t, 3, idx.upserts)
	})

	t.Run("exhausted", func(t *testing.T) {
		f := newFixture(t)
		idx := &conflictIndex{IndexStore: f.store.IndexStore(), conflicts: 10}
		ix := NewIndexer(f.store.ContentStore(), idx, chunker.New(), f.embedder, WithWriteRetries(1))
		commitUnits(t, f, newUnit("c1", "w1", "Lab 3", "Due Friday"))

		stats, errs, err := ix.IndexCourse(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Failed)
		require.Len(t, errs, 1)
		assert.Equal(t, domain.CodeIndexWriteConflict, errs[0].Code)
		assert.Equal(t, 2, idx.upserts)
	})
}

func TestIndexer_UnitChangedWhileIndexingStaysDirty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var once sync.Once
	flaky := &flakyEmbedder{EmbeddingService: f.embedder}
	flaky.hook = func() {
		once.Do(func() {
			commitUnits(t, f, newUnit("c1", "w1", "Lab 3", "Moved to Monday"))
		})
	}
	ix := NewIndexer(f.store.ContentStore(), f.store.IndexStore(), chunker.New(), flaky)
	commitUnits(t, f, newUnit("c1", "w1", "Lab 3", "Due Friday"))

	_, _, err := ix.IndexCourse(ctx, "c1")
	require.NoError(t, err)

	u, err := f.store.ContentStore().GetUnit(ctx, domain.UnitID("c1", domain.KindAssignment, "w1"))
	require.NoError(t, err)
	assert.True(t, u.Dirty, "a newer revision must not be marked indexed")

	_, _, err = ix.IndexCourse(ctx, "c1")
	require.NoError(t, err)
	u, err = f.store.ContentStore().GetUnit(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, u.Dirty)

	chunks, err := f.store.IndexStore().ChunksForUnit(ctx, u.ID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, u.ContentHash, chunks[0].ContentHash)
}

func TestIndexer_SerialisesPerUnit(t *testing.T) {
	f := newFixture(t)
	idx := &conflictIndex{IndexStore: f.store.IndexStore()}
	ix := NewIndexer(f.store.ContentStore(), idx, chunker.New(), f.embedder)
	unit := newUnit("c1", "w1", "Lab 3", "Due Friday")
	commitUnits(t, f, unit)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ix.IndexUnit(context.Background(), unit)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, idx.upserts)
	assert.Equal(t, 1, idx.peak)
	assert.Empty(t, ix.locks.locks, "locks are released once idle")
}

func TestIndexer_DeletedUnitRemovesChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := newUnit("c1", "w1", "Lab 3", "Due Friday")
	commitUnits(t, f, unit)
	_, _, err := f.indexer.IndexCourse(ctx, "c1")
	require.NoError(t, err)

	unit.Deleted = true
	unit.Dirty = true
	commitUnits(t, f, unit)

	stats, errs, err := f.indexer.IndexCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, 1, stats.Removed)

	chunks, err := f.store.IndexStore().ChunksForUnit(ctx, unit.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	got, err := f.store.ContentStore().GetUnit(ctx, unit.ID)
	require.NoError(t, err)
	assert.False(t, got.Dirty)
}

func TestIndexer_CancelledContext(t *testing.T) {
	f := newFixture(t)
	commitUnits(t, f, newUnit("c1", "w1", "Lab 3", "Due Friday"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, errs, err := f.indexer.IndexCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, stats.Indexed)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.CodeCancelled, errs[0].Code)
}
