package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
	"github.com/custodia-labs/classmate/internal/core/ports/driving"
	"github.com/custodia-labs/classmate/internal/logger"
)

// Ensure Indexer implements the interface.
var _ driving.Indexer = (*Indexer)(nil)

// Indexer regenerates the chunks of dirty content units.
type Indexer struct {
	content  driven.ContentStore
	index    driven.IndexStore
	chunker  driven.Chunker
	embedder driven.EmbeddingService

	embedRetries int
	writeRetries int

	locks unitLocks
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithEmbedRetries sets how many times a failed chunk embedding is retried.
func WithEmbedRetries(n int) IndexerOption {
	return func(ix *Indexer) {
		if n >= 0 {
			ix.embedRetries = n
		}
	}
}

// WithWriteRetries sets how many times a conflicting index replace is retried.
func WithWriteRetries(n int) IndexerOption {
	return func(ix *Indexer) {
		if n >= 0 {
			ix.writeRetries = n
		}
	}
}

// NewIndexer creates an indexer.
func NewIndexer(
	content driven.ContentStore,
	index driven.IndexStore,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	opts ...IndexerOption,
) *Indexer {
	ix := &Indexer{
		content:      content,
		index:        index,
		chunker:      chunker,
		embedder:     embedder,
		embedRetries: 3,
		writeRetries: 3,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// IndexCourse processes every dirty unit of a course. A failing unit does
// not stop its siblings; it stays dirty and is reported in the returned errors.
func (ix *Indexer) IndexCourse(ctx context.Context, courseID string) (domain.IndexStats, []domain.RunError, error) {
	var stats domain.IndexStats

	dirty, err := ix.content.ListDirty(ctx, courseID)
	if err != nil {
		return stats, nil, fmt.Errorf("%w: list dirty units: %w", domain.ErrStoreFailure, err)
	}

	var unitErrs []domain.RunError
	for _, unit := range dirty {
		if err := ctx.Err(); err != nil {
			unitErrs = append(unitErrs, domain.RunError{Code: domain.CodeOf(err), Message: err.Error()})
			break
		}
		n, err := ix.IndexUnit(ctx, unit)
		if err != nil {
			stats.Failed++
			unitErrs = append(unitErrs, domain.RunError{
				Kind:    unit.Kind,
				Code:    domain.CodeOf(err),
				Message: err.Error(),
				UnitID:  unit.ID,
			})
			logger.Warn("Indexing %s left dirty: %v", unit.ID, err)
			continue
		}
		if unit.Deleted {
			stats.Removed++
		} else {
			stats.Indexed++
			stats.Chunks += n
		}
	}

	if len(dirty) > 0 {
		logger.Debug("Indexed course %s: %d indexed, %d removed, %d failed",
			courseID, stats.Indexed, stats.Removed, stats.Failed)
	}
	return stats, unitErrs, nil
}

// IndexUnit replaces the chunks of one unit, or removes them if the unit
// is deleted, and clears its dirty flag. Calls for the same unit are serialised.
// It returns the number of chunks written.
func (ix *Indexer) IndexUnit(ctx context.Context, unit domain.ContentUnit) (int, error) {
	unlock := ix.locks.lock(unit.ID)
	defer unlock()

	if unit.Deleted || !unit.Kind.Indexable() {
		if err := ix.withWriteRetries(ctx, func() error {
			return ix.index.DeleteByUnit(ctx, unit.ID)
		}); err != nil {
			return 0, fmt.Errorf("delete chunks: %w", err)
		}
		return 0, ix.markIndexed(ctx, unit)
	}

	chunks, err := ix.chunker.Split(ctx, &unit)
	if err != nil {
		return 0, fmt.Errorf("split unit: %w", err)
	}
	for i := range chunks {
		vec, err := ix.embed(ctx, chunks[i].Text)
		if err != nil {
			return 0, fmt.Errorf("chunk %d: %w", chunks[i].Index, err)
		}
		chunks[i].Vector = vec
	}

	if err := ix.withWriteRetries(ctx, func() error {
		return ix.index.Upsert(ctx, unit.ID, chunks)
	}); err != nil {
		return 0, fmt.Errorf("upsert chunks: %w", err)
	}
	return len(chunks), ix.markIndexed(ctx, unit)
}

func (ix *Indexer) markIndexed(ctx context.Context, unit domain.ContentUnit) error {
	if err := ix.content.MarkIndexed(ctx, unit.ID, unit.ContentHash, unit.Deleted); err != nil {
		return fmt.Errorf("%w: mark indexed: %w", domain.ErrStoreFailure, err)
	}
	return nil
}

// embed computes one chunk vector with bounded retries.
func (ix *Indexer) embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= ix.embedRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := ix.embedder.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		logger.Debug("Embedding attempt %d failed: %v", attempt+1, err)
	}
	if errors.Is(lastErr, domain.ErrEmbeddingFailure) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, lastErr)
}

// withWriteRetries retries fn while the index reports a write conflict.
func (ix *Indexer) withWriteRetries(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= ix.writeRetries; attempt++ {
		if err = fn(); !errors.Is(err, domain.ErrIndexWriteConflict) {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		logger.Debug("Index write conflict, retrying (attempt %d)", attempt+1)
	}
	return err
}

// unitLocks is a set of per-unit mutexes, released when no holder remains.
type unitLocks struct {
	mu    sync.Mutex
	locks map[string]*unitLock
}

type unitLock struct {
	mu   sync.Mutex
	refs int
}

func (l *unitLocks) lock(id string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*unitLock)
	}
	ul, ok := l.locks[id]
	if !ok {
		ul = &unitLock{}
		l.locks[id] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
