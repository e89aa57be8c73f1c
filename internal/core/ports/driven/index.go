package driven

import (
	"context"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

// IndexStore persists chunk vectors and serves access-filtered similarity search.
type IndexStore interface {
	// EnsureModel pins the embedding model on first use and verifies it afterwards.
	// Returns domain.ErrModelMismatch if the index was built with another model.
	EnsureModel(ctx context.Context, model domain.EmbeddingModel) error

	// Upsert atomically replaces every chunk of unitID with chunks.
	// Concurrent searches see either the old set or the new set, never a mix.
	Upsert(ctx context.Context, unitID string, chunks []domain.Chunk) error

	// DeleteByUnit removes every chunk of unitID.
	DeleteByUnit(ctx context.Context, unitID string) error

	// Search returns up to topK chunks ranked by cosine similarity.
	// Only chunks whose course is admitted by filter are considered, before
	// ranking. Ties break by newest unit update, then by chunk index.
	Search(ctx context.Context, query []float32, filter domain.AccessFilter, topK int) ([]domain.ScoredChunk, error)

	// ChunksForUnit returns a unit's chunks ordered by index.
	ChunksForUnit(ctx context.Context, unitID string) ([]domain.Chunk, error)
}
