package driven

import (
	"context"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

// Chunker splits a content unit into ordered chunk windows.
// Vectors are left empty; the indexer embeds each window.
type Chunker interface {
	// Split returns the chunks for unit. Re-splitting identical text
	// yields identical IDs, indices and text.
	Split(ctx context.Context, unit *domain.ContentUnit) ([]domain.Chunk, error)
}
