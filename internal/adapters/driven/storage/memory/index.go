package memory

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

type indexStore struct {
	*Store
}

var _ driven.IndexStore = (*indexStore)(nil)

// EnsureModel pins the embedding model on first use and verifies it afterwards.
func (s *indexStore) EnsureModel(_ context.Context, model domain.EmbeddingModel) error {
	if model.Name == "" || model.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding model needs a name and dimensions", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == nil {
		m := model
		s.model = &m
		return nil
	}
	if *s.model != model {
		return fmt.Errorf("%w: index uses %s/%d, configured %s/%d",
			domain.ErrModelMismatch, s.model.Name, s.model.Dimensions, model.Name, model.Dimensions)
	}
	return nil
}

// Upsert replaces every chunk of unitID under the write lock.
func (s *indexStore) Upsert(_ context.Context, unitID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		if c.UnitID != unitID {
			return fmt.Errorf("%w: chunk %s belongs to %s, not %s", domain.ErrInvalidInput, c.ID, c.UnitID, unitID)
		}
		if s.model != nil && len(c.Vector) != s.model.Dimensions {
			return fmt.Errorf("%w: chunk %s has %d, index has %d",
				domain.ErrDimensionMismatch, c.ID, len(c.Vector), s.model.Dimensions)
		}
	}
	if len(chunks) == 0 {
		delete(s.chunks, unitID)
		return nil
	}
	stored := make([]domain.Chunk, len(chunks))
	copy(stored, chunks)
	sort.Slice(stored, func(i, j int) bool { return stored[i].Index < stored[j].Index })
	s.chunks[unitID] = stored
	return nil
}

// DeleteByUnit removes every chunk of unitID.
func (s *indexStore) DeleteByUnit(_ context.Context, unitID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, unitID)
	return nil
}

// Search ranks the filter's chunks by exact cosine similarity.
func (s *indexStore) Search(_ context.Context, query []float32, filter domain.AccessFilter, topK int) ([]domain.ScoredChunk, error) {
	if filter.IsEmpty() {
		return nil, domain.ErrAccessDenied
	}
	if topK <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.model != nil && len(query) != s.model.Dimensions {
		return nil, fmt.Errorf("%w: query has %d, index has %d",
			domain.ErrDimensionMismatch, len(query), s.model.Dimensions)
	}
	if isZero(query) {
		return nil, nil
	}

	var hits []domain.ScoredChunk
	for _, chunks := range s.chunks {
		for _, c := range chunks {
			if !filter.Allows(c.CourseID) {
				continue
			}
			hits = append(hits, domain.ScoredChunk{Chunk: c, Similarity: cosine(query, c.Vector)})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if !a.Chunk.UnitUpdatedAt.Equal(b.Chunk.UnitUpdatedAt) {
			return a.Chunk.UnitUpdatedAt.After(b.Chunk.UnitUpdatedAt)
		}
		if a.Chunk.Index != b.Chunk.Index {
			return a.Chunk.Index < b.Chunk.Index
		}
		return a.Chunk.ID < b.Chunk.ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// ChunksForUnit returns a unit's chunks ordered by index.
func (s *indexStore) ChunksForUnit(_ context.Context, unitID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := s.chunks[unitID]
	if len(chunks) == 0 {
		return nil, nil
	}
	out := make([]domain.Chunk, len(chunks))
	copy(out, chunks)
	return out, nil
}

// cosine returns the similarity of a and b, clamped to [0, 1].
// isZero reports whether v has no direction to rank against.
func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return math.Max(0, math.Min(1, dot/(math.Sqrt(na)*math.Sqrt(nb))))
}
