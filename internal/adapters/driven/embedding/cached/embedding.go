// Package cached wraps an embedding service with an LRU cache.
//
// Repeated questions are common, so caching avoids recomputing the same
// query vector. Keys include the model name so a model change never serves
// stale vectors.
package cached

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultSize is the default number of cached vectors.
const DefaultSize = 1000

// EmbeddingService caches the vectors of an inner service.
type EmbeddingService struct {
	inner driven.EmbeddingService
	cache *lru.Cache[string, []float32]
}

// New wraps inner with a cache of size entries.
func New(inner driven.EmbeddingService, size int) *EmbeddingService {
	if size <= 0 {
		size = DefaultSize
	}
	cache, _ := lru.New[string, []float32](size)
	return &EmbeddingService{inner: inner, cache: cache}
}

func (s *EmbeddingService) key(text string) string {
	sum := sha256.Sum256([]byte(s.inner.ModelName() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Embed returns the cached vector or computes and caches it.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	key := s.key(text)
	if vec, ok := s.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := s.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch embeds only the texts missing from the cache.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missing []int
		pending []string
	)
	for i, text := range texts {
		if vec, ok := s.cache.Get(s.key(text)); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, i)
		pending = append(pending, text)
	}
	if len(pending) == 0 {
		return out, nil
	}

	vecs, err := s.inner.EmbedBatch(ctx, pending)
	if err != nil {
		return nil, err
	}
	for j, i := range missing {
		out[i] = vecs[j]
		s.cache.Add(s.key(texts[i]), vecs[j])
	}
	return out, nil
}

// Dimensions returns the inner service's vector size.
func (s *EmbeddingService) Dimensions() int { return s.inner.Dimensions() }

// ModelName returns the inner service's model name.
func (s *EmbeddingService) ModelName() string { return s.inner.ModelName() }

// Ping checks the inner service.
func (s *EmbeddingService) Ping(ctx context.Context) error { return s.inner.Ping(ctx) }

// Close purges the cache and closes the inner service.
func (s *EmbeddingService) Close() error {
	s.cache.Purge()
	return s.inner.Close()
}

// Len returns the number of cached vectors.
func (s *EmbeddingService) Len() int { return s.cache.Len() }
