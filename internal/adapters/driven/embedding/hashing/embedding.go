// Package hashing provides a deterministic local embedding service.
//
// Text is split into lowercased word tokens, stop words are dropped, plurals
// are folded and each token is hashed into a fixed-size vector which is then
// L2 normalised. No network or model download is involved, so the same text
// always yields the same vector.
package hashing

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "classmate-hash-v1"
	DefaultDimensions = 384
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("hashing: embedding service is closed")

// stopWords are dropped before hashing.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"can": {}, "do": {}, "does": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"how": {}, "i": {}, "in": {}, "is": {}, "it": {}, "me": {}, "my": {}, "of": {},
	"on": {}, "or": {}, "our": {}, "should": {}, "so": {}, "that": {}, "the": {},
	"their": {}, "there": {}, "this": {}, "to": {}, "was": {}, "we": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "why": {}, "will": {}, "with": {},
	"you": {}, "your": {},
}

// Config holds configuration for the hashing embedding service.
type Config struct {
	// Model is the reported model name (default: classmate-hash-v1).
	Model string

	// Dimensions is the vector size (default: 384).
	Dimensions int
}

// EmbeddingService generates feature-hashed embeddings.
type EmbeddingService struct {
	model      string
	dimensions int

	mu     sync.RWMutex
	closed bool
}

// NewEmbeddingService creates a new hashing embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingService{model: cfg.Model, dimensions: cfg.Dimensions}
}

// Embed generates a vector embedding for the given text.
// Text without any content tokens yields the zero vector.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.vector(text), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = s.vector(text)
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping always succeeds while the service is open.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.check(ctx)
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *EmbeddingService) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *EmbeddingService) vector(text string) []float32 {
	vec := make([]float32, s.dimensions)
	for _, token := range Tokens(text) {
		vec[bucket(token, s.dimensions)]++
	}
	normalise(vec)
	return vec
}

// Tokens returns the content tokens of text in order.
func Tokens(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := words[:0]
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		tokens = append(tokens, fold(w))
	}
	return tokens
}

// fold strips a plural "s" from longer words, leaving "ss" endings alone.
func fold(w string) string {
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		return w[:len(w)-1]
	}
	return w
}

func bucket(token string, dims int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum32() % uint32(dims))
}

func normalise(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
