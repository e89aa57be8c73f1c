// Package ollama embeds text with a model served by a local Ollama daemon.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Defaults applied by NewEmbeddingService.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "all-minilm"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 384
)

// maxErrorBody bounds how much of an error response is quoted.
const maxErrorBody = 512

// Config configures the service. Zero fields take the defaults.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
}

// EmbeddingService calls the Ollama /api/embed endpoint. Every returned
// vector must match the configured dimension, so a model swap on the daemon
// cannot silently corrupt a pinned index.
type EmbeddingService struct {
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// errorResponse is the body Ollama sends with non-2xx statuses.
type errorResponse struct {
	Error string `json:"error"`
}

// NewEmbeddingService creates an Ollama-backed embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingService{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Embed returns the vector for one text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns one vector per text, in order, from a single request.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var resp embedResponse
	if err := s.call(ctx, http.MethodPost, "/api/embed", embedRequest{Model: s.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama: %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, raw := range resp.Embeddings {
		if len(raw) != s.dimensions {
			return nil, fmt.Errorf("%w: model %s returned %d, expected %d",
				domain.ErrDimensionMismatch, s.model, len(raw), s.dimensions)
		}
		vec := make([]float32, len(raw))
		for j, v := range raw {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the configured vector size.
func (s *EmbeddingService) Dimensions() int { return s.dimensions }

// ModelName returns the configured model.
func (s *EmbeddingService) ModelName() string { return s.model }

// Ping checks the daemon answers on /api/tags without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.call(ctx, http.MethodGet, "/api/tags", nil, nil)
}

// Close drops idle connections.
func (s *EmbeddingService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// call sends body as JSON and decodes a 200 response into out when non-nil.
func (s *EmbeddingService) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ollama: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("ollama: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama: decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("ollama: status %d", resp.StatusCode)
	}
	msg := strings.TrimSpace(string(raw))
	var body errorResponse
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		return fmt.Errorf("ollama: status %d", resp.StatusCode)
	}
	return fmt.Errorf("ollama: status %d: %s", resp.StatusCode, msg)
}
