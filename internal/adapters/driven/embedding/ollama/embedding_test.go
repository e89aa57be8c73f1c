package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

func newServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		case "/api/embed":
			var req embedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "all-minilm", req.Model)

			resp := embedResponse{}
			for range req.Input {
				vec := make([]float64, dims)
				vec[0] = 1
				resp.Embeddings = append(resp.Embeddings, vec)
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	s := NewEmbeddingService(Config{})
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, DefaultDimensions, s.Dimensions())
	assert.Equal(t, DefaultBaseURL, s.baseURL)
}

func TestEmbedBatch(t *testing.T) {
	srv := newServer(t, 4)
	s := NewEmbeddingService(Config{BaseURL: srv.URL, Dimensions: 4})

	vecs, err := s.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float32{1, 0, 0, 0}, vecs[2])

	vec, err := s.Embed(context.Background(), "single")
	require.NoError(t, err)
	assert.Len(t, vec, 4)

	empty, err := s.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	srv := newServer(t, 8)
	s := NewEmbeddingService(Config{BaseURL: srv.URL, Dimensions: 4})

	_, err := s.Embed(context.Background(), "a")
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestEmbed_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewEmbeddingService(Config{BaseURL: srv.URL})
	_, err := s.Embed(context.Background(), "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestPing(t *testing.T) {
	srv := newServer(t, 4)
	s := NewEmbeddingService(Config{BaseURL: srv.URL})
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())

	unreachable := NewEmbeddingService(Config{BaseURL: "http://127.0.0.1:1"})
	assert.Error(t, unreachable.Ping(context.Background()))
}

func TestEmbed_ErrorBodyIsUnwrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "model \"nomic\" not found, try pulling it first"}`))
	}))
	defer srv.Close()

	s := NewEmbeddingService(Config{BaseURL: srv.URL + "/"})
	_, err := s.Embed(context.Background(), "a")

	require.Error(t, err)
	assert.Equal(t, `ollama: status 400: model "nomic" not found, try pulling it first`, err.Error())
}

func TestEmbed_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1, 0, 0, 0}}})
	}))
	defer srv.Close()

	s := NewEmbeddingService(Config{BaseURL: srv.URL, Dimensions: 4})
	_, err := s.EmbedBatch(context.Background(), []string{"a", "b"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 embeddings for 2 inputs")
}
