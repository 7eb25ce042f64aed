package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docusearch/internal/core/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *EmbeddingService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewEmbeddingService(Config{BaseURL: server.URL, Model: "custom-model"})
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	s := NewEmbeddingService(Config{})

	assert.Equal(t, DefaultBaseURL, s.baseURL)
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, 768, s.Dimensions())
}

func TestEmbeddingService_EmbedBatch(t *testing.T) {
	var got embedRequest
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1, 0, 0}, {0, 1, 0}}})
	})

	assert.Equal(t, 0, s.Dimensions())

	vectors, err := s.EmbedBatch(context.Background(), []string{"one", "two"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0, 0}, {0, 1, 0}}, vectors)
	assert.Equal(t, "custom-model", got.Model)
	assert.Equal(t, []string{"one", "two"}, got.Input)
	assert.Equal(t, 3, s.Dimensions(), "dimensions are probed from the first response")
}

func TestEmbeddingService_EmbedBatch_Empty(t *testing.T) {
	s := NewEmbeddingService(Config{BaseURL: "http://127.0.0.1:1"})

	vectors, err := s.EmbedBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbeddingService_Embed_CountMismatch(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{})
	})

	_, err := s.Embed(context.Background(), "one")

	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbeddingService_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		unavailable bool
	}{
		{"model not pulled", http.StatusNotFound, true},
		{"unauthorised", http.StatusUnauthorized, true},
		{"server error", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", tt.status)
			})

			_, err := s.Embed(context.Background(), "one")

			require.Error(t, err)
			assert.Contains(t, err.Error(), "boom")
			assert.Equal(t, tt.unavailable, errors.Is(err, domain.ErrEmbeddingUnavailable))
		})
	}
}

func TestEmbeddingService_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	s := NewEmbeddingService(Config{BaseURL: url})

	_, err := s.Embed(context.Background(), "one")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	assert.ErrorIs(t, s.Ping(context.Background()), domain.ErrEmbeddingUnavailable)
}

func TestEmbeddingService_Ping(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
}
