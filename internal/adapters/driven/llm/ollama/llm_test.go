package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewLLMService(LLMConfig{BaseURL: server.URL})
}

func TestNewLLMService_Defaults(t *testing.T) {
	s := NewLLMService(LLMConfig{})

	assert.Equal(t, DefaultBaseURL, s.baseURL)
	assert.Equal(t, DefaultLLMModel, s.ModelName())
}

func TestLLMService_Generate(t *testing.T) {
	var got generateRequest
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "Paris.", Done: true})
	})

	text, err := s.Generate(context.Background(), "Capital of France?", driven.GenerateOptions{MaxTokens: 64})

	require.NoError(t, err)
	assert.Equal(t, "Paris.", text)
	assert.Equal(t, DefaultLLMModel, got.Model)
	assert.Equal(t, "Capital of France?", got.Prompt)
	assert.False(t, got.Stream)
	require.NotNil(t, got.Options)
	assert.Equal(t, 64, got.Options.NumPredict)
	require.NotNil(t, got.Options.Temperature, "zero temperature is still sent")
	assert.Zero(t, *got.Options.Temperature)
}

func TestLLMService_Generate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"model missing", http.StatusNotFound},
		{"server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error":"model not found"}`, tt.status)
			})

			_, err := s.Generate(context.Background(), "q", driven.GenerateOptions{})

			require.Error(t, err)
			assert.NotErrorIs(t, err, domain.ErrLLMUnavailable)
			var apiErr *apiError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.HTTPStatus())
		})
	}
}

func TestLLMService_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	s := NewLLMService(LLMConfig{BaseURL: url})

	_, err := s.Generate(context.Background(), "q", driven.GenerateOptions{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrLLMUnavailable)
	assert.ErrorIs(t, s.Ping(context.Background()), domain.ErrLLMUnavailable)
}

func TestLLMService_Ping_ModelMissing(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	assert.ErrorIs(t, s.Ping(context.Background()), domain.ErrLLMUnavailable)
}

func TestLLMService_Generate_Cancelled(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "late"})
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Generate(ctx, "q", driven.GenerateOptions{})

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestLLMService_Ping(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
}
