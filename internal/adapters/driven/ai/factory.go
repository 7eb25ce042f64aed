// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/docusearch/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/docusearch/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/docusearch/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/docusearch/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/docusearch/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/docusearch/internal/adapters/driven/resilience"
	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
	"github.com/custodia-labs/docusearch/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Services holds the AI backends used by indexing and answering.
type Services struct {
	// Embedding is nil when no embedding provider is configured.
	Embedding driven.EmbeddingService

	// LLM is nil when generation is disabled or not configured.
	LLM driven.LLMService

	// Warnings are non-fatal issues found while creating the services.
	Warnings []string
}

// Close releases all resources held by the services.
func (s *Services) Close() error {
	var errs []error
	if s.Embedding != nil {
		errs = append(errs, s.Embedding.Close())
	}
	if s.LLM != nil {
		errs = append(errs, s.LLM.Close())
	}
	return errors.Join(errs...)
}

// NewServices creates the embedding and generation services for settings,
// each wrapped with retries, a circuit breaker and its configured rate limit.
// Connectivity is not checked; an unreachable backend surfaces on first use.
func NewServices(settings domain.Settings, policy resilience.Config) (*Services, error) {
	logger.Section("AI Services")
	out := &Services{}

	embedding, err := CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, err
	}
	if embedding == nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("embedding provider %q is not configured", settings.Embedding.Provider))
	} else {
		logger.Debug("embedding: %s/%s", settings.Embedding.Provider, embedding.ModelName())
		embedPolicy := policy
		embedPolicy.RateLimit = settings.Embedding.RateLimit
		out.Embedding = resilience.WrapEmbedding(embedding, embedPolicy)
	}

	llm, err := CreateLLMService(&settings.LLM)
	switch {
	case err != nil:
		out.Warnings = append(out.Warnings, fmt.Sprintf("generation disabled: %v", err))
	case llm == nil && settings.LLM.Provider != domain.AIProviderNone:
		out.Warnings = append(out.Warnings, fmt.Sprintf("generation disabled: LLM provider %q is not configured", settings.LLM.Provider))
	case llm != nil:
		logger.Debug("generation: %s/%s", settings.LLM.Provider, llm.ModelName())
		llmPolicy := policy
		llmPolicy.RateLimit = settings.LLM.RateLimit
		out.LLM = resilience.WrapLLM(llm, llmPolicy)
	}

	for _, w := range out.Warnings {
		logger.Warn("%s", w)
	}
	return out, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, nil
	}
	if settings.Provider == domain.AIProviderAnthropic {
		return nil, fmt.Errorf("%w: anthropic does not support embeddings, use ollama or openai",
			domain.ErrInvalidConfig)
	}
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s", domain.ErrInvalidConfig, settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is "none" or not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		svc, err := openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderAnthropic:
		svc, err := anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider: %s", domain.ErrInvalidConfig, settings.Provider)
	}
}
