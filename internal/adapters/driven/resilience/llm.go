package resilience

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

const opGeneration = "generation"

// LLMService decorates a generation backend with throttling, retries and a
// circuit breaker. An open circuit is reported as domain.ErrLLMUnavailable so
// answers degrade to retrieval-only.
type LLMService struct {
	driven.LLMService
	exec    *Executor
	limiter *rate.Limiter
}

// WrapLLM decorates next. A nil next is returned as nil.
func WrapLLM(next driven.LLMService, cfg Config) driven.LLMService {
	if next == nil {
		return nil
	}
	cfg = cfg.normalize()
	return &LLMService{
		LLMService: next,
		exec:       NewExecutor(cfg),
		limiter:    newLimiter(cfg.RateLimit),
	}
}

// Generate produces text completion from a prompt through the breaker.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	var text string
	err := s.exec.Execute(ctx, opGeneration, func(ctx context.Context) error {
		if err := wait(ctx, s.limiter); err != nil {
			return err
		}
		var err error
		text, err = s.LLMService.Generate(ctx, prompt, opts)
		return err
	}, Classify)
	if IsCircuitOpen(err) {
		return "", fmt.Errorf("%w: %s backend: %w", domain.ErrLLMUnavailable, opGeneration, err)
	}
	return text, err
}
