package resilience

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const opEmbedding = "embedding"

// EmbeddingService decorates an embedding backend with throttling, retries
// and a circuit breaker.
type EmbeddingService struct {
	driven.EmbeddingService
	exec    *Executor
	limiter *rate.Limiter
}

// WrapEmbedding decorates next. A nil next is returned as nil.
func WrapEmbedding(next driven.EmbeddingService, cfg Config) driven.EmbeddingService {
	if next == nil {
		return nil
	}
	cfg = cfg.normalize()
	return &EmbeddingService{
		EmbeddingService: next,
		exec:             NewExecutor(cfg),
		limiter:          newLimiter(cfg.RateLimit),
	}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for texts through the breaker.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := s.exec.Execute(ctx, opEmbedding, func(ctx context.Context) error {
		if err := wait(ctx, s.limiter); err != nil {
			return err
		}
		var err error
		vectors, err = s.EmbeddingService.EmbedBatch(ctx, texts)
		return err
	}, Classify)
	if IsCircuitOpen(err) {
		return nil, fmt.Errorf("%w: %s backend: %w", domain.ErrEmbeddingUnavailable, opEmbedding, err)
	}
	return vectors, err
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := max(1, int(perSecond))
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func wait(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}
