package driving

import (
	"context"

	"github.com/custodia-labs/docusearch/internal/core/domain"
)

// Retriever returns the chunks most relevant to a query.
type Retriever interface {
	// Retrieve validates the query and returns up to TopK ranked chunks.
	// Missing and empty collections yield an empty result with State set, not an error.
	Retrieve(ctx context.Context, query string, opts domain.RetrieveOptions) (*domain.RetrievalResult, error)
}

// AnswerService answers a question from the indexed corpus.
type AnswerService interface {
	// Answer runs retrieval and, when possible, grounded generation.
	// Generation failures are reported through Answer.Status, not the error.
	Answer(ctx context.Context, question string, opts domain.AnswerOptions) (*domain.Answer, error)
}
