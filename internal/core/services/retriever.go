package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driving"
	"github.com/custodia-labs/docusearch/internal/logger"
)

// Ensure Retriever implements the interface.
var _ driving.Retriever = (*Retriever)(nil)

// Retriever ranks indexed chunks against a query.
type Retriever struct {
	index       *IndexStore
	defaultTopK int
}

// NewRetriever creates a retriever. A non-positive defaultTopK uses domain.DefaultTopK.
func NewRetriever(index *IndexStore, defaultTopK int) *Retriever {
	if defaultTopK <= 0 {
		defaultTopK = domain.DefaultTopK
	}
	return &Retriever{index: index, defaultTopK: defaultTopK}
}

// Retrieve returns up to TopK chunks ordered by descending similarity.
func (r *Retriever) Retrieve(
	ctx context.Context, query string, opts domain.RetrieveOptions,
) (*domain.RetrievalResult, error) {
	logger.Section("Retrieval")

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	k := opts.TopK
	switch {
	case k == 0:
		k = r.defaultTopK
	case k < 0:
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidTopK, k)
	}
	logger.Debug("Query: %q, k=%d", query, k)

	return r.index.Search(ctx, query, k)
}
