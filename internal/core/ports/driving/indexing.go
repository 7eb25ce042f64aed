package driving

import (
	"context"

	"github.com/custodia-labs/docusearch/internal/core/domain"
)

// IndexingService builds the Index Store from a document corpus.
type IndexingService interface {
	// Build indexes the corpus. Without Rebuild, an existing collection is
	// reused and nothing is embedded. With Rebuild, the collection is replaced
	// atomically from a fresh scan.
	Build(ctx context.Context, req domain.BuildRequest) (*domain.BuildResult, error)

	// Status returns the live collection metadata, or nil when none exists.
	Status(ctx context.Context) (*domain.CollectionInfo, error)

	// Watch reports changes under the configured corpus until ctx is cancelled.
	// The index is not updated; callers decide when to rebuild.
	Watch(ctx context.Context) (<-chan domain.CorpusChange, error)
}
