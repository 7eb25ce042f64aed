package driven

import (
	"context"

	"github.com/custodia-labs/docusearch/internal/core/domain"
)

// Corpus discovers and reads documents under a root directory.
type Corpus interface {
	// Scan lists documents under root whose extension is in extensions.
	// Hidden files and directories are skipped.
	// Returns domain.ErrCorpusNotFound if root is missing or not a directory.
	Scan(ctx context.Context, root string, extensions []string) (*domain.CorpusScan, error)

	// Read loads the raw bytes of a scanned document.
	Read(ctx context.Context, doc domain.Document) (*domain.RawDocument, error)

	// Watch emits changes under root until ctx is cancelled.
	Watch(ctx context.Context, root string) (<-chan domain.CorpusChange, error)
}
