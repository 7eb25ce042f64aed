// Package domain defines the core business entities for docusearch.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A source artifact discovered in the corpus
//   - Chunk: A retrievable unit within a document
//   - CollectionInfo: Metadata persisted with an index collection
//   - RetrievalResult: Ranked chunks plus the collection state
//   - Answer: The terminal state of one question
//   - BuildResult: Per-document outcomes of an indexing run
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
