package mcp

import (
	"github.com/custodia-labs/docusearch/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Answer answers questions from the index.
	Answer driving.AnswerService

	// Retriever returns ranked chunks without generation.
	Retriever driving.Retriever

	// Indexing reports collection metadata. Optional.
	Indexing driving.IndexingService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retriever == nil {
		return ErrMissingRetriever
	}
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	return nil
}
