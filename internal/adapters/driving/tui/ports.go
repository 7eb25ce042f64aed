// Package tui provides an interactive terminal user interface for docusearch.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/docusearch/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Answer answers questions from the index.
	Answer driving.AnswerService

	// Indexing rebuilds the index and watches the corpus. Optional.
	Indexing driving.IndexingService
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(answer driving.AnswerService, indexing driving.IndexingService) *Ports {
	return &Ports{
		Answer:   answer,
		Indexing: indexing,
	}
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	return nil
}
