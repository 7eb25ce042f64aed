// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/docusearch/internal/core/domain"
)

// AnswerRequested is a command to answer a question.
type AnswerRequested struct {
	Question string
	Options  domain.AnswerOptions
}

// AnswerCompleted carries an answer back to the model.
type AnswerCompleted struct {
	Answer *domain.Answer
	Err    error
}

// RebuildCompleted carries the outcome of a re-index.
type RebuildCompleted struct {
	Result *domain.BuildResult
	Err    error
}

// CollectionLoaded carries the live collection metadata.
// Info is nil when no index has been built.
type CollectionLoaded struct {
	Info *domain.CollectionInfo
	Err  error
}

// CorpusChanged is sent when a file under the corpus is created, updated or removed.
type CorpusChanged struct {
	Change domain.CorpusChange
}

// WatchStopped is sent when the corpus watch ends.
type WatchStopped struct{}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewAsk is the question input and answer view.
	ViewAsk ViewType = iota
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewAsk:
		return "ask"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
