package domain

// AnswerStatus is the terminal state of one query.
type AnswerStatus string

// Answer states.
const (
	// AnswerNoContext means retrieval found nothing, so no generation was attempted.
	AnswerNoContext AnswerStatus = "no_context"

	// AnswerGrounded means the backend generated text from the retrieved chunks.
	AnswerGrounded AnswerStatus = "grounded"

	// AnswerRetrievalOnly means no generation backend is available;
	// the sources are the result and no prose was produced.
	AnswerRetrievalOnly AnswerStatus = "retrieval_only"

	// AnswerGenerationFailed means the backend errored during generation.
	// The sources are still returned.
	AnswerGenerationFailed AnswerStatus = "generation_failed"
)

// String returns the string representation.
func (s AnswerStatus) String() string {
	return string(s)
}

// Generated returns true if the answer carries generated text.
func (s AnswerStatus) Generated() bool {
	return s == AnswerGrounded
}

// Description returns a human-readable label for the status.
func (s AnswerStatus) Description() string {
	switch s {
	case AnswerNoContext:
		return "No relevant context"
	case AnswerGrounded:
		return "Grounded answer"
	case AnswerRetrievalOnly:
		return "Retrieval only (no generation backend)"
	case AnswerGenerationFailed:
		return "Generation failed (showing retrieved sources)"
	default:
		return unknownDescription
	}
}

// Fixed answer texts for states without generated prose.
const (
	NoContextText       = "I don't have information about that in the indexed documents."
	NoIndexText         = "No index found. Run 'docusearch build' first."
	RetrievalOnlyText   = "No generation backend is available. The most relevant passages are listed below."
	GenerationErrorText = "The answer could not be generated. The most relevant passages are listed below."
)

// Answer is the result of one question.
type Answer struct {
	// Question is the trimmed question text.
	Question string

	// Status is the terminal state reached.
	Status AnswerStatus

	// Text is the generated answer, or a fixed explanation for non-grounded states.
	Text string

	// Sources are the chunks behind the answer in relevance order.
	// For grounded answers these are exactly the chunks included in the prompt.
	Sources []ScoredChunk

	// Collection reports the state of the index that was queried.
	Collection CollectionState

	// GenerationError holds the backend error message for failed generations.
	GenerationError string

	// Model is the generation model used, if any.
	Model string
}

// AnswerOptions configures a single question.
type AnswerOptions struct {
	// TopK is the number of chunks to retrieve. Zero means the configured default.
	TopK int
}
