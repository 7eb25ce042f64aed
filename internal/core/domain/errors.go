package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyQuery indicates a question that is empty after trimming whitespace.
	ErrEmptyQuery = subError(ErrInvalidInput, "query is empty")

	// ErrInvalidTopK indicates a non-positive result count was requested.
	ErrInvalidTopK = subError(ErrInvalidInput, "top-k must be positive")

	// Corpus Errors.
	// These are recovered locally: the document is skipped and counted.

	// ErrUnsupportedType indicates no parser is registered for a document's format.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrParseFailed indicates a parser could not open or decode a document.
	ErrParseFailed = errors.New("parse failed")

	// Configuration Errors.
	// These abort the operation before any write.

	// ErrInvalidConfig indicates a missing or out-of-range setting.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCorpusNotFound indicates the corpus path does not exist or is not a directory.
	ErrCorpusNotFound = errors.New("corpus not found")

	// ErrDimensionMismatch indicates the configured embedding function produces
	// vectors of a different size than the existing collection holds.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbeddingModelMismatch indicates the collection was built with a
	// different embedding model than the one configured.
	ErrEmbeddingModelMismatch = errors.New("embedding model mismatch")

	// ErrEmbeddingNotConfigured indicates no embedding provider is set up.
	// Neither indexing nor retrieval can run without one.
	ErrEmbeddingNotConfigured = errors.New("embedding provider not configured")

	// Backend Errors.
	// These fail the current operation without touching persisted state.

	// ErrLLMUnavailable indicates the generation backend is not configured,
	// or its circuit is open. Queries degrade to retrieval-only answers.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is unreachable or misconfigured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorStoreUnavailable indicates the vector store could not be opened.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")

	// ErrBuildSuperseded indicates the staging collection a build was writing
	// to was removed by another process. The live collection is left as it was.
	ErrBuildSuperseded = errors.New("build superseded")
)

// configErrors lists the sentinels reported as configuration errors.
var configErrors = []error{
	ErrInvalidConfig,
	ErrCorpusNotFound,
	ErrDimensionMismatch,
	ErrEmbeddingModelMismatch,
	ErrEmbeddingNotConfigured,
}

// IsConfigError reports whether err is a configuration error.
// The CLI uses this to choose a distinct exit code.
func IsConfigError(err error) bool {
	for _, target := range configErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// wrappedError is a sentinel that also matches its parent category.
type wrappedError struct {
	parent error
	msg    string
}

func (e *wrappedError) Error() string { return e.msg }

func (e *wrappedError) Unwrap() error { return e.parent }

func subError(parent error, msg string) error {
	return &wrappedError{parent: parent, msg: msg}
}
