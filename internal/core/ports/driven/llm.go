package driven

import "context"

// LLMService is the generation backend used by the Answer Synthesizer.
// This is an optional service - when nil, answers degrade to retrieval-only.
//
// Generate returns a plain error for any failed call, including an
// unreachable host or an unknown model; those answers are marked
// generation_failed. domain.ErrLLMUnavailable is reserved for a backend that
// is not configured, and Ping uses it to report an unreachable backend.
//
// Implementations may include:
//   - OpenAI (GPT-4o)
//   - Anthropic (Claude)
//   - Ollama (local models)
type LLMService interface {
	// Generate produces text completion from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}
