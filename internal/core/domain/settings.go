package domain

import (
	"fmt"
	"strings"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderNone disables the capability.
	// Only meaningful for generation, which then degrades to retrieval-only.
	AIProviderNone AIProvider = "none"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderNone:
		return "Disabled"
	default:
		return unknownDescription
	}
}

// StoreBackend selects the vector database engine.
type StoreBackend string

// Available store backends.
const (
	// StoreSQLite persists to a local SQLite file (default).
	StoreSQLite StoreBackend = "sqlite"

	// StorePostgres persists to PostgreSQL with the pgvector extension.
	StorePostgres StoreBackend = "postgres"

	// StoreMemory keeps the index in process memory only.
	StoreMemory StoreBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreSQLite, StorePostgres, StoreMemory:
		return true
	default:
		return false
	}
}

// CorpusSettings configures document discovery.
type CorpusSettings struct {
	// Path is the corpus root directory.
	Path string

	// Extensions is the set of supported file extensions, lower case with leading dot.
	Extensions []string
}

// StoreSettings configures the Index Store location.
type StoreSettings struct {
	// Backend is the vector database engine.
	Backend StoreBackend

	// Path is the directory holding the SQLite index.
	Path string

	// DSN is the PostgreSQL connection string.
	DSN string

	// Collection is the collection name.
	Collection string
}

// ChunkingSettings configures the Chunk Extractor. Units are runes.
type ChunkingSettings struct {
	Size    int
	Overlap int
}

// RetrievalSettings configures the Retriever.
type RetrievalSettings struct {
	// TopK is the default number of chunks to retrieve.
	TopK int
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// BatchSize is the number of texts embedded per request.
	BatchSize int

	// RateLimit is the maximum requests per second (0 = unlimited).
	RateLimit float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds generation provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// RateLimit is the maximum requests per second (0 = unlimited).
	RateLimit float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// GenerationSettings controls answer synthesis.
type GenerationSettings struct {
	// Temperature is the sampling temperature.
	Temperature float64

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// ContextBudget is the maximum number of runes of retrieved context in a prompt.
	ContextBudget int
}

// Settings holds all application settings.
type Settings struct {
	Corpus     CorpusSettings
	Store      StoreSettings
	Chunking   ChunkingSettings
	Retrieval  RetrievalSettings
	Embedding  EmbeddingSettings
	LLM        LLMSettings
	Generation GenerationSettings
}

// Default values.
const (
	DefaultCorpusPath     = "documents"
	DefaultStorePath      = ".vectordb"
	DefaultCollection     = "docusearch_documents"
	DefaultChunkSize      = 512
	DefaultChunkOverlap   = 128
	DefaultTopK           = 5
	DefaultBatchSize      = 32
	DefaultTemperature    = 0.7
	DefaultMaxTokens      = 512
	DefaultContextBudget  = 6000
	DefaultOllamaURL      = "http://localhost:11434"
	DefaultEmbeddingModel = "nomic-embed-text"
	DefaultLLMModel       = "llama3.2"
)

// DefaultExtensions returns the supported document extensions.
// .doc and .ppt are discovered but have no parser, so they are reported as skipped.
func DefaultExtensions() []string {
	return []string{".pdf", ".docx", ".doc", ".pptx", ".ppt", ".html", ".htm", ".txt", ".md", ".xlsx"}
}

// DefaultSettings returns settings with sensible defaults.
// Both AI capabilities default to a local Ollama instance.
func DefaultSettings() Settings {
	return Settings{
		Corpus: CorpusSettings{
			Path:       DefaultCorpusPath,
			Extensions: DefaultExtensions(),
		},
		Store: StoreSettings{
			Backend:    StoreSQLite,
			Path:       DefaultStorePath,
			Collection: DefaultCollection,
		},
		Chunking: ChunkingSettings{
			Size:    DefaultChunkSize,
			Overlap: DefaultChunkOverlap,
		},
		Retrieval: RetrievalSettings{
			TopK: DefaultTopK,
		},
		Embedding: EmbeddingSettings{
			Provider:  AIProviderOllama,
			Model:     DefaultEmbeddingModel,
			BaseURL:   DefaultOllamaURL,
			BatchSize: DefaultBatchSize,
		},
		LLM: LLMSettings{
			Provider: AIProviderOllama,
			Model:    DefaultLLMModel,
			BaseURL:  DefaultOllamaURL,
		},
		Generation: GenerationSettings{
			Temperature:   DefaultTemperature,
			MaxTokens:     DefaultMaxTokens,
			ContextBudget: DefaultContextBudget,
		},
	}
}

// Validate checks settings that would otherwise fail mid-operation.
// All problems are reported together, wrapped in ErrInvalidConfig.
func (s Settings) Validate() error {
	var problems []string

	if s.Chunking.Size <= 0 {
		problems = append(problems, fmt.Sprintf("chunking.size must be positive (got %d)", s.Chunking.Size))
	}
	if s.Chunking.Overlap < 0 {
		problems = append(problems, fmt.Sprintf("chunking.overlap must not be negative (got %d)", s.Chunking.Overlap))
	}
	if s.Chunking.Size > 0 && s.Chunking.Overlap >= s.Chunking.Size {
		problems = append(problems, fmt.Sprintf("chunking.overlap (%d) must be smaller than chunking.size (%d)",
			s.Chunking.Overlap, s.Chunking.Size))
	}
	if s.Retrieval.TopK <= 0 {
		problems = append(problems, fmt.Sprintf("retrieval.top_k must be positive (got %d)", s.Retrieval.TopK))
	}
	if s.Generation.ContextBudget < s.Chunking.Size {
		problems = append(problems, fmt.Sprintf("generation.context_budget (%d) must be at least chunking.size (%d)",
			s.Generation.ContextBudget, s.Chunking.Size))
	}
	if s.Generation.MaxTokens < 0 {
		problems = append(problems, "generation.max_tokens must not be negative")
	}
	if s.Embedding.BatchSize <= 0 {
		problems = append(problems, fmt.Sprintf("embedding.batch_size must be positive (got %d)", s.Embedding.BatchSize))
	}
	if !s.Store.Backend.IsValid() {
		problems = append(problems, fmt.Sprintf("store.backend %q is not one of sqlite, postgres, memory", s.Store.Backend))
	}
	if s.Store.Backend == StorePostgres && s.Store.DSN == "" {
		problems = append(problems, "store.dsn is required for the postgres backend")
	}
	if strings.TrimSpace(s.Store.Collection) == "" {
		problems = append(problems, "store.collection must not be empty")
	}
	if len(s.Corpus.Extensions) == 0 {
		problems = append(problems, "corpus.extensions must not be empty")
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support generation.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderNone,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
// Unknown models are probed on first use.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// PipelineConfig holds post-processor pipeline configuration.
// Uses generic map-based config for extensibility - new processors can be added
// without modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	// Key is processor name, value is processor-specific config.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// PipelineConfigFor returns the chunking pipeline for the given chunking settings.
func PipelineConfigFor(c ChunkingSettings) PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker", "source"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": c.Size,
				"overlap":    c.Overlap,
			},
		},
	}
}

// Setting value sources, lowest precedence first.
const (
	SettingSourceDefault = "default"
	SettingSourceConfig  = "config"
	SettingSourceEnv     = "env"
)

// SettingEntry is one effective setting for display.
type SettingEntry struct {
	// Key is the dotted setting key.
	Key string

	// Value is the effective value. Secrets are masked.
	Value string

	// Source is where the value came from.
	Source string
}
