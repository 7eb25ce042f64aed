package driving

import "github.com/custodia-labs/docusearch/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get returns the effective settings: defaults, then config file, then environment.
	Get() (*domain.Settings, error)

	// Set persists a single setting by its dotted key (e.g. "chunking.size").
	Set(key, value string) error

	// Keys returns all recognised setting keys in display order.
	Keys() []string

	// Entries returns every effective setting with its source, in Keys order.
	Entries() ([]domain.SettingEntry, error)

	// Validate checks the effective settings.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.Settings

	// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
	ValidateEmbeddingConfig() error

	// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
	ValidateLLMConfig() error
}
