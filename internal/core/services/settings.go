package services

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
	"github.com/custodia-labs/docusearch/internal/core/ports/driving"
	"github.com/custodia-labs/docusearch/internal/logger"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyCorpusPath       = "corpus.path"
	keyCorpusExtensions = "corpus.extensions"
	keyStoreBackend     = "store.backend"
	keyStorePath        = "store.path"
	keyStoreDSN         = "store.dsn"
	keyStoreCollection  = "store.collection"
	keyChunkSize        = "chunking.size"
	keyChunkOverlap     = "chunking.overlap"
	keyTopK             = "retrieval.top_k"
	keyEmbedProvider    = "embedding.provider"
	keyEmbedModel       = "embedding.model"
	keyEmbedBaseURL     = "embedding.base_url"
	keyEmbedAPIKey      = "embedding.api_key"
	keyEmbedBatchSize   = "embedding.batch_size"
	keyEmbedRateLimit   = "embedding.rate_limit"
	keyLLMProvider      = "llm.provider"
	keyLLMModel         = "llm.model"
	keyLLMBaseURL       = "llm.base_url"
	keyLLMAPIKey        = "llm.api_key"
	keyLLMRateLimit     = "llm.rate_limit"
	keyTemperature      = "generation.temperature"
	keyMaxTokens        = "generation.max_tokens"
	keyContextBudget    = "generation.context_budget"
)

// Provider API key environment variables.
//
//nolint:gosec // G101: environment variable names, not credentials.
const (
	envOpenAIKey    = "OPENAI_API_KEY"
	envAnthropicKey = "ANTHROPIC_API_KEY"
)

// settingDef binds a dotted key to a settings field and an optional
// environment variable override.
type settingDef struct {
	key    string
	env    string
	secret bool
	field  func(*domain.Settings) any
}

// settingDefs lists every setting in display order.
var settingDefs = []settingDef{
	{key: keyCorpusPath, env: "DOCUSEARCH_CORPUS", field: func(s *domain.Settings) any { return &s.Corpus.Path }},
	{key: keyCorpusExtensions, env: "DOCUSEARCH_EXTENSIONS", field: func(s *domain.Settings) any { return &s.Corpus.Extensions }},
	{key: keyStoreBackend, env: "DOCUSEARCH_STORE", field: func(s *domain.Settings) any { return &s.Store.Backend }},
	{key: keyStorePath, env: "DOCUSEARCH_STORE_PATH", field: func(s *domain.Settings) any { return &s.Store.Path }},
	{key: keyStoreDSN, env: "DOCUSEARCH_DSN", secret: true, field: func(s *domain.Settings) any { return &s.Store.DSN }},
	{key: keyStoreCollection, env: "DOCUSEARCH_COLLECTION", field: func(s *domain.Settings) any { return &s.Store.Collection }},
	{key: keyChunkSize, env: "DOCUSEARCH_CHUNK_SIZE", field: func(s *domain.Settings) any { return &s.Chunking.Size }},
	{key: keyChunkOverlap, env: "DOCUSEARCH_CHUNK_OVERLAP", field: func(s *domain.Settings) any { return &s.Chunking.Overlap }},
	{key: keyTopK, env: "DOCUSEARCH_TOP_K", field: func(s *domain.Settings) any { return &s.Retrieval.TopK }},
	{key: keyEmbedProvider, env: "DOCUSEARCH_EMBEDDING_PROVIDER", field: func(s *domain.Settings) any { return &s.Embedding.Provider }},
	{key: keyEmbedModel, env: "DOCUSEARCH_EMBEDDING_MODEL", field: func(s *domain.Settings) any { return &s.Embedding.Model }},
	{key: keyEmbedBaseURL, env: "DOCUSEARCH_EMBEDDING_URL", field: func(s *domain.Settings) any { return &s.Embedding.BaseURL }},
	{key: keyEmbedAPIKey, secret: true, field: func(s *domain.Settings) any { return &s.Embedding.APIKey }},
	{key: keyEmbedBatchSize, env: "DOCUSEARCH_EMBEDDING_BATCH_SIZE", field: func(s *domain.Settings) any { return &s.Embedding.BatchSize }},
	{key: keyEmbedRateLimit, field: func(s *domain.Settings) any { return &s.Embedding.RateLimit }},
	{key: keyLLMProvider, env: "DOCUSEARCH_LLM_PROVIDER", field: func(s *domain.Settings) any { return &s.LLM.Provider }},
	{key: keyLLMModel, env: "DOCUSEARCH_LLM_MODEL", field: func(s *domain.Settings) any { return &s.LLM.Model }},
	{key: keyLLMBaseURL, env: "DOCUSEARCH_LLM_URL", field: func(s *domain.Settings) any { return &s.LLM.BaseURL }},
	{key: keyLLMAPIKey, secret: true, field: func(s *domain.Settings) any { return &s.LLM.APIKey }},
	{key: keyLLMRateLimit, field: func(s *domain.Settings) any { return &s.LLM.RateLimit }},
	{key: keyTemperature, env: "DOCUSEARCH_TEMPERATURE", field: func(s *domain.Settings) any { return &s.Generation.Temperature }},
	{key: keyMaxTokens, env: "DOCUSEARCH_MAX_TOKENS", field: func(s *domain.Settings) any { return &s.Generation.MaxTokens }},
	{key: keyContextBudget, env: "DOCUSEARCH_CONTEXT_BUDGET", field: func(s *domain.Settings) any { return &s.Generation.ContextBudget }},
}

// SettingsService resolves application settings from defaults, the config
// store and the environment, in increasing precedence.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get returns the effective settings.
func (s *SettingsService) Get() (*domain.Settings, error) {
	settings, _ := s.resolve()
	return settings, nil
}

// Keys returns all recognised setting keys in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settingDefs))
	for i, def := range settingDefs {
		keys[i] = def.key
	}
	return keys
}

// Entries returns every effective setting with the source it came from.
func (s *SettingsService) Entries() ([]domain.SettingEntry, error) {
	settings, sources := s.resolve()

	entries := make([]domain.SettingEntry, 0, len(settingDefs))
	for _, def := range settingDefs {
		value := formatField(def.field(settings))
		if def.secret && value != "" {
			value = maskSecret(value)
		}
		entries = append(entries, domain.SettingEntry{
			Key:    def.key,
			Value:  value,
			Source: sources[def.key],
		})
	}
	return entries, nil
}

// Set parses and persists a single setting.
func (s *SettingsService) Set(key, value string) error {
	def, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidConfig, key)
	}

	scratch := domain.DefaultSettings()
	field := def.field(&scratch)
	if err := assignField(field, value); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, key, err)
	}
	if err := checkProvider(key, field); err != nil {
		return err
	}

	if err := s.configStore.Set(key, storedValue(field)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Validate checks the effective settings.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := checkProvider(keyEmbedProvider, &settings.Embedding.Provider); err != nil {
		return err
	}
	if err := checkProvider(keyLLMProvider, &settings.LLM.Provider); err != nil {
		return err
	}
	return settings.Validate()
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// resolve layers the config store and environment over the defaults and
// records which layer supplied each key. Unparseable values are ignored
// with a warning, leaving the lower layer in place.
func (s *SettingsService) resolve() (*domain.Settings, map[string]string) {
	settings := domain.DefaultSettings()
	sources := make(map[string]string, len(settingDefs))

	for _, def := range settingDefs {
		sources[def.key] = domain.SettingSourceDefault
		field := def.field(&settings)

		if s.configStore != nil {
			if raw, ok := s.configValue(def.key, field); ok {
				if err := applyLayer(def.key, field, raw); err != nil {
					logger.Warn("Ignoring config value for %s: %v", def.key, err)
				} else {
					sources[def.key] = domain.SettingSourceConfig
				}
			}
		}

		if def.env == "" {
			continue
		}
		if raw, ok := os.LookupEnv(def.env); ok && raw != "" {
			if err := applyLayer(def.key, field, raw); err != nil {
				logger.Warn("Ignoring %s: %v", def.env, err)
			} else {
				sources[def.key] = domain.SettingSourceEnv
			}
		}
	}

	applyProviderDefaults(&settings, sources)
	applyProviderKeys(&settings, sources)
	return &settings, sources
}

// configValue reads a key from the config store as a string.
func (s *SettingsService) configValue(key string, field any) (string, bool) {
	if _, isList := field.(*[]string); isList {
		list := s.configStore.GetStringSlice(key)
		if list == nil {
			return "", false
		}
		return strings.Join(list, ","), true
	}

	v, ok := s.configStore.Get(key)
	if !ok {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, val != ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return fmt.Sprint(val), true
	}
}

// applyLayer assigns raw to field, leaving field unchanged on any error.
func applyLayer(key string, field any, raw string) error {
	before := formatField(field)
	if err := assignField(field, raw); err != nil {
		return err
	}
	if err := checkProvider(key, field); err != nil {
		_ = assignField(field, before)
		return err
	}
	return nil
}

// applyProviderDefaults swaps the Ollama model and URL defaults for the
// chosen provider's when the user has not set them.
func applyProviderDefaults(settings *domain.Settings, sources map[string]string) {
	if p := settings.Embedding.Provider; p != domain.AIProviderOllama {
		if sources[keyEmbedModel] == domain.SettingSourceDefault {
			settings.Embedding.Model = domain.DefaultEmbeddingModels()[p]
		}
		if sources[keyEmbedBaseURL] == domain.SettingSourceDefault {
			settings.Embedding.BaseURL = ""
		}
	}
	if p := settings.LLM.Provider; p != domain.AIProviderOllama {
		if sources[keyLLMModel] == domain.SettingSourceDefault {
			settings.LLM.Model = domain.DefaultLLMModels()[p]
		}
		if sources[keyLLMBaseURL] == domain.SettingSourceDefault {
			settings.LLM.BaseURL = ""
		}
	}
}

// applyProviderKeys fills API keys from the providers' conventional
// environment variables when no key was configured.
func applyProviderKeys(settings *domain.Settings, sources map[string]string) {
	envKey := func(p domain.AIProvider) string {
		switch p {
		case domain.AIProviderOpenAI:
			return os.Getenv(envOpenAIKey)
		case domain.AIProviderAnthropic:
			return os.Getenv(envAnthropicKey)
		default:
			return ""
		}
	}

	if settings.Embedding.APIKey == "" {
		if key := envKey(settings.Embedding.Provider); key != "" {
			settings.Embedding.APIKey = key
			sources[keyEmbedAPIKey] = domain.SettingSourceEnv
		}
	}
	if settings.LLM.APIKey == "" {
		if key := envKey(settings.LLM.Provider); key != "" {
			settings.LLM.APIKey = key
			sources[keyLLMAPIKey] = domain.SettingSourceEnv
		}
	}
}

func lookupSetting(key string) (settingDef, bool) {
	for _, def := range settingDefs {
		if def.key == key {
			return def, true
		}
	}
	return settingDef{}, false
}

// checkProvider rejects providers that cannot serve the capability.
func checkProvider(key string, field any) error {
	p, ok := field.(*domain.AIProvider)
	if !ok {
		return nil
	}
	var allowed []domain.AIProvider
	switch key {
	case keyEmbedProvider:
		allowed = domain.AllEmbeddingProviders()
	case keyLLMProvider:
		allowed = domain.AllLLMProviders()
	default:
		return nil
	}
	if !slices.Contains(allowed, *p) {
		return fmt.Errorf("%w: %s %q is not supported", domain.ErrInvalidConfig, key, *p)
	}
	return nil
}

// assignField parses raw into the field's type.
func assignField(field any, raw string) error {
	raw = strings.TrimSpace(raw)
	switch f := field.(type) {
	case *string:
		*f = raw
	case *int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%q is not an integer", raw)
		}
		*f = n
	case *float64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%q is not a number", raw)
		}
		*f = v
	case *[]string:
		*f = splitExtensions(raw)
	case *domain.AIProvider:
		*f = domain.AIProvider(strings.ToLower(raw))
	case *domain.StoreBackend:
		b := domain.StoreBackend(strings.ToLower(raw))
		if !b.IsValid() {
			return fmt.Errorf("%q is not one of sqlite, postgres, memory", raw)
		}
		*f = b
	default:
		return fmt.Errorf("unsupported setting type %T", field)
	}
	return nil
}

// formatField renders a field for display and round-tripping.
func formatField(field any) string {
	switch f := field.(type) {
	case *string:
		return *f
	case *int:
		return strconv.Itoa(*f)
	case *float64:
		return strconv.FormatFloat(*f, 'f', -1, 64)
	case *[]string:
		return strings.Join(*f, ",")
	case *domain.AIProvider:
		return f.String()
	case *domain.StoreBackend:
		return string(*f)
	default:
		return ""
	}
}

// storedValue returns the typed value written to the config store.
func storedValue(field any) any {
	switch f := field.(type) {
	case *int:
		return *f
	case *float64:
		return *f
	case *[]string:
		return *f
	default:
		return formatField(field)
	}
}

// splitExtensions parses a comma-separated extension list into lower-case,
// dot-prefixed, de-duplicated entries.
func splitExtensions(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if !slices.Contains(out, ext) {
			out = append(out, ext)
		}
	}
	return out
}

func maskSecret(v string) string {
	if len(v) <= 8 {
		return "****"
	}
	return v[:4] + "****" + v[len(v)-4:]
}
