package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docusearch/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the corpus, vector store, chunking, retrieval and AI
provider settings.

Settings are read from defaults, ~/.docusearch/config.toml and the
environment, in increasing precedence.`,
	Annotations: scoped(ScopeSettings),
	RunE:        runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a setting",
	Long: `Persist a single setting to the config file.

Examples:
  docusearch settings set chunking.size 800
  docusearch settings set llm.provider none
  docusearch settings set corpus.extensions .md,.txt`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Interactively choose the embedding provider and model used to index and query.`,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Interactively choose the generation backend used to answer questions.`,
	RunE:  runSettingsLLM,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	entries, err := settingsService.Entries()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")

	group := ""
	for _, e := range entries {
		section, _, _ := strings.Cut(e.Key, ".")
		if section != group {
			group = section
			cmd.Printf("\n[%s]\n", section)
		}
		value := e.Value
		if value == "" {
			value = "(not set)"
		}
		cmd.Printf("  %-26s %s", e.Key, value)
		if e.Source != "" && e.Source != domain.SettingSourceDefault {
			cmd.Printf("  (%s)", e.Source)
		}
		cmd.Println()
	}
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'docusearch settings set <key> <value>' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	key, value := args[0], args[1]
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	display := value
	if isSecretKey(key) {
		display = maskAPIKey(value)
	}
	cmd.Printf("Set %s = %s\n", key, display)
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureProvider(cmd, reader, providerPrompt{
		label:     "Embedding",
		prefix:    "embedding",
		providers: domain.AllEmbeddingProviders(),
		models:    domain.DefaultEmbeddingModels(),
		validate:  settingsService.ValidateEmbeddingConfig,
	})
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureProvider(cmd, reader, providerPrompt{
		label:     "LLM",
		prefix:    "llm",
		providers: domain.AllLLMProviders(),
		models:    domain.DefaultLLMModels(),
		validate:  settingsService.ValidateLLMConfig,
	})
}

// providerPrompt describes one interactive provider selection.
type providerPrompt struct {
	label     string
	prefix    string
	providers []domain.AIProvider
	models    map[domain.AIProvider]string
	validate  func() error
}

func configureProvider(cmd *cobra.Command, reader *bufio.Reader, p providerPrompt) error {
	cmd.Printf("Select %s Provider\n", p.label)
	for i, provider := range p.providers {
		cmd.Printf("  %d. %s\n", i+1, provider.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(p.providers), 1)
	selected := p.providers[idx-1]

	if err := settingsService.Set(p.prefix+".provider", selected.String()); err != nil {
		return fmt.Errorf("failed to configure %s provider: %w", p.label, err)
	}
	if selected == domain.AIProviderNone {
		cmd.Printf("%s provider disabled\n", p.label)
		return nil
	}

	defaultModel := p.models[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}
	if err := settingsService.Set(p.prefix+".model", model); err != nil {
		return fmt.Errorf("failed to configure %s model: %w", p.label, err)
	}

	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey := readPassword(cmd, reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
		if err := settingsService.Set(p.prefix+".api_key", apiKey); err != nil {
			return fmt.Errorf("failed to configure %s API key: %w", p.label, err)
		}
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := p.validate(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("%s configuration validation failed: %w", p.label, err)
	}
	cmd.Println("OK")

	cmd.Printf("%s provider configured: %s (%s)\n", p.label, selected.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

func readPassword(cmd *cobra.Command, reader *bufio.Reader) string {
	// Try to read password without echo
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(key, ".api_key") || key == "store.dsn"
}
