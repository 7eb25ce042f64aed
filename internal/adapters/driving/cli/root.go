// Package cli provides the cobra command-line interface for docusearch.
// It implements a driving adapter following hexagonal architecture principles.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driving"
	"github.com/custodia-labs/docusearch/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Exit codes returned by ExitCode.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfigError = 2
)

// bootstrapAnnotation marks how much of the application a command needs.
const bootstrapAnnotation = "bootstrap"

// Bootstrap scopes.
const (
	// ScopeNone skips bootstrapping entirely.
	ScopeNone = "none"
	// ScopeSettings wires only the settings service.
	ScopeSettings = "settings"
	// ScopeFull wires the store, AI backends and every service.
	ScopeFull = "full"
)

// Options carries the persistent flag values to the bootstrap hook.
type Options struct {
	// Scope is one of ScopeSettings or ScopeFull.
	Scope string

	ConfigDir    string
	StoreBackend string
	StorePath    string
	Collection   string
	MetricsAddr  string
	Verbose      bool
}

// Services holds the driving ports used by the commands.
type Services struct {
	Indexing  driving.IndexingService
	Retriever driving.Retriever
	Answer    driving.AnswerService
	Settings  driving.SettingsService
}

// BootstrapFunc wires the application for a command. The returned cleanup
// function is called once the command finishes.
type BootstrapFunc func(ctx context.Context, opts Options) (*Services, func(), error)

// Service instances, set by bootstrap or directly by tests.
var (
	indexingService  driving.IndexingService
	retrieverService driving.Retriever
	answerService    driving.AnswerService
	settingsService  driving.SettingsService
)

var (
	bootstrap BootstrapFunc
	cleanupFn func()
)

// Persistent flag values.
var (
	verbose      bool
	logFormat    string
	configDir    string
	storeBackend string
	storePath    string
	collection   string
	metricsAddr  string
)

var rootCmd = &cobra.Command{
	Use:   "docusearch",
	Short: "Ask questions about your documents",
	Long: `docusearch indexes a local directory of documents into a vector store
and answers questions using only what those documents say.

Get started:
  docusearch build ./documents
  docusearch query "What does the onboarding guide say about laptops?"
  docusearch interactive`,
	SilenceUsage:      true,
	PersistentPreRunE: persistentPreRun,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	flags.StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.docusearch)")
	flags.StringVar(&storeBackend, "store-backend", "", "vector store backend (sqlite, postgres or memory)")
	flags.StringVar(&storePath, "store", "", "vector store directory (overrides store.path)")
	flags.StringVar(&collection, "collection", "", "collection name (overrides store.collection)")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

// SetBootstrap sets the hook that wires services before a command runs.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// SetServices sets the service instances used by the commands.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	indexingService = s.Indexing
	retrieverService = s.Retriever
	answerService = s.Answer
	settingsService = s.Settings
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	defer runCleanup()
	// cmd.Print* writes to stderr unless an output is set
	rootCmd.SetOut(os.Stdout)
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case domain.IsConfigError(err):
		return ExitConfigError
	default:
		return ExitFailure
	}
}

func persistentPreRun(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	switch logFormat {
	case "text", "json":
		logger.SetFormat(logFormat)
	default:
		return fmt.Errorf("%w: --log-format must be text or json", domain.ErrInvalidInput)
	}

	scope := commandScope(cmd)
	if scope == ScopeNone || bootstrap == nil || servicesReady(scope) {
		return nil
	}

	services, cleanup, err := bootstrap(cmd.Context(), Options{
		Scope:        scope,
		ConfigDir:    configDir,
		StoreBackend: storeBackend,
		StorePath:    storePath,
		Collection:   collection,
		MetricsAddr:  metricsAddr,
		Verbose:      verbose,
	})
	if err != nil {
		return err
	}
	SetServices(services)
	cleanupFn = cleanup
	return nil
}

// commandScope returns the bootstrap scope of the nearest annotated command.
func commandScope(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		// Generated help and completion commands
		if c.Name() == "help" || c.Name() == "completion" {
			return ScopeNone
		}
		if scope, ok := c.Annotations[bootstrapAnnotation]; ok {
			return scope
		}
	}
	return ScopeFull
}

func servicesReady(scope string) bool {
	if scope == ScopeSettings {
		return settingsService != nil
	}
	return answerService != nil && indexingService != nil
}

func runCleanup() {
	if cleanupFn != nil {
		cleanupFn()
		cleanupFn = nil
	}
}

// scoped returns an annotation map for the given bootstrap scope.
func scoped(scope string) map[string]string {
	return map[string]string{bootstrapAnnotation: scope}
}

// errNotConfigured builds the error returned when a service is missing.
func errNotConfigured(name string) error {
	return errors.New(name + " service not configured")
}
