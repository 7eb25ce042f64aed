package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/custodia-labs/docusearch/internal/adapters/driven/ai"
	"github.com/custodia-labs/docusearch/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docusearch/internal/adapters/driven/corpus/filesystem"
	"github.com/custodia-labs/docusearch/internal/adapters/driven/metrics"
	"github.com/custodia-labs/docusearch/internal/adapters/driven/resilience"
	"github.com/custodia-labs/docusearch/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docusearch/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/docusearch/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docusearch/internal/adapters/driving/cli"
	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
	"github.com/custodia-labs/docusearch/internal/core/services"
	"github.com/custodia-labs/docusearch/internal/logger"
	"github.com/custodia-labs/docusearch/internal/normalisers"
	"github.com/custodia-labs/docusearch/internal/postprocessors"
)

// metricsShutdownTimeout bounds how long the metrics server may drain.
const metricsShutdownTimeout = 2 * time.Second

// bootstrap wires the application for one command.
func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("Shutdown: %v", err)
			}
		}
	}
	fail := func(err error) (*cli.Services, func(), error) {
		cleanup()
		return nil, nil, err
	}

	logger.Section("Configuration")
	configStore, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return fail(fmt.Errorf("open config: %w", err))
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	if opts.Scope == cli.ScopeSettings {
		return &cli.Services{Settings: settingsService}, cleanup, nil
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fail(err)
	}
	applyOverrides(settings, opts)
	if err := settings.Validate(); err != nil {
		return fail(err)
	}

	store, err := openStore(ctx, settings.Store)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, store.Close)

	aiServices, err := ai.NewServices(*settings, resilience.DefaultConfig())
	if err != nil {
		return fail(err)
	}
	closers = append(closers, aiServices.Close)
	for _, w := range aiServices.Warnings {
		logger.Warn("%s", w)
	}

	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	pipeline, err := registry.BuildPipeline(domain.PipelineConfigFor(settings.Chunking))
	if err != nil {
		return fail(err)
	}

	promptDir := ""
	if opts.ConfigDir != "" {
		promptDir = filepath.Join(opts.ConfigDir, "prompts")
	}
	prompts, err := file.NewPromptStore(promptDir)
	if err != nil {
		return fail(err)
	}

	corpus := filesystem.New()
	extractor := services.NewChunkExtractor(corpus, normalisers.NewDefaultRegistry(), pipeline)
	index := services.NewIndexStore(store, aiServices.Embedding, services.IndexStoreConfig{
		Collection: settings.Store.Collection,
		BatchSize:  settings.Embedding.BatchSize,
		Chunking:   settings.Chunking,
	})
	indexing := services.NewIndexingPipeline(corpus, extractor, index, *settings)
	retriever := services.NewRetriever(index, settings.Retrieval.TopK)
	answer := services.NewAnswerSynthesizer(retriever, aiServices.LLM, settings.Generation)
	answer.SetPromptStore(prompts)

	if opts.MetricsAddr != "" {
		recorder := metrics.NewRecorder()
		index.SetMetrics(recorder)
		indexing.SetMetrics(recorder)
		answer.SetMetrics(recorder)
		closers = append(closers, serveMetrics(opts.MetricsAddr, recorder))
	}

	return &cli.Services{
		Indexing:  indexing,
		Retriever: retriever,
		Answer:    answer,
		Settings:  settingsService,
	}, cleanup, nil
}

// applyOverrides applies command-line flags over the resolved settings.
func applyOverrides(settings *domain.Settings, opts cli.Options) {
	if opts.StoreBackend != "" {
		settings.Store.Backend = domain.StoreBackend(opts.StoreBackend)
	}
	if opts.StorePath != "" {
		settings.Store.Path = opts.StorePath
	}
	if opts.Collection != "" {
		settings.Store.Collection = opts.Collection
	}
}

// openStore opens the configured vector store backend.
func openStore(ctx context.Context, cfg domain.StoreSettings) (driven.VectorStore, error) {
	logger.Section("Vector Store")
	logger.Debug("backend: %s", cfg.Backend)

	switch cfg.Backend {
	case domain.StoreMemory:
		return memory.NewVectorStore(), nil
	case domain.StorePostgres:
		store, err := postgres.NewStore(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	case domain.StoreSQLite, "":
		logger.Debug("path: %s", cfg.Path)
		store, err := sqlite.NewStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", domain.ErrInvalidConfig, cfg.Backend)
	}
}

// serveMetrics starts the metrics endpoint and returns its shutdown function.
func serveMetrics(addr string, recorder *metrics.Recorder) func() error {
	server := metrics.NewServer(addr, recorder)
	go func() {
		logger.Info("Serving metrics on %s/metrics", server.Addr())
		if err := server.ListenAndServe(); err != nil {
			logger.Warn("Metrics server stopped: %v", err)
		}
	}()
	return func() error {
		if err := server.Shutdown(metricsShutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	}
}
