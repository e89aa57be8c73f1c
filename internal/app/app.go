// Package app wires configuration, storage, embedding, the Classroom
// connector and the core services into a cli.Runtime.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/classmate/internal/adapters/driven/config/file"
	"github.com/custodia-labs/classmate/internal/adapters/driven/embedding/cached"
	"github.com/custodia-labs/classmate/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/classmate/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/classmate/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/classmate/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/classmate/internal/adapters/driving/cli"
	"github.com/custodia-labs/classmate/internal/connectors/google/classroom"
	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
	"github.com/custodia-labs/classmate/internal/core/services"
	"github.com/custodia-labs/classmate/internal/logger"
	"github.com/custodia-labs/classmate/internal/postprocessors/chunker"
)

// storage is the store set both backends provide.
type storage interface {
	CourseStore() driven.CourseStore
	ContentStore() driven.ContentStore
	SyncRunStore() driven.SyncRunStore
	IndexStore() driven.IndexStore
	CredentialsStore() driven.CredentialsStore
	Close() error
}

// Build loads configuration and assembles the runtime.
func Build(ctx context.Context, opts cli.Options) (*cli.Runtime, error) {
	cfgStore, err := file.NewConfigStore(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg, err := cfgStore.Load()
	if err != nil {
		return nil, err
	}
	if opts.Ephemeral {
		cfg.Storage.Ephemeral = true
	}
	if opts.Verbose || cfg.Log.Verbose {
		logger.SetVerbose(true)
	}
	return New(ctx, cfg)
}

// New assembles the runtime for an already loaded configuration.
func New(ctx context.Context, cfg domain.Config) (*cli.Runtime, error) {
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}

	embedder := newEmbedder(cfg.Embedding)
	cleanup := func() error {
		return errors.Join(embedder.Close(), store.Close())
	}

	index := store.IndexStore()
	model := domain.EmbeddingModel{Name: embedder.ModelName(), Dimensions: embedder.Dimensions()}
	if err := index.EnsureModel(ctx, model); err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("pinning embedding model: %w", err)
	}

	indexer := services.NewIndexer(
		store.ContentStore(),
		index,
		chunker.New(
			chunker.WithChunkSize(cfg.Index.ChunkSize),
			chunker.WithOverlap(cfg.Index.ChunkOverlap),
		),
		embedder,
		services.WithEmbedRetries(cfg.Index.EmbedRetries),
		services.WithWriteRetries(cfg.Index.WriteRetries),
	)

	credentials := store.CredentialsStore()
	engine := services.NewSyncEngine(
		store.CourseStore(),
		store.ContentStore(),
		store.SyncRunStore(),
		classroom.NewFactory(credentials, cfg.Google),
		indexer,
		services.WithBackoffPolicy(services.BackoffPolicyFromConfig(cfg.Sync)),
		services.WithConcurrency(cfg.Sync.Concurrency),
	)
	if _, err := engine.Recover(ctx); err != nil {
		_ = cleanup()
		return nil, err
	}

	rt := &cli.Runtime{
		Config:      cfg,
		Sync:        engine,
		QA:          services.NewQAEngine(embedder, index, cfg.QA),
		Access:      services.NewMembershipAccess(store.CourseStore()),
		Courses:     store.CourseStore(),
		Credentials: credentials,
		Close:       cleanup,
	}
	if cfg.Sync.Schedule != "" {
		rt.Scheduler = services.NewScheduler(cfg.Sync.Schedule, credentials, engine)
	}
	return rt, nil
}

func openStorage(cfg domain.StorageConfig) (storage, error) {
	if cfg.Ephemeral {
		logger.Debug("Using in-memory storage")
		return memory.NewStore(), nil
	}
	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	logger.Debug("Using SQLite storage at %s", store.Path())
	return store, nil
}

func newEmbedder(cfg domain.EmbeddingConfig) driven.EmbeddingService {
	var base driven.EmbeddingService
	switch cfg.Provider {
	case "ollama":
		base = ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    cfg.OllamaURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	default:
		base = hashing.NewEmbeddingService(hashing.Config{
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	}
	if cfg.CacheSize > 0 {
		return cached.New(base, cfg.CacheSize)
	}
	return base
}
