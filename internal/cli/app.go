package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harun/memindex/internal/config"
	"github.com/harun/memindex/internal/logger"
	"github.com/harun/memindex/internal/observability"
	"github.com/harun/memindex/internal/tracing"
	"github.com/harun/memindex/pkg/embedding"
	"github.com/harun/memindex/pkg/memory"
	"github.com/harun/memindex/pkg/notes"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app is everything a command needs, built from the loaded config.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	repo     memory.Repository
	source   *notes.Source
	embedder memory.EmbeddingProvider // nil when embedding.provider is "none"
	store    *memory.Store
	closers  []func() error
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		if err := config.NewValidator().ValidateLogLevel(logLevel); err != nil {
			return nil, err
		}
		cfg.Logging.Level = logLevel
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  lg.GetZerolog(),
		closers: []func() error{lg.Close},
	}

	if err := a.init(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init() error {
	cfg := a.cfg

	if cfg.Logging.AuditFile != "" {
		if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		a.closers = append(a.closers, observability.GetAuditLogger().Close)
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry("memindex", version, cfg.Tracing.SampleRatio); err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		a.closers = append(a.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return tracing.ShutdownOpenTelemetry(ctx)
		})
	}

	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		repo, err := memory.NewSQLiteRepository(cfg.Storage.Path, a.logger)
		if err != nil {
			return err
		}
		a.repo = repo
		a.closers = append(a.closers, repo.Close)
	default:
		a.repo = memory.NewFileRepository(cfg.Storage.Path, a.logger)
	}

	a.source = notes.NewSource(cfg.NotesDir, a.logger)

	embedder, err := embedding.New(embedding.Config{
		Provider:           cfg.Embedding.Provider,
		Model:              cfg.Embedding.Model,
		Host:               cfg.Embedding.Host,
		APIKey:             cfg.Embedding.APIKey,
		Dimension:          cfg.Embedding.Dimension,
		RateLimit:          cfg.Embedding.RateLimit,
		Burst:              cfg.Embedding.Burst,
		BreakerMaxFailures: cfg.Embedding.BreakerMaxFailures,
		BreakerTimeout:     cfg.Embedding.BreakerTimeout,
	}, a.logger)
	if err != nil {
		return err
	}
	a.embedder = embedder

	store, err := memory.NewStore(memory.StoreConfig{
		Repository: a.repo,
		Source:     a.source,
		Logger:     a.logger,
		Dimension:  cfg.Embedding.Dimension,
	})
	if err != nil {
		return err
	}
	a.store = store

	return nil
}

// requireEmbedder returns the embedder or an error when embedding is disabled.
func (a *app) requireEmbedder() (memory.EmbeddingProvider, error) {
	if a.embedder == nil {
		return nil, errors.New("embedding is disabled (embedding.provider is \"none\")")
	}
	return a.embedder, nil
}

// optionalEmbedder returns the embedder when enabled is set.
func (a *app) optionalEmbedder(enabled bool) (memory.EmbeddingProvider, error) {
	if !enabled {
		return nil, nil
	}
	return a.requireEmbedder()
}

func (a *app) searchEngine() *memory.SearchEngine {
	return memory.NewSearchEngine(a.repo, a.embedder, a.logger)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// commandContext starts a trace for the running command.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return tracing.NewCommandContext(ctx, cmd.Name())
}
