package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/jonathan/shabda-setu/internal/cache"
	"github.com/jonathan/shabda-setu/internal/config"
	"github.com/jonathan/shabda-setu/internal/db"
	"github.com/jonathan/shabda-setu/internal/db/memory"
	"github.com/jonathan/shabda-setu/internal/observability"
	"github.com/jonathan/shabda-setu/internal/orchestrator"
	"github.com/jonathan/shabda-setu/internal/pipeline"
	"github.com/jonathan/shabda-setu/internal/promotion"
	"github.com/jonathan/shabda-setu/internal/ratelimit"
	"github.com/jonathan/shabda-setu/internal/scoring"
	"github.com/jonathan/shabda-setu/internal/verifier"
)

// app holds what every subcommand needs
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	printer *observability.Printer
}

func loadApp(out io.Writer) (*app, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(cfg.Log, verbose)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, printer: observability.NewPrinter(out)}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// openStore connects to PostgreSQL, or returns an in-memory store for dry runs.
// Tests replace it.
var openStore = func(ctx context.Context, cfg *config.Config, dryRun bool) (db.Store, func(), error) {
	if dryRun {
		return memory.New(), func() {}, nil
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL environment variable or database_url config is required")
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return database, database.Close, nil
}

// runtime is the wired verification pipeline
type runtime struct {
	pipeline  *pipeline.Pipeline
	engine    *promotion.Engine
	verifiers *verifier.Set
	cache     *cache.Cache
	cleanup   func()
}

func (r *runtime) close() {
	if r.verifiers != nil {
		_ = r.verifiers.Close()
	}
	if r.cache != nil {
		_ = r.cache.Close()
	}
	if r.cleanup != nil {
		r.cleanup()
	}
}

func (a *app) buildRuntime(ctx context.Context, dryRun, offline bool, onProgress pipeline.ProgressCallback) (*runtime, error) {
	rt := &runtime{}

	store, cleanup, err := openStore(ctx, a.cfg, dryRun)
	if err != nil {
		return nil, err
	}
	rt.cleanup = cleanup

	if rt.cache, err = cache.Open(a.cfg.Cache.Path, a.logger); err != nil {
		rt.close()
		return nil, err
	}
	if rt.verifiers, err = verifier.Build(ctx, a.cfg, rt.cache, a.logger, verifier.BuildOptions{Offline: offline}); err != nil {
		rt.close()
		return nil, err
	}

	orch := orchestrator.FromConfig(a.cfg, rt.verifiers.Verifiers(), ratelimit.FromConfig(a.cfg.Verifiers), a.logger)
	rt.engine = promotion.New(store, scoring.FromConfig(a.cfg), a.logger)
	rt.pipeline = pipeline.New(store, orch, rt.engine, pipeline.Options{
		Workers:    a.cfg.Pipeline.Workers,
		Logger:     a.logger,
		OnProgress: onProgress,
	})
	return rt, nil
}
