package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/spherical/pdf-fidelity/cmd/pdf-fidelity/ui"
	"github.com/spherical/pdf-fidelity/internal/aggregate"
	"github.com/spherical/pdf-fidelity/internal/baseline"
	"github.com/spherical/pdf-fidelity/internal/cache"
	"github.com/spherical/pdf-fidelity/internal/config"
	"github.com/spherical/pdf-fidelity/internal/domain"
	"github.com/spherical/pdf-fidelity/internal/engine"
	"github.com/spherical/pdf-fidelity/internal/extract"
	"github.com/spherical/pdf-fidelity/internal/manifest"
	"github.com/spherical/pdf-fidelity/internal/observability"
	"github.com/spherical/pdf-fidelity/internal/registry"
)

// app holds the components shared by commands
type app struct {
	cfg      *config.Config
	logger   *observability.Logger
	engine   domain.Engine
	registry *registry.Registry
	store    *manifest.Store
	cache    cache.Client
}

// commandContext is cancelled on SIGINT or SIGTERM
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadConfig reads .env, the config file and flag overrides
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load() // a missing .env is fine

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Observability.LogLevel = "debug"
	}
	return cfg, nil
}

// newApp wires configuration, logging, registry, manifest store and cache.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	ui.InitUI(noColor, jsonOut)
	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "pdf-fidelity",
	})

	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	if cfg.Database.Driver == "sqlite" && cfg.Database.SQLite.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLite.Path), 0o755); err != nil {
			return nil, domain.IOError("create manifest directory", err)
		}
	}
	store, err := manifest.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open manifest store: %w", err)
	}

	rasters, err := cache.New(cfg.Cache)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("connect raster cache: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		engine:   engine.NewFitz(),
		registry: reg,
		store:    store,
		cache:    rasters,
	}, nil
}

// Close releases the store and cache
func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close raster cache")
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close manifest store")
	}
}

func (a *app) metadataScope() domain.MetadataScope {
	if a.cfg.Extraction.FullMetadata {
		return domain.MetadataAllPages
	}
	return domain.MetadataFirstPage
}

// candidate builds the parallel producer with the given worker count
func (a *app) candidate(workers int) (*extract.Producer, error) {
	agg, err := aggregate.New(aggregate.Options{
		Scope:       a.metadataScope(),
		JPEGQuality: a.cfg.Extraction.JPEGQuality,
	})
	if err != nil {
		return nil, err
	}
	svc := extract.NewService(a.engine, extract.Options{
		Workers:     workers,
		DPI:         a.cfg.Extraction.DPI,
		PageTimeout: a.cfg.Extraction.PageTimeout,
	}, a.logger)
	return extract.NewProducer(extract.CandidateProducer, svc, agg), nil
}

// baselines builds the reference generator
func (a *app) baselines() (*baseline.Generator, error) {
	return baseline.NewGenerator(a.engine, a.store, a.cache, baseline.Options{
		Dir:         a.cfg.Baseline.Dir,
		DPI:         a.cfg.Extraction.DPI,
		JPEGQuality: a.cfg.Extraction.JPEGQuality,
		PageTimeout: a.cfg.Extraction.PageTimeout,
		Scope:       a.metadataScope(),
		CacheTTL:    a.cfg.Cache.TTL,
	}, a.logger)
}

// selectDocuments resolves explicit ids or the --query flag. Explicit ids
// select exactly those documents; everything else is skipped.
func (a *app) selectDocuments(ids []string) (selected, skipped []domain.Document, err error) {
	if len(ids) == 0 {
		q, err := registry.ParseQuery(queryArg)
		if err != nil {
			return nil, nil, err
		}
		selected, skipped = a.registry.Select(q)
		return selected, skipped, nil
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, err := a.registry.Get(id); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", id, err)
		}
		want[id] = true
	}
	for _, doc := range a.registry.All() {
		if want[doc.ID] {
			selected = append(selected, doc)
		} else {
			skipped = append(skipped, doc)
		}
	}
	return selected, skipped, nil
}
