// Package baseline produces reference artifacts with a single sequential
// worker and persists them as versioned manifest entries.
package baseline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spherical/pdf-fidelity/internal/aggregate"
	"github.com/spherical/pdf-fidelity/internal/cache"
	"github.com/spherical/pdf-fidelity/internal/domain"
	"github.com/spherical/pdf-fidelity/internal/extract"
	"github.com/spherical/pdf-fidelity/internal/manifest"
	"github.com/spherical/pdf-fidelity/internal/observability"
	"github.com/spherical/pdf-fidelity/internal/pdf"
)

// Options configures baseline production
type Options struct {
	Dir         string
	DPI         float64
	JPEGQuality int
	PageTimeout time.Duration
	Scope       domain.MetadataScope
	CacheTTL    time.Duration
}

// Generator writes and loads reference baselines
type Generator struct {
	engine    domain.Engine
	producer  *extract.Producer
	encoder   *pdf.RasterEncoder
	validator *pdf.Validator
	store     *manifest.Store
	cache     cache.Client
	opts      Options
	logger    *observability.Logger
}

// NewGenerator creates a generator whose reference producer uses one worker
func NewGenerator(engine domain.Engine, store *manifest.Store, rasters cache.Client, opts Options, logger *observability.Logger) (*Generator, error) {
	if opts.Dir == "" {
		return nil, domain.ValidationError("baseline directory is required", nil)
	}
	if logger == nil {
		logger = observability.Nop()
	}

	agg, err := aggregate.New(aggregate.Options{Scope: opts.Scope, JPEGQuality: opts.JPEGQuality})
	if err != nil {
		return nil, err
	}
	encoder, err := pdf.NewRasterEncoder(opts.JPEGQuality)
	if err != nil {
		return nil, err
	}

	svc := extract.NewService(engine, extract.Options{
		Workers:     1,
		DPI:         opts.DPI,
		PageTimeout: opts.PageTimeout,
	}, logger)

	return &Generator{
		engine:    engine,
		producer:  extract.NewProducer(extract.ReferenceProducer, svc, agg),
		encoder:   encoder,
		validator: pdf.NewValidator(),
		store:     store,
		cache:     rasters,
		opts:      opts,
		logger:    logger.WithOperation("baseline"),
	}, nil
}

// Producer returns the reference producer
func (g *Generator) Producer() domain.Producer {
	return g.producer
}

// Rebaseline produces reference artifacts for doc and records them as a new
// manifest version for the current engine identity.
func (g *Generator) Rebaseline(ctx context.Context, doc domain.Document) (*manifest.Entry, error) {
	if err := g.VerifySource(doc); err != nil {
		return nil, err
	}

	arts, err := g.producer.Produce(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("produce reference for %s: %w", doc.ID, err)
	}

	rel := filepath.Join(doc.ID, arts.Engine.Slug())
	w, err := pdf.NewArtifactWriter(filepath.Join(g.opts.Dir, rel))
	if err != nil {
		return nil, err
	}
	if _, err := w.WriteText(arts.Text); err != nil {
		return nil, err
	}
	if _, err := w.WriteMetadata(arts.Metadata); err != nil {
		return nil, err
	}

	entry := &manifest.Entry{
		DocumentID:       doc.ID,
		Engine:           arts.Engine,
		DocumentChecksum: doc.Checksum,
		PageCount:        arts.PageCount,
		Tags:             doc.Tags.Sorted(),
		TextPath:         filepath.ToSlash(filepath.Join(rel, pdf.TextFile)),
		TextHash:         arts.Text.Hash,
		TextSize:         arts.Text.Size,
		MetadataPath:     filepath.ToSlash(filepath.Join(rel, pdf.MetadataFile)),
		MetadataHash:     arts.Metadata.Hash,
		MetadataSize:     arts.Metadata.Size,
		MetadataScope:    arts.MetadataScope,
		PageErrors:       arts.PageErrors,
	}
	for _, img := range arts.Images {
		entry.Images = append(entry.Images, manifest.ImageRecord{
			Page:   img.Page,
			Kind:   img.Kind,
			Hash:   img.Hash,
			Size:   img.Size,
			Width:  img.Width,
			Height: img.Height,
		})
	}

	if err := g.store.Put(ctx, entry); err != nil {
		return nil, err
	}

	g.warmCache(ctx, doc, arts)

	g.logger.Info().
		Str("document_id", doc.ID).
		Engine(arts.Engine).
		Int("version", entry.Version).
		Int("pages", arts.PageCount).
		Int("page_errors", len(arts.PageErrors)).
		Msg("Baseline recorded")
	return entry, nil
}

// warmCache replaces any cached rasters of doc with the fresh ones. Cache
// failures only cost a later regeneration.
func (g *Generator) warmCache(ctx context.Context, doc domain.Document, arts *domain.DocumentArtifacts) {
	if g.cache == nil {
		return
	}
	if err := g.cache.DeleteByPrefix(ctx, cache.DocumentPrefix(arts.Engine, doc.Checksum)); err != nil {
		g.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to invalidate cached rasters")
	}
	for _, img := range arts.Images {
		key := cache.RasterKey(arts.Engine, doc.Checksum, img.Page, img.Kind)
		if err := g.cache.Set(ctx, key, img.Content, g.opts.CacheTTL); err != nil {
			g.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache raster")
			return
		}
	}
}

// Load returns the latest baseline of doc for the current engine. A missing
// entry is a stale baseline; any file or raster that no longer matches the
// manifest is a manifest inconsistency.
func (g *Generator) Load(ctx context.Context, doc domain.Document) (*domain.DocumentArtifacts, *manifest.Entry, error) {
	identity := g.engine.Identity()
	entry, err := g.store.Latest(ctx, doc.ID, identity)
	if errors.Is(err, manifest.ErrNotFound) {
		return nil, nil, domain.StaleBaselineError(
			fmt.Sprintf("no baseline for %s under engine %s", doc.ID, identity), err)
	}
	if err != nil {
		return nil, nil, err
	}

	if doc.Checksum != "" && entry.DocumentChecksum != doc.Checksum {
		return nil, nil, domain.ManifestInconsistency(
			fmt.Sprintf("%s changed since baseline version %d", doc.ID, entry.Version), nil)
	}
	if err := g.VerifySource(doc); err != nil {
		return nil, nil, err
	}

	text, err := pdf.ReadVerified(g.resolve(entry.TextPath), domain.ArtifactText,
		domain.DocumentLevel, entry.TextHash, entry.TextSize)
	if err != nil {
		return nil, nil, err
	}
	meta, err := pdf.ReadVerified(g.resolve(entry.MetadataPath), domain.ArtifactMetadata,
		domain.DocumentLevel, entry.MetadataHash, entry.MetadataSize)
	if err != nil {
		return nil, nil, err
	}

	images, err := g.BaselineImages(ctx, doc, entry)
	if err != nil {
		return nil, nil, err
	}

	return &domain.DocumentArtifacts{
		DocumentID:    doc.ID,
		Engine:        entry.Engine,
		Producer:      extract.ReferenceProducer,
		Workers:       1,
		PageCount:     entry.PageCount,
		Text:          text,
		Metadata:      meta,
		MetadataScope: entry.MetadataScope,
		Images:        images,
		PageErrors:    entry.PageErrors,
	}, entry, nil
}

// VerifySource recomputes the checksum of the document file and compares it
// with the registered one. Documents registered without a checksum are not
// checked.
func (g *Generator) VerifySource(doc domain.Document) error {
	if doc.Checksum == "" {
		return nil
	}
	if err := g.validator.VerifyChecksum(doc.Path, doc.Checksum); err != nil {
		return fmt.Errorf("verify source of %s: %w", doc.ID, err)
	}
	return nil
}

func (g *Generator) resolve(p string) string {
	return filepath.Join(g.opts.Dir, filepath.FromSlash(p))
}

// Remove deletes the stored files of doc for the current engine. Manifest
// versions are kept.
func (g *Generator) Remove(ctx context.Context, doc domain.Document) error {
	identity := g.engine.Identity()
	if g.cache != nil {
		if err := g.cache.DeleteByPrefix(ctx, cache.DocumentPrefix(identity, doc.Checksum)); err != nil {
			return err
		}
	}
	if err := os.RemoveAll(filepath.Join(g.opts.Dir, doc.ID, identity.Slug())); err != nil {
		return domain.IOError("remove baseline files", err)
	}
	return nil
}
