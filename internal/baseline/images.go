package baseline

import (
	"context"
	"errors"
	"fmt"

	"github.com/spherical/pdf-fidelity/internal/cache"
	"github.com/spherical/pdf-fidelity/internal/domain"
	"github.com/spherical/pdf-fidelity/internal/manifest"
)

// BaselineImages returns the baseline rasters recorded in entry. Rasters come
// from the cache when possible and are otherwise re-rendered with the
// reference engine. Every raster must reproduce the recorded hash and size.
func (g *Generator) BaselineImages(ctx context.Context, doc domain.Document, entry *manifest.Entry) ([]domain.Artifact, error) {
	images := make([]domain.Artifact, len(entry.Images))
	var missing []int

	for i, rec := range entry.Images {
		a, ok := g.cached(ctx, doc, entry, rec)
		if ok {
			images[i] = a
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) > 0 {
		if err := g.regenerate(ctx, doc, entry, missing, images); err != nil {
			return nil, err
		}
	}

	for i, rec := range entry.Images {
		a := images[i]
		if a.Hash != rec.Hash || a.Size != rec.Size {
			return nil, domain.ManifestInconsistency(
				fmt.Sprintf("%s page %d %s regenerated as %s (%d bytes), manifest has %s (%d bytes)",
					doc.ID, rec.Page, rec.Kind, a.Hash, a.Size, rec.Hash, rec.Size), nil)
		}
		images[i].Width, images[i].Height = rec.Width, rec.Height
	}
	return images, nil
}

func (g *Generator) cached(ctx context.Context, doc domain.Document, entry *manifest.Entry, rec manifest.ImageRecord) (domain.Artifact, bool) {
	if g.cache == nil {
		return domain.Artifact{}, false
	}
	key := cache.RasterKey(entry.Engine, entry.DocumentChecksum, rec.Page, rec.Kind)
	data, err := g.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			g.logger.Warn().Err(err).Str("key", key).Msg("Raster cache read failed")
		}
		return domain.Artifact{}, false
	}
	a := domain.NewArtifact(rec.Kind, rec.Page, data)
	if a.Hash != rec.Hash {
		g.logger.Warn().Str("document_id", doc.ID).Str("key", key).Msg("Discarding cached raster with unexpected hash")
		return domain.Artifact{}, false
	}
	return a, true
}

// regenerate renders the pages of the missing records once and fills images.
func (g *Generator) regenerate(ctx context.Context, doc domain.Document, entry *manifest.Entry, missing []int, images []domain.Artifact) error {
	h, err := g.engine.Open(ctx, doc.Path)
	if err != nil {
		return err
	}
	defer h.Close()

	rendered := make(map[int][2]domain.Artifact)
	for _, i := range missing {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := entry.Images[i]
		pair, ok := rendered[rec.Page]
		if !ok {
			img, err := h.Render(rec.Page, g.opts.DPI)
			if err != nil {
				return domain.ManifestInconsistency(
					fmt.Sprintf("%s page %d no longer renders", doc.ID, rec.Page), err)
			}
			png, jpeg, err := g.encoder.Encode(rec.Page, img)
			if err != nil {
				return err
			}
			pair = [2]domain.Artifact{png, jpeg}
			rendered[rec.Page] = pair
			g.cacheRendered(ctx, entry, pair[:])
		}

		for _, a := range pair {
			if a.Kind == rec.Kind {
				images[i] = a
			}
		}
	}

	g.logger.Debug().
		Str("document_id", doc.ID).
		Int("pages", len(rendered)).
		Msg("Regenerated baseline rasters")
	return nil
}

func (g *Generator) cacheRendered(ctx context.Context, entry *manifest.Entry, arts []domain.Artifact) {
	if g.cache == nil {
		return
	}
	for _, a := range arts {
		rec, ok := entry.Image(a.Page, a.Kind)
		if !ok || rec.Hash != a.Hash {
			continue
		}
		key := cache.RasterKey(entry.Engine, entry.DocumentChecksum, a.Page, a.Kind)
		if err := g.cache.Set(ctx, key, a.Content, g.opts.CacheTTL); err != nil {
			g.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache raster")
		}
	}
}
