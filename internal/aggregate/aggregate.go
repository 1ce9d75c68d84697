// Package aggregate merges per-page results into document artifacts. Output
// depends only on page indices, never on worker count or completion order.
package aggregate

import (
	"fmt"
	"image"
	"sort"

	"github.com/spherical/pdf-fidelity/internal/charmeta"
	"github.com/spherical/pdf-fidelity/internal/domain"
	"github.com/spherical/pdf-fidelity/internal/pdf"
	"github.com/spherical/pdf-fidelity/internal/textcodec"
)

// Options controls which artifacts are built
type Options struct {
	Scope       domain.MetadataScope
	JPEGQuality int
	// KeepRasters retains decoded page rasters on the artifacts for in-process
	// image comparison
	KeepRasters bool
}

// Aggregator builds DocumentArtifacts from page results
type Aggregator struct {
	scope       domain.MetadataScope
	encoder     *pdf.RasterEncoder
	keepRasters bool
}

// New creates an aggregator
func New(opts Options) (*Aggregator, error) {
	if opts.Scope == "" {
		opts.Scope = domain.MetadataFirstPage
	}
	if opts.Scope != domain.MetadataFirstPage && opts.Scope != domain.MetadataAllPages {
		return nil, domain.ValidationError(fmt.Sprintf("unknown metadata scope %q", opts.Scope), nil)
	}
	enc, err := pdf.NewRasterEncoder(opts.JPEGQuality)
	if err != nil {
		return nil, err
	}
	return &Aggregator{scope: opts.Scope, encoder: enc, keepRasters: opts.KeepRasters}, nil
}

// Order sorts results by page index and checks that exactly the pages
// [0, pageCount) are present, each once.
func Order(results []domain.PageResult, pageCount int) ([]domain.PageResult, error) {
	sorted := make([]domain.PageResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Page < sorted[j].Page })

	if len(sorted) != pageCount {
		return nil, domain.AggregationOrderViolation(
			fmt.Sprintf("expected %d page results, got %d", pageCount, len(sorted)), nil)
	}
	for i, r := range sorted {
		if r.Page != i {
			return nil, domain.AggregationOrderViolation(
				fmt.Sprintf("page results are not a permutation of [0,%d): position %d holds page %d", pageCount, i, r.Page), nil)
		}
	}
	return sorted, nil
}

// Build orders results and produces text, metadata and image artifacts.
// Failed pages contribute an empty text segment, no character records and no
// images, and are listed in PageErrors.
func (a *Aggregator) Build(documentID string, pageCount int, results []domain.PageResult) (*domain.DocumentArtifacts, error) {
	sorted, err := Order(results, pageCount)
	if err != nil {
		return nil, err
	}

	arts := &domain.DocumentArtifacts{
		DocumentID:    documentID,
		PageCount:     pageCount,
		MetadataScope: a.scope,
	}
	if a.keepRasters {
		arts.PageImages = make(map[int]*image.RGBA, pageCount)
	}

	texts := make([][]byte, pageCount)
	var records []domain.CharacterRecord

	for _, r := range sorted {
		if r.Err != nil {
			arts.PageErrors = append(arts.PageErrors, domain.PageError{
				Page:    r.Page,
				Type:    errorType(r.Err),
				Message: r.Err.Error(),
			})
			continue
		}

		enc, err := textcodec.EncodePage(r.Text)
		if err != nil {
			return nil, domain.PageExtractionError(r.Page, err)
		}
		texts[r.Page] = enc

		if a.scope == domain.MetadataAllPages || r.Page == 0 {
			records = append(records, r.Chars...)
		}

		if r.Image != nil {
			lossless, lossy, err := a.encoder.Encode(r.Page, r.Image)
			if err != nil {
				return nil, err
			}
			arts.Images = append(arts.Images, lossless, lossy)
			if a.keepRasters {
				arts.PageImages[r.Page] = r.Image
			}
		}
	}

	meta, err := charmeta.Encode(records)
	if err != nil {
		return nil, domain.IOError("Failed to encode character metadata", err)
	}

	arts.Text = domain.NewArtifact(domain.ArtifactText, domain.DocumentLevel, textcodec.Join(texts))
	arts.Metadata = domain.NewArtifact(domain.ArtifactMetadata, domain.DocumentLevel, meta)
	return arts, nil
}

func errorType(err error) domain.ErrorType {
	if t := domain.TypeOf(err); t != "" {
		return t
	}
	return domain.ErrorTypePageExtraction
}
