// Package compare decides whether candidate artifacts match a baseline. Each
// artifact is compared exactly first and only falls back to a tolerant
// comparison when hashes differ.
package compare

import (
	"fmt"
	"image"
	"slices"

	"github.com/spherical/pdf-fidelity/internal/config"
	"github.com/spherical/pdf-fidelity/internal/domain"
	"github.com/spherical/pdf-fidelity/internal/pdf"
)

// Comparator compares document artifacts
type Comparator struct {
	epsilon float64
	images  ImageThresholds
}

// New creates a comparator from configuration
func New(cfg config.ComparisonConfig) *Comparator {
	return &Comparator{
		epsilon: cfg.MetadataEpsilon,
		images: ImageThresholds{
			Pass:       cfg.SimilarityPass,
			Review:     cfg.SimilarityReview,
			PixelDelta: cfg.RegionPixelDelta,
		},
	}
}

// Compare returns one result for the text stream, the metadata stream, the
// failed-page set and every page image of the baseline.
func (c *Comparator) Compare(baseline, candidate *domain.DocumentArtifacts) []domain.ComparisonResult {
	results := []domain.ComparisonResult{
		Text(baseline.Text, candidate.Text),
		Metadata(baseline.Metadata, candidate.Metadata, c.epsilon),
		PageErrors(baseline.ErrorPages(), candidate.ErrorPages()),
	}

	for _, base := range baseline.Images {
		cand, ok := candidate.Image(base.Page, base.Kind)
		if !ok {
			results = append(results, domain.ComparisonResult{
				Artifact: base.Kind,
				Page:     base.Page,
				Tier:     domain.TierNone,
				Verdict:  domain.VerdictFail,
				Detail:   "missing from candidate",
			})
			continue
		}
		results = append(results, c.compareImage(baseline, candidate, base, cand))
	}
	for _, cand := range candidate.Images {
		if _, ok := baseline.Image(cand.Page, cand.Kind); !ok {
			results = append(results, domain.ComparisonResult{
				Artifact: cand.Kind,
				Page:     cand.Page,
				Tier:     domain.TierNone,
				Verdict:  domain.VerdictFail,
				Detail:   "missing from baseline",
			})
		}
	}
	return results
}

func (c *Comparator) compareImage(baseline, candidate *domain.DocumentArtifacts, base, cand domain.Artifact) domain.ComparisonResult {
	if base.Hash == cand.Hash && base.Size == cand.Size {
		return Image(base, cand, nil, nil, c.images)
	}

	baseImg, err := raster(baseline, base)
	if err != nil {
		return unreadable(cand, "baseline", err)
	}
	candImg, err := raster(candidate, cand)
	if err != nil {
		return unreadable(cand, "candidate", err)
	}
	return Image(base, cand, baseImg, candImg, c.images)
}

// raster prefers the decoded page kept in memory for lossless artifacts and
// decodes the encoded bytes otherwise.
func raster(arts *domain.DocumentArtifacts, a domain.Artifact) (image.Image, error) {
	if a.Kind == domain.ArtifactPNG {
		if img, ok := arts.PageImages[a.Page]; ok && img != nil {
			return img, nil
		}
	}
	return pdf.Decode(a)
}

func unreadable(a domain.Artifact, side string, err error) domain.ComparisonResult {
	return domain.ComparisonResult{
		Artifact: a.Kind,
		Page:     a.Page,
		Tier:     domain.TierNone,
		Verdict:  domain.VerdictFail,
		Detail:   fmt.Sprintf("%s raster unreadable: %v", side, err),
	}
}

// PageErrors checks that the same pages failed on both sides
func PageErrors(baseline, candidate []int) domain.ComparisonResult {
	res := domain.ComparisonResult{
		Artifact: domain.ArtifactPageErrors,
		Page:     domain.DocumentLevel,
	}
	if slices.Equal(baseline, candidate) {
		res.Tier = domain.TierExact
		res.Similarity = 1
		res.Verdict = domain.VerdictPass
		return res
	}
	res.Tier = domain.TierNone
	res.Verdict = domain.VerdictFail
	res.Detail = fmt.Sprintf("failed pages differ: baseline %v, candidate %v", baseline, candidate)
	return res
}

// Worst returns the most severe verdict of results
func Worst(results []domain.ComparisonResult) domain.Verdict {
	worst := domain.VerdictPass
	for _, r := range results {
		switch r.Verdict {
		case domain.VerdictFail:
			return domain.VerdictFail
		case domain.VerdictReview:
			worst = domain.VerdictReview
		}
	}
	return worst
}
