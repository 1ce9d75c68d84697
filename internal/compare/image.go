package compare

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/spherical/pdf-fidelity/internal/domain"
)

const (
	ssimWindow = 8
	ssimC1     = (0.01 * 255) * (0.01 * 255)
	ssimC2     = (0.03 * 255) * (0.03 * 255)
)

// ImageThresholds are the similarity cut-offs for image verdicts
type ImageThresholds struct {
	Pass       float64 // score >= Pass passes
	Review     float64 // Review <= score < Pass needs review
	PixelDelta int     // gray-level delta counted as a differing pixel
}

// Image compares two rasters of the same page. Identical hashes pass exactly;
// otherwise the structural similarity of the grayscale images decides.
func Image(baseline, candidate domain.Artifact, baseImg, candImg image.Image, th ImageThresholds) domain.ComparisonResult {
	res := domain.ComparisonResult{
		Artifact: candidate.Kind,
		Page:     candidate.Page,
	}
	if baseline.Hash == candidate.Hash && baseline.Size == candidate.Size {
		res.Tier = domain.TierExact
		res.Similarity = 1
		res.Verdict = domain.VerdictPass
		return res
	}

	base := grayscale(baseImg, baseImg.Bounds())
	cand := grayscale(candImg, baseImg.Bounds())
	if !candImg.Bounds().Size().Eq(baseImg.Bounds().Size()) {
		res.Detail = fmt.Sprintf("candidate %v resampled to baseline %v; ",
			candImg.Bounds().Size(), baseImg.Bounds().Size())
	}

	score := SSIM(base, cand)
	res.Similarity = score
	res.Tier = domain.TierTolerant

	switch {
	case score >= th.Pass:
		res.Verdict = domain.VerdictPass
	case score >= th.Review:
		res.Verdict = domain.VerdictReview
	default:
		res.Verdict = domain.VerdictFail
		res.Tier = domain.TierNone
	}

	if region, ok := DiffRegion(base, cand, th.PixelDelta); ok {
		res.Locator = domain.RegionLocator(region)
	}
	res.Detail += fmt.Sprintf("similarity %.4f", score)
	return res
}

// grayscale converts img to 8-bit luminance with the dimensions of bounds,
// resampling when the sizes differ.
func grayscale(img image.Image, bounds image.Rectangle) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	if img.Bounds().Size().Eq(bounds.Size()) {
		draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// SSIM returns the mean structural similarity over non-overlapping windows of
// two equally sized grayscale images, clamped to [0, 1].
func SSIM(a, b *image.Gray) float64 {
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	if w == 0 || h == 0 {
		return 1
	}

	var total float64
	var windows int
	for y0 := 0; y0 < h; y0 += ssimWindow {
		for x0 := 0; x0 < w; x0 += ssimWindow {
			x1, y1 := min(x0+ssimWindow, w), min(y0+ssimWindow, h)
			total += windowSSIM(a, b, x0, y0, x1, y1)
			windows++
		}
	}

	score := total / float64(windows)
	return math.Max(0, math.Min(1, score))
}

func windowSSIM(a, b *image.Gray, x0, y0, x1, y1 int) float64 {
	n := float64((x1 - x0) * (y1 - y0))
	var sumA, sumB float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			sumA += float64(a.GrayAt(x, y).Y)
			sumB += float64(b.GrayAt(x, y).Y)
		}
	}
	meanA, meanB := sumA/n, sumB/n

	var varA, varB, cov float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			da := float64(a.GrayAt(x, y).Y) - meanA
			db := float64(b.GrayAt(x, y).Y) - meanB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n
	varB /= n
	cov /= n

	num := (2*meanA*meanB + ssimC1) * (2*cov + ssimC2)
	den := (meanA*meanA + meanB*meanB + ssimC1) * (varA + varB + ssimC2)
	return num / den
}

// DiffRegion returns the bounding box of pixels whose gray levels differ by
// more than delta.
func DiffRegion(a, b *image.Gray, delta int) (image.Rectangle, bool) {
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	region := image.Rectangle{}
	found := false
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := int(a.GrayAt(x, y).Y) - int(b.GrayAt(x, y).Y)
			if d < 0 {
				d = -d
			}
			if d <= delta {
				continue
			}
			px := image.Rect(x, y, x+1, y+1)
			if !found {
				region, found = px, true
			} else {
				region = region.Union(px)
			}
		}
	}
	return region, found
}
