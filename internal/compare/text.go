package compare

import (
	"fmt"

	"github.com/spherical/pdf-fidelity/internal/domain"
	"github.com/spherical/pdf-fidelity/internal/textcodec"
)

// Text compares document text streams byte for byte. There is no tolerant
// tier for text.
func Text(baseline, candidate domain.Artifact) domain.ComparisonResult {
	res := domain.ComparisonResult{
		Artifact: domain.ArtifactText,
		Page:     domain.DocumentLevel,
	}
	if baseline.Hash == candidate.Hash && baseline.Size == candidate.Size {
		res.Tier = domain.TierExact
		res.Similarity = 1
		res.Verdict = domain.VerdictPass
		return res
	}

	off := FirstDifference(baseline.Content, candidate.Content)
	res.Tier = domain.TierNone
	res.Verdict = domain.VerdictFail
	res.Locator = domain.ByteLocator(off)
	if page := textcodec.PageAt(candidate.Content, off); page >= 0 {
		res.Detail = fmt.Sprintf("text differs at byte %d (page %d)", off, page)
	} else {
		res.Detail = fmt.Sprintf("text differs at byte %d", off)
	}
	return res
}

// FirstDifference returns the offset of the first differing byte, or the
// length of the shorter input when one is a prefix of the other.
func FirstDifference(a, b []byte) int64 {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return int64(i)
		}
	}
	return int64(n)
}
