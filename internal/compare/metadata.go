package compare

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/spherical/pdf-fidelity/internal/charmeta"
	"github.com/spherical/pdf-fidelity/internal/domain"
)

// Metadata compares character metadata streams. Identical hashes pass exactly;
// otherwise records are compared line by line with numeric fields allowed to
// differ by at most epsilon. Any non-numeric difference is a hard failure.
func Metadata(baseline, candidate domain.Artifact, epsilon float64) domain.ComparisonResult {
	res := domain.ComparisonResult{
		Artifact: domain.ArtifactMetadata,
		Page:     domain.DocumentLevel,
	}
	if baseline.Hash == candidate.Hash && baseline.Size == candidate.Size {
		res.Tier = domain.TierExact
		res.Similarity = 1
		res.Verdict = domain.VerdictPass
		return res
	}

	fail := func(off int64, detail string) domain.ComparisonResult {
		res.Tier = domain.TierNone
		res.Verdict = domain.VerdictFail
		res.Locator = domain.ByteLocator(off)
		res.Detail = detail
		return res
	}

	baseLines, _, err := charmeta.Lines(baseline.Content)
	if err != nil {
		return fail(0, fmt.Sprintf("baseline metadata unreadable: %v", err))
	}
	candLines, candOffsets, err := charmeta.Lines(candidate.Content)
	if err != nil {
		return fail(0, fmt.Sprintf("candidate metadata unreadable: %v", err))
	}

	n := min(len(baseLines), len(candLines))
	for i := 0; i < n; i++ {
		if bytes.Equal(baseLines[i], candLines[i]) {
			continue
		}
		if err := compareRecord(baseLines[i], candLines[i], epsilon); err != nil {
			return fail(candOffsets[i], fmt.Sprintf("record %d: %v", i, err))
		}
	}

	if len(baseLines) != len(candLines) {
		off := int64(len(candidate.Content))
		if n < len(candOffsets) {
			off = candOffsets[n]
		}
		return fail(off, fmt.Sprintf("record count differs: baseline %d, candidate %d", len(baseLines), len(candLines)))
	}

	res.Tier = domain.TierTolerant
	res.Similarity = 1
	res.Verdict = domain.VerdictPass
	res.Detail = fmt.Sprintf("numeric fields within %g", epsilon)
	return res
}

func decodeRecord(line []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

func compareRecord(a, b []byte, epsilon float64) error {
	ma, err := decodeRecord(a)
	if err != nil {
		return fmt.Errorf("baseline record: %w", err)
	}
	mb, err := decodeRecord(b)
	if err != nil {
		return fmt.Errorf("candidate record: %w", err)
	}
	return compareValue("", ma, mb, epsilon)
}

func compareValue(path string, a, b interface{}, epsilon float64) error {
	switch av := a.(type) {
	case json.Number:
		bv, ok := b.(json.Number)
		if !ok {
			return fmt.Errorf("%s: type differs", path)
		}
		fa, errA := av.Float64()
		fb, errB := bv.Float64()
		if errA != nil || errB != nil {
			return fmt.Errorf("%s: unparsable number", path)
		}
		if math.Abs(fa-fb) > epsilon {
			return fmt.Errorf("%s: %s vs %s exceeds %g", path, av, bv, epsilon)
		}
		return nil

	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%s: type differs", path)
		}
		if len(av) != len(bv) {
			return fmt.Errorf("%s: field set differs", path)
		}
		keys := make([]string, 0, len(av))
		for k := range av {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			other, ok := bv[k]
			if !ok {
				return fmt.Errorf("%s: missing field %q", path, k)
			}
			if err := compareValue(joinPath(path, k), av[k], other, epsilon); err != nil {
				return err
			}
		}
		return nil

	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return fmt.Errorf("%s: array differs", path)
		}
		for i := range av {
			if err := compareValue(fmt.Sprintf("%s[%d]", path, i), av[i], bv[i], epsilon); err != nil {
				return err
			}
		}
		return nil

	default:
		if a != b {
			return fmt.Errorf("%s: %v vs %v", path, a, b)
		}
		return nil
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
