package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-fidelity/internal/domain"
)

func TestSplit_Balanced(t *testing.T) {
	tests := []struct {
		name    string
		pages   int
		workers int
		sizes   []int
	}{
		{"even", 100, 4, []int{25, 25, 25, 25}},
		{"remainder", 10, 3, []int{4, 3, 3}},
		{"single worker", 7, 1, []int{7}},
		{"zero pages", 0, 3, []int{0, 0, 0}},
		{"one page many workers", 1, 4, []int{1, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranges, err := Split(tt.pages, tt.workers)
			require.NoError(t, err)
			require.Len(t, ranges, tt.workers)

			for i, r := range ranges {
				assert.Equal(t, i, r.Worker)
				assert.Equal(t, tt.sizes[i], r.Len(), "range %s", r)
			}
			assert.NoError(t, Verify(ranges, tt.pages))
		})
	}
}

func TestSplit_Contiguous(t *testing.T) {
	for pages := 0; pages <= 40; pages++ {
		for workers := 1; workers <= 12; workers++ {
			ranges, err := Split(pages, workers)
			require.NoError(t, err)

			next := 0
			for _, r := range ranges {
				assert.Equal(t, next, r.Start)
				next = r.End
			}
			assert.Equal(t, pages, next)

			lo, hi := pages, 0
			for _, r := range ranges {
				if r.Len() < lo {
					lo = r.Len()
				}
				if r.Len() > hi {
					hi = r.Len()
				}
			}
			assert.LessOrEqual(t, hi-lo, 1, "pages=%d workers=%d", pages, workers)
		}
	}
}

// More workers than pages: surplus workers own empty ranges and the non-empty
// subset still covers every page once.
func TestSplit_SurplusWorkers(t *testing.T) {
	ranges, err := Split(3, 8)
	require.NoError(t, err)
	require.Len(t, ranges, 8)

	covered := map[int]int{}
	empty := 0
	for _, r := range ranges {
		if r.Empty() {
			empty++
			continue
		}
		for p := r.Start; p < r.End; p++ {
			covered[p]++
		}
	}

	assert.Equal(t, 5, empty)
	assert.Equal(t, map[int]int{0: 1, 1: 1, 2: 1}, covered)
}

func TestSplit_Invalid(t *testing.T) {
	_, err := Split(10, 0)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeInvalidPartition))

	_, err = Split(-1, 2)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeInvalidPartition))
}

func TestVerify_DetectsOverlapAndGap(t *testing.T) {
	overlap := []domain.PageRange{{Worker: 0, Start: 0, End: 3}, {Worker: 1, Start: 2, End: 5}}
	err := Verify(overlap, 5)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeAggregationOrder))

	gap := []domain.PageRange{{Worker: 0, Start: 0, End: 2}, {Worker: 1, Start: 3, End: 5}}
	assert.Error(t, Verify(gap, 5))

	outside := []domain.PageRange{{Worker: 0, Start: 0, End: 6}}
	assert.Error(t, Verify(outside, 5))
}
