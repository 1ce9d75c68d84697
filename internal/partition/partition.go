// Package partition splits a document's page range across extraction workers.
package partition

import (
	"fmt"

	"github.com/spherical/pdf-fidelity/internal/domain"
)

// Split divides [0, pages) into workers contiguous, non-overlapping ranges.
// The first pages%workers ranges receive one extra page. Surplus workers get
// empty ranges.
func Split(pages, workers int) ([]domain.PageRange, error) {
	if workers < 1 {
		return nil, domain.InvalidPartitionRequest(fmt.Sprintf("worker count must be at least 1, got %d", workers), nil)
	}
	if pages < 0 {
		return nil, domain.InvalidPartitionRequest(fmt.Sprintf("page count must not be negative, got %d", pages), nil)
	}

	base := pages / workers
	extra := pages % workers

	ranges := make([]domain.PageRange, workers)
	start := 0
	for w := 0; w < workers; w++ {
		n := base
		if w < extra {
			n++
		}
		ranges[w] = domain.PageRange{Worker: w, Start: start, End: start + n}
		start += n
	}

	return ranges, nil
}

// Verify checks that ranges cover [0, pages) exactly once.
func Verify(ranges []domain.PageRange, pages int) error {
	seen := make([]int, pages)
	for _, r := range ranges {
		if r.Start < 0 || r.End > pages || r.Start > r.End {
			return domain.AggregationOrderViolation(fmt.Sprintf("range %s outside [0,%d)", r, pages), nil)
		}
		for p := r.Start; p < r.End; p++ {
			seen[p]++
		}
	}
	for p, n := range seen {
		if n != 1 {
			return domain.AggregationOrderViolation(fmt.Sprintf("page %d assigned %d times", p, n), nil)
		}
	}
	return nil
}
