package orchestrator

import (
	"sort"
	"time"

	"github.com/spherical/pdf-fidelity/internal/domain"
)

// Summary is the structured result of a run
type Summary struct {
	RunID            string                   `json:"run_id"`
	Engine           domain.EngineIdentity    `json:"engine"`
	Passed           int                      `json:"passed"`
	Failed           int                      `json:"failed"`
	Errors           int                      `json:"errors"`
	Skipped          int                      `json:"skipped"`
	ExpectedFailures int                      `json:"expected_failures"`
	NeedsReview      int                      `json:"needs_review"`
	Aborted          bool                     `json:"aborted"`
	Duration         time.Duration            `json:"duration"`
	Outcomes         []domain.DocumentOutcome `json:"outcomes"`
}

func newSummary(runID string, engine domain.EngineIdentity) *Summary {
	return &Summary{RunID: runID, Engine: engine}
}

func (s *Summary) add(out domain.DocumentOutcome) {
	switch out.Status {
	case domain.StatusPassed:
		s.Passed++
		if out.ExpectedFailure {
			s.ExpectedFailures++
		}
	case domain.StatusFailed:
		s.Failed++
		if out.NeedsReview {
			s.NeedsReview++
		}
	case domain.StatusError:
		s.Errors++
	case domain.StatusSkipped:
		s.Skipped++
	}
	s.Outcomes = append(s.Outcomes, out)
}

func (s *Summary) sortOutcomes() {
	sort.SliceStable(s.Outcomes, func(i, j int) bool {
		return s.Outcomes[i].DocumentID < s.Outcomes[j].DocumentID
	})
}

// Selected returns the number of documents that were run
func (s *Summary) Selected() int {
	return len(s.Outcomes) - s.Skipped
}

// Outcome returns the outcome of one document
func (s *Summary) Outcome(documentID string) (domain.DocumentOutcome, bool) {
	for _, out := range s.Outcomes {
		if out.DocumentID == documentID {
			return out, true
		}
	}
	return domain.DocumentOutcome{}, false
}

// ExitCode is 1 when any document failed or errored. Expected failures that
// failed to load count as passed.
func (s *Summary) ExitCode() int {
	if s.Failed > 0 || s.Errors > 0 {
		return 1
	}
	return 0
}
