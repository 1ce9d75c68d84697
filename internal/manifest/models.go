package manifest

import (
	"time"

	"github.com/google/uuid"

	"github.com/spherical/pdf-fidelity/internal/domain"
)

// Entry is one versioned baseline record keyed by document id and engine
// identity.
type Entry struct {
	ID               uuid.UUID
	DocumentID       string
	Engine           domain.EngineIdentity
	Version          int
	DocumentChecksum string
	PageCount        int
	Tags             []string

	TextPath string
	TextHash string
	TextSize int64

	MetadataPath  string
	MetadataHash  string
	MetadataSize  int64
	MetadataScope domain.MetadataScope

	PageErrors []domain.PageError
	Images     []ImageRecord
	CreatedAt  time.Time
}

// ImageRecord describes one baseline raster. The bytes are not stored; they
// are regenerated on demand and checked against Hash and Size.
type ImageRecord struct {
	Page   int
	Kind   domain.ArtifactKind
	Hash   string
	Size   int64
	Width  int
	Height int
}

// Image returns the record for page and kind
func (e *Entry) Image(page int, kind domain.ArtifactKind) (ImageRecord, bool) {
	for _, img := range e.Images {
		if img.Page == page && img.Kind == kind {
			return img, true
		}
	}
	return ImageRecord{}, false
}

// ErrorPages returns the pages that failed when the baseline was produced
func (e *Entry) ErrorPages() []int {
	out := make([]int, 0, len(e.PageErrors))
	for _, pe := range e.PageErrors {
		out = append(out, pe.Page)
	}
	return out
}

// AuditRecord is one appended comparison result
type AuditRecord struct {
	ID         uuid.UUID           `json:"id"`
	RunID      string              `json:"run_id"`
	DocumentID string              `json:"document_id"`
	Engine     string              `json:"engine"`
	Status     domain.Status       `json:"status"`
	Artifact   domain.ArtifactKind `json:"artifact,omitempty"`
	Page       int                 `json:"page"`
	Tier       domain.MatchTier    `json:"tier"`
	Verdict    domain.Verdict      `json:"verdict,omitempty"`
	Similarity float64             `json:"similarity"`
	Locator    string              `json:"locator,omitempty"`
	Detail     string              `json:"detail,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}
