package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"sort"
	"strings"
	"time"
)

// Well-known tag keys and values used for document selection
const (
	TagExpectedFailure = "expected-failure"
	TagKeyCategory     = "category"
	TagKeySize         = "size"
	TagKeySubset       = "subset"
)

// Document represents a registered source PDF
type Document struct {
	ID       string
	Path     string
	Checksum string // sha256 hex of the file contents
	Pages    int    // declared page count
	Tags     TagSet
}

// ExpectedFailure reports whether the document is pre-tagged as an expected failure
func (d Document) ExpectedFailure() bool {
	return d.Tags.Has(TagExpectedFailure)
}

// TagSet is the set-valued classification attribute of a document
type TagSet map[string]struct{}

// NewTagSet builds a tag set, normalizing each tag
func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s.Add(t)
	}
	return s
}

// NormalizeTag trims and lowercases a tag
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// Add inserts a tag; empty tags are ignored
func (s TagSet) Add(tag string) {
	tag = NormalizeTag(tag)
	if tag == "" {
		return
	}
	s[tag] = struct{}{}
}

// Has reports membership
func (s TagSet) Has(tag string) bool {
	_, ok := s[NormalizeTag(tag)]
	return ok
}

// Sorted returns the tags in lexical order
func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// PageRange is a contiguous half-open page interval [Start, End) owned by one worker
type PageRange struct {
	Worker int
	Start  int
	End    int
}

// Len returns the number of pages in the range
func (r PageRange) Len() int {
	return r.End - r.Start
}

// Empty reports whether the range owns no pages
func (r PageRange) Empty() bool {
	return r.End <= r.Start
}

func (r PageRange) String() string {
	return fmt.Sprintf("worker %d [%d,%d)", r.Worker, r.Start, r.End)
}

// CharacterRecord is one extracted character on a page, in source order
type CharacterRecord struct {
	Page        int        `json:"page"`
	CodePoint   int        `json:"codepoint"`
	Char        string     `json:"char"`
	BBox        [4]float64 `json:"bbox"`
	Origin      [2]float64 `json:"origin"`
	Font        string     `json:"font"`
	Size        float64    `json:"size"`
	Weight      int        `json:"weight"`
	Flags       int        `json:"flags"`
	Fill        int        `json:"fill"`
	Stroke      int        `json:"stroke"`
	Angle       float64    `json:"angle"`
	Matrix      [6]float64 `json:"matrix"`
	Synthetic   bool       `json:"synthetic"`
	Hyphen      bool       `json:"hyphen"`
	DecodeError bool       `json:"decode_error"`
}

// Font flag bits carried in CharacterRecord.Flags
const (
	FontFlagItalic    = 1 << 1
	FontFlagSerif     = 1 << 2
	FontFlagMonospace = 1 << 3
	FontFlagBold      = 1 << 4
)

// PageResult is the output of extracting a single page
type PageResult struct {
	Page     int
	Worker   int
	Text     string
	Chars    []CharacterRecord
	Image    *image.RGBA
	Err      error
	Duration time.Duration
}

// ArtifactKind identifies the kind of extracted output
type ArtifactKind string

const (
	ArtifactText     ArtifactKind = "text"
	ArtifactMetadata ArtifactKind = "metadata"
	ArtifactPNG      ArtifactKind = "image/png"
	ArtifactJPEG     ArtifactKind = "image/jpeg"

	// ArtifactPageErrors labels the comparison of failed-page sets
	ArtifactPageErrors ArtifactKind = "page_errors"
)

// IsImage reports whether the kind is a raster encoding
func (k ArtifactKind) IsImage() bool {
	return k == ArtifactPNG || k == ArtifactJPEG
}

// DocumentLevel is the page index used by whole-document artifacts
const DocumentLevel = -1

// Artifact is one extracted output for a document or page
type Artifact struct {
	Kind    ArtifactKind
	Page    int
	Content []byte
	Size    int64
	Hash    string
	Width   int
	Height  int
}

// NewArtifact builds an artifact, computing size and hash from content
func NewArtifact(kind ArtifactKind, page int, content []byte) Artifact {
	return Artifact{
		Kind:    kind,
		Page:    page,
		Content: content,
		Size:    int64(len(content)),
		Hash:    HashBytes(content),
	}
}

// Verify recomputes the content hash and compares it to the recorded one
func (a Artifact) Verify() bool {
	return HashBytes(a.Content) == a.Hash && int64(len(a.Content)) == a.Size
}

// HashBytes returns the sha256 hex digest of b
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// MetadataScope controls which pages contribute character records
type MetadataScope string

const (
	MetadataFirstPage MetadataScope = "first_page"
	MetadataAllPages  MetadataScope = "all_pages"
)

// PageError records a page-level extraction failure
type PageError struct {
	Page    int       `json:"page"`
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// DocumentArtifacts is the aggregated document-level output of one producer run
type DocumentArtifacts struct {
	DocumentID     string
	Engine         EngineIdentity
	Producer       string
	Workers        int
	PageCount      int
	Text           Artifact
	Metadata       Artifact
	MetadataScope  MetadataScope
	Images         []Artifact // ordered by page, then PNG before JPEG
	PageErrors     []PageError
	PageImages     map[int]*image.RGBA
	ProcessingTime time.Duration
}

// Image returns the image artifact for page and kind
func (d *DocumentArtifacts) Image(page int, kind ArtifactKind) (Artifact, bool) {
	for _, a := range d.Images {
		if a.Page == page && a.Kind == kind {
			return a, true
		}
	}
	return Artifact{}, false
}

// ErrorPages returns the sorted indices of pages that failed
func (d *DocumentArtifacts) ErrorPages() []int {
	out := make([]int, 0, len(d.PageErrors))
	for _, pe := range d.PageErrors {
		out = append(out, pe.Page)
	}
	sort.Ints(out)
	return out
}

// EngineIdentity names the rendering-engine build that produced artifacts
type EngineIdentity struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Checksum string `json:"checksum"`
}

func (e EngineIdentity) String() string {
	if e.Checksum == "" {
		return fmt.Sprintf("%s@%s", e.Name, e.Version)
	}
	return fmt.Sprintf("%s@%s#%s", e.Name, e.Version, e.Checksum)
}

// Slug returns a filesystem-safe form of the identity
func (e EngineIdentity) Slug() string {
	r := strings.NewReplacer("/", "_", "@", "-", "#", "-", ":", "_", "+", "_", "=", "")
	return r.Replace(e.String())
}

// MatchTier is the comparison strategy that produced a verdict
type MatchTier string

const (
	TierExact    MatchTier = "exact"
	TierTolerant MatchTier = "tolerant"
	TierNone     MatchTier = "none"
)

// Verdict is the outcome of comparing one artifact
type Verdict string

const (
	VerdictPass   Verdict = "pass"
	VerdictFail   Verdict = "fail"
	VerdictReview Verdict = "review"
)

// Locator points at the first observed difference
type Locator struct {
	Offset *int64           `json:"offset,omitempty"`
	Region *image.Rectangle `json:"region,omitempty"`
}

// ByteLocator builds a locator at a byte offset
func ByteLocator(off int64) Locator {
	return Locator{Offset: &off}
}

// RegionLocator builds a locator for an image region
func RegionLocator(r image.Rectangle) Locator {
	return Locator{Region: &r}
}

func (l Locator) String() string {
	switch {
	case l.Offset != nil:
		return fmt.Sprintf("byte:%d", *l.Offset)
	case l.Region != nil:
		return fmt.Sprintf("region:%d,%d-%d,%d", l.Region.Min.X, l.Region.Min.Y, l.Region.Max.X, l.Region.Max.Y)
	default:
		return ""
	}
}

// ComparisonResult is the verdict for one artifact
type ComparisonResult struct {
	Artifact   ArtifactKind `json:"artifact"`
	Page       int          `json:"page"`
	Tier       MatchTier    `json:"tier"`
	Similarity float64      `json:"similarity"`
	Verdict    Verdict      `json:"verdict"`
	Locator    Locator      `json:"locator"`
	Detail     string       `json:"detail,omitempty"`
}

// Status is the orchestrator state of one document
type Status string

const (
	StatusSelected Status = "SELECTED"
	StatusRunning  Status = "RUNNING"
	StatusPassed   Status = "PASSED"
	StatusFailed   Status = "FAILED"
	StatusError    Status = "ERROR"
	StatusSkipped  Status = "SKIPPED"
)

// Terminal reports whether no further transition is allowed
func (s Status) Terminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusError, StatusSkipped:
		return true
	}
	return false
}

// DocumentOutcome is the per-document record of one test execution
type DocumentOutcome struct {
	DocumentID      string             `json:"document_id"`
	Status          Status             `json:"status"`
	ExpectedFailure bool               `json:"expected_failure,omitempty"`
	NeedsReview     bool               `json:"needs_review,omitempty"`
	ErrorType       ErrorType          `json:"error_type,omitempty"`
	Error           string             `json:"error,omitempty"`
	Results         []ComparisonResult `json:"results,omitempty"`
	Duration        time.Duration      `json:"duration"`
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart          EventType = "start"
	EventPageProcessing EventType = "page_processing"
	EventPageComplete   EventType = "page_complete"
	EventError          EventType = "error"
	EventComplete       EventType = "complete"
)

// StreamEvent represents an event emitted during processing
type StreamEvent struct {
	Type       EventType   `json:"type"`
	Worker     int         `json:"worker"`
	PageNumber int         `json:"page_number,omitempty"`
	Payload    interface{} `json:"payload,omitempty"` // status message or error text
	Timestamp  time.Time   `json:"timestamp"`
}

// ProcessingStats contains metadata about the extraction execution
type ProcessingStats struct {
	TotalTime       time.Duration
	PagesProcessed  int
	SuccessfulPages int
	FailedPages     int
	Errors          []error
}
