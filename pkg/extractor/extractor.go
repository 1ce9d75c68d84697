// Package extractor is the library entry point for parallel PDF extraction.
// It runs the same candidate producer the pdf-fidelity CLI compares against
// baselines, without a registry or manifest.
package extractor

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spherical/pdf-fidelity/internal/aggregate"
	"github.com/spherical/pdf-fidelity/internal/domain"
	"github.com/spherical/pdf-fidelity/internal/engine"
	"github.com/spherical/pdf-fidelity/internal/extract"
	"github.com/spherical/pdf-fidelity/internal/observability"
	"github.com/spherical/pdf-fidelity/internal/pdf"
)

// Re-export event and artifact types for the public API
type (
	StreamEvent       = domain.StreamEvent
	EventType         = domain.EventType
	DocumentArtifacts = domain.DocumentArtifacts
	Artifact          = domain.Artifact
	PageError         = domain.PageError
	MetadataScope     = domain.MetadataScope
	Engine            = domain.Engine
	Logger            = observability.Logger
	LogConfig         = observability.LogConfig
)

// NewLogger builds a zerolog-backed logger for Config.Logger
func NewLogger(cfg LogConfig) *Logger {
	return observability.NewLogger(cfg)
}

// Event type constants
const (
	EventStart          = domain.EventStart
	EventPageProcessing = domain.EventPageProcessing
	EventPageComplete   = domain.EventPageComplete
	EventError          = domain.EventError
	EventComplete       = domain.EventComplete
)

// Metadata scopes
const (
	MetadataFirstPage = domain.MetadataFirstPage
	MetadataAllPages  = domain.MetadataAllPages
)

// Config holds configuration options for the client. Zero values take the
// CLI defaults.
type Config struct {
	Workers     int
	DPI         float64
	JPEGQuality int
	PageTimeout time.Duration
	Scope       MetadataScope
	// Engine overrides the MuPDF engine
	Engine Engine
	Logger *Logger
}

// Result is delivered once on the channel returned by Process
type Result struct {
	Artifacts *DocumentArtifacts
	Err       error
}

// Client is the main entry point for the extraction library
type Client struct {
	producer *extract.Producer
}

// NewClient creates a client with default configuration
func NewClient() (*Client, error) {
	return NewClientWithConfig(&Config{})
}

// NewClientWithConfig creates a client with custom configuration
func NewClientWithConfig(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	c := *cfg
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.Workers < 0 {
		return nil, domain.ConfigError("workers must be positive", nil)
	}
	if c.DPI == 0 {
		c.DPI = 72
	}
	if c.JPEGQuality == 0 {
		c.JPEGQuality = 85
	}
	if c.PageTimeout == 0 {
		c.PageTimeout = 30 * time.Second
	}
	if c.Engine == nil {
		c.Engine = engine.NewFitz()
	}

	agg, err := aggregate.New(aggregate.Options{Scope: c.Scope, JPEGQuality: c.JPEGQuality})
	if err != nil {
		return nil, err
	}
	svc := extract.NewService(c.Engine, extract.Options{
		Workers:     c.Workers,
		DPI:         c.DPI,
		PageTimeout: c.PageTimeout,
	}, c.Logger)

	return &Client{producer: extract.NewProducer(extract.CandidateProducer, svc, agg)}, nil
}

// Extract runs a blocking extraction of pdfPath
func (c *Client) Extract(ctx context.Context, pdfPath string) (*DocumentArtifacts, error) {
	if err := checkPath(pdfPath); err != nil {
		return nil, err
	}
	return c.producer.Produce(ctx, document(pdfPath))
}

// Process extracts pdfPath in the background. Progress streams on the event
// channel, which is closed before the single Result is sent.
func (c *Client) Process(ctx context.Context, pdfPath string) (<-chan StreamEvent, <-chan Result, error) {
	if err := checkPath(pdfPath); err != nil {
		return nil, nil, err
	}

	eventCh := make(chan StreamEvent, 100)
	resultCh := make(chan Result, 1)

	go func() {
		defer close(resultCh)
		arts, err := c.producer.WithEvents(eventCh).Produce(ctx, document(pdfPath))
		close(eventCh)
		resultCh <- Result{Artifacts: arts, Err: err}
	}()

	return eventCh, resultCh, nil
}

// WriteArtifacts stores text.u32, metadata.jsonl and page images under dir
func WriteArtifacts(dir string, arts *DocumentArtifacts) error {
	w, err := pdf.NewArtifactWriter(dir)
	if err != nil {
		return err
	}
	return w.WriteAll(arts)
}

// Close releases client resources. Engine handles are closed per extraction.
func (c *Client) Close() error {
	return nil
}

func checkPath(pdfPath string) error {
	if _, err := os.Stat(pdfPath); os.IsNotExist(err) {
		return domain.ValidationError("PDF file not found", err)
	}
	return nil
}

func document(pdfPath string) domain.Document {
	return domain.Document{ID: filepath.Base(pdfPath), Path: pdfPath}
}
