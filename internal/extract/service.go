package extract

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spherical/pdf-fidelity/internal/domain"
	"github.com/spherical/pdf-fidelity/internal/observability"
	"github.com/spherical/pdf-fidelity/internal/partition"
)

// Options configures a parallel extraction
type Options struct {
	Workers     int
	DPI         float64
	PageTimeout time.Duration
}

// Extraction is the raw output of one run, results in completion order
type Extraction struct {
	Path      string
	PageCount int
	Ranges    []domain.PageRange
	Results   []domain.PageResult
	Stats     domain.ProcessingStats
}

// Service runs partitioned extraction over a worker pool
type Service struct {
	engine domain.Engine
	opts   Options
	split  func(pages, workers int) ([]domain.PageRange, error)
	logger *observability.Logger
}

// NewService creates a new extraction service
func NewService(engine domain.Engine, opts Options, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.Nop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Service{
		engine: engine,
		opts:   opts,
		split:  partition.Split,
		logger: logger.WithOperation("extract"),
	}
}

// Workers returns the configured pool size
func (s *Service) Workers() int {
	return s.opts.Workers
}

// Engine returns the engine the service extracts with
func (s *Service) Engine() domain.Engine {
	return s.engine
}

// Extract probes the page count, partitions the document and runs one worker
// per non-empty range. Results are collected in completion order; callers
// must not rely on that order.
func (s *Service) Extract(ctx context.Context, pdfPath string, eventCh chan<- domain.StreamEvent) (*Extraction, error) {
	startTime := time.Now()

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventStart,
		Payload:   fmt.Sprintf("Starting extraction of %s", pdfPath),
		Timestamp: time.Now(),
	})

	pages, err := s.probe(ctx, pdfPath)
	if err != nil {
		s.emitError(eventCh, err)
		return nil, err
	}

	ranges, err := s.split(pages, s.opts.Workers)
	if err == nil {
		err = partition.Verify(ranges, pages)
	}
	if err != nil {
		s.emitError(eventCh, err)
		return nil, err
	}

	s.logger.Info().
		Str("path", pdfPath).
		Int("pages", pages).
		Int("workers", s.opts.Workers).
		Msg("Extracting document")

	results := make(chan domain.PageResult, max(pages, 1))
	g, gctx := errgroup.WithContext(ctx)
	emit := func(e domain.StreamEvent) { s.emitEvent(eventCh, e) }

	for _, r := range ranges {
		if r.Empty() {
			continue
		}
		w := &Worker{
			id:      r.Worker,
			engine:  s.engine,
			path:    pdfPath,
			dpi:     s.opts.DPI,
			timeout: s.opts.PageTimeout,
			logger:  s.logger.WithWorker(r),
			emit:    emit,
		}
		g.Go(func() error {
			return w.Run(gctx, r, results)
		})
	}

	waitErr := g.Wait()
	close(results)

	out := &Extraction{
		Path:      pdfPath,
		PageCount: pages,
		Ranges:    ranges,
		Results:   make([]domain.PageResult, 0, pages),
	}
	for res := range results {
		out.Results = append(out.Results, res)
		out.Stats.PagesProcessed++
		if res.Err != nil {
			out.Stats.FailedPages++
			out.Stats.Errors = append(out.Stats.Errors, res.Err)
		} else {
			out.Stats.SuccessfulPages++
		}
	}
	out.Stats.TotalTime = time.Since(startTime)

	if waitErr != nil {
		s.emitError(eventCh, waitErr)
		return nil, waitErr
	}

	s.emitEvent(eventCh, domain.StreamEvent{
		Type: domain.EventComplete,
		Payload: fmt.Sprintf("Extraction complete: %d/%d pages successful in %v",
			out.Stats.SuccessfulPages, pages, out.Stats.TotalTime),
		Timestamp: time.Now(),
	})

	s.logger.Info().
		Int("successful", out.Stats.SuccessfulPages).
		Int("failed", out.Stats.FailedPages).
		Dur("duration", out.Stats.TotalTime).
		Msg("Extraction complete")

	return out, nil
}

// probe opens a short-lived handle to read the page count
func (s *Service) probe(ctx context.Context, pdfPath string) (int, error) {
	h, err := s.engine.Open(ctx, pdfPath)
	if err != nil {
		return 0, err
	}
	defer h.Close()
	return h.PageCount(), nil
}

// emitEvent safely emits an event to the channel
func (s *Service) emitEvent(eventCh chan<- domain.StreamEvent, event domain.StreamEvent) {
	if eventCh != nil {
		select {
		case eventCh <- event:
		default:
			s.logger.Warn().Str("event", string(event.Type)).Msg("Event channel full, dropping event")
		}
	}
}

// emitError emits an error event
func (s *Service) emitError(eventCh chan<- domain.StreamEvent, err error) {
	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventError,
		Payload:   err.Error(),
		Timestamp: time.Now(),
	})
}
