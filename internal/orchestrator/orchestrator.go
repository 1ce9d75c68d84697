// Package orchestrator runs fidelity tests over a selection of registered
// documents and records every outcome in the audit log.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spherical/pdf-fidelity/internal/compare"
	"github.com/spherical/pdf-fidelity/internal/domain"
	"github.com/spherical/pdf-fidelity/internal/manifest"
	"github.com/spherical/pdf-fidelity/internal/observability"
	"github.com/spherical/pdf-fidelity/internal/pdf"
)

// BaselineLoader returns the stored reference artifacts of a document
type BaselineLoader interface {
	Load(ctx context.Context, doc domain.Document) (*domain.DocumentArtifacts, *manifest.Entry, error)
}

// AuditLog receives the flattened outcomes of a run
type AuditLog interface {
	AppendAudit(ctx context.Context, records []manifest.AuditRecord) error
}

// Options configures a test run
type Options struct {
	DocumentConcurrency       int
	AbortOnInvariantViolation bool
	// OutputDir receives candidate artifacts of documents that did not pass,
	// and of every document when KeepArtifacts is set.
	OutputDir     string
	KeepArtifacts bool
}

// Orchestrator drives the per-document state machine
type Orchestrator struct {
	candidate  domain.Producer
	engine     domain.EngineIdentity
	baselines  BaselineLoader
	comparator *compare.Comparator
	audit      AuditLog
	opts       Options
	logger     *observability.Logger

	onOutcome func(domain.DocumentOutcome)
}

// New creates an orchestrator
func New(
	candidate domain.Producer,
	engine domain.EngineIdentity,
	baselines BaselineLoader,
	comparator *compare.Comparator,
	audit AuditLog,
	opts Options,
	logger *observability.Logger,
) *Orchestrator {
	if opts.DocumentConcurrency < 1 {
		opts.DocumentConcurrency = 1
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Orchestrator{
		candidate:  candidate,
		engine:     engine,
		baselines:  baselines,
		comparator: comparator,
		audit:      audit,
		opts:       opts,
		logger:     logger.WithOperation("run").WithEngine(engine),
	}
}

// OnOutcome registers a callback invoked once per finished document. Calls
// may come from several goroutines.
func (o *Orchestrator) OnOutcome(fn func(domain.DocumentOutcome)) {
	o.onOutcome = fn
}

// Run tests every selected document and records skipped ones. The returned
// summary is complete even when err is non-nil.
func (o *Orchestrator) Run(ctx context.Context, selected, skipped []domain.Document) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx = observability.ContextWithRunID(ctx, runID)
	logger := o.logger.WithContext(ctx)

	logger.Info().
		Int("selected", len(selected)).
		Int("skipped", len(skipped)).
		Msg("Starting fidelity run")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]domain.DocumentOutcome, len(selected))
	var aborted atomic.Bool
	var abortCause error
	var abortOnce sync.Once

	g := new(errgroup.Group)
	g.SetLimit(o.opts.DocumentConcurrency)
	for i, doc := range selected {
		g.Go(func() error {
			if aborted.Load() {
				outcomes[i] = abortedOutcome(doc, abortCause)
				o.notify(outcomes[i])
				return nil
			}

			out := o.runDocument(runCtx, runID, doc)
			if aborted.Load() && out.Status == domain.StatusError && errors.Is(runCtx.Err(), context.Canceled) {
				out = abortedOutcome(doc, abortCause)
			}
			outcomes[i] = out
			o.notify(out)

			if out.ErrorType == domain.ErrorTypeAggregationOrder && o.opts.AbortOnInvariantViolation {
				abortOnce.Do(func() {
					abortCause = fmt.Errorf("%s: %s", doc.ID, out.Error)
					aborted.Store(true)
					cancel()
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := newSummary(runID, o.engine)
	summary.Aborted = aborted.Load()
	for _, out := range outcomes {
		summary.add(out)
	}
	for _, doc := range skipped {
		out := domain.DocumentOutcome{DocumentID: doc.ID, Status: domain.StatusSkipped}
		o.notify(out)
		summary.add(out)
	}
	summary.sortOutcomes()
	summary.Duration = time.Since(start)

	var auditErr error
	if o.audit != nil {
		var records []manifest.AuditRecord
		for _, out := range summary.Outcomes {
			records = append(records, manifest.AuditRecords(runID, o.engine, out)...)
		}
		// Appended after the batch so a cancelled run still leaves a trail.
		if err := o.audit.AppendAudit(context.WithoutCancel(ctx), records); err != nil {
			auditErr = fmt.Errorf("append audit log: %w", err)
		}
	}

	logger.Info().
		Int("passed", summary.Passed).
		Int("failed", summary.Failed).
		Int("errors", summary.Errors).
		Int("skipped", summary.Skipped).
		Int("needs_review", summary.NeedsReview).
		Bool("aborted", summary.Aborted).
		Dur("duration", summary.Duration).
		Msg("Fidelity run complete")

	if auditErr != nil {
		return summary, auditErr
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (o *Orchestrator) notify(out domain.DocumentOutcome) {
	if o.onOutcome != nil {
		o.onOutcome(out)
	}
}

func abortedOutcome(doc domain.Document, cause error) domain.DocumentOutcome {
	msg := "batch aborted"
	if cause != nil {
		msg = fmt.Sprintf("batch aborted after invariant violation in %v", cause)
	}
	return domain.DocumentOutcome{
		DocumentID:      doc.ID,
		Status:          domain.StatusError,
		ExpectedFailure: doc.ExpectedFailure(),
		ErrorType:       domain.ErrorTypeAggregationOrder,
		Error:           msg,
	}
}

// runDocument moves one document from RUNNING to a terminal status
func (o *Orchestrator) runDocument(ctx context.Context, runID string, doc domain.Document) domain.DocumentOutcome {
	start := time.Now()
	logger := o.logger.WithContext(ctx).WithDocument(doc.ID)
	logger.Debug().Str("status", string(domain.StatusRunning)).Msg("Document running")

	out := o.evaluate(ctx, runID, doc, logger)
	out.DocumentID = doc.ID
	out.ExpectedFailure = doc.ExpectedFailure()
	out.Duration = time.Since(start)

	event := logger.Info()
	if out.Status == domain.StatusError || (out.Status == domain.StatusFailed && !out.NeedsReview) {
		event = logger.Warn()
	}
	event.
		Str("status", string(out.Status)).
		Bool("needs_review", out.NeedsReview).
		Str("error_type", string(out.ErrorType)).
		Dur("duration", out.Duration)
	if len(out.Results) > 0 {
		event.Float64("min_similarity", minSimilarity(out.Results))
	}
	event.Msg("Document finished")
	return out
}

func (o *Orchestrator) evaluate(ctx context.Context, runID string, doc domain.Document, logger *observability.Logger) domain.DocumentOutcome {
	cand, err := o.candidate.Produce(ctx, doc)
	if err != nil {
		if doc.ExpectedFailure() && domain.IsType(err, domain.ErrorTypeDocumentLoad) {
			return domain.DocumentOutcome{
				Status:    domain.StatusPassed,
				ErrorType: domain.ErrorTypeDocumentLoad,
				Error:     err.Error(),
			}
		}
		return errorOutcome(err)
	}

	if doc.ExpectedFailure() {
		o.keep(runID, doc, cand, false, logger)
		return domain.DocumentOutcome{
			Status: domain.StatusFailed,
			Error:  "expected failure but document loaded",
		}
	}

	// A declared count of zero means the registry never probed the document.
	if doc.Pages > 0 && cand.PageCount != doc.Pages {
		o.keep(runID, doc, cand, false, logger)
		return domain.DocumentOutcome{
			Status:    domain.StatusFailed,
			ErrorType: domain.ErrorTypeComparisonMismatch,
			Error:     fmt.Sprintf("extracted %d pages, registry declares %d", cand.PageCount, doc.Pages),
		}
	}

	base, entry, err := o.baselines.Load(ctx, doc)
	if err != nil {
		return errorOutcome(err)
	}
	if entry.MetadataScope != cand.MetadataScope {
		return errorOutcome(domain.ManifestInconsistency(fmt.Sprintf(
			"baseline version %d of %s holds %s metadata, candidate produced %s",
			entry.Version, doc.ID, entry.MetadataScope, cand.MetadataScope), nil))
	}

	results := o.comparator.Compare(base, cand)
	out := domain.DocumentOutcome{Results: results}
	switch compare.Worst(results) {
	case domain.VerdictPass:
		out.Status = domain.StatusPassed
	case domain.VerdictReview:
		out.Status = domain.StatusFailed
		out.NeedsReview = true
	default:
		out.Status = domain.StatusFailed
		out.ErrorType = domain.ErrorTypeComparisonMismatch
		out.Error = firstFailure(results)
	}

	o.keep(runID, doc, cand, out.Status == domain.StatusPassed, logger)
	return out
}

func errorOutcome(err error) domain.DocumentOutcome {
	return domain.DocumentOutcome{
		Status:    domain.StatusError,
		ErrorType: domain.TypeOf(err),
		Error:     err.Error(),
	}
}

func minSimilarity(results []domain.ComparisonResult) float64 {
	lowest := results[0].Similarity
	for _, r := range results[1:] {
		lowest = min(lowest, r.Similarity)
	}
	return lowest
}

func firstFailure(results []domain.ComparisonResult) string {
	for _, r := range results {
		if r.Verdict != domain.VerdictFail {
			continue
		}
		msg := fmt.Sprintf("%s mismatch", r.Artifact)
		if r.Page != domain.DocumentLevel {
			msg = fmt.Sprintf("%s mismatch on page %d", r.Artifact, r.Page)
		}
		if loc := r.Locator.String(); loc != "" {
			msg += " at " + loc
		}
		return msg
	}
	return ""
}

// keep writes candidate artifacts for later inspection. Write failures are
// logged and never change the outcome.
func (o *Orchestrator) keep(runID string, doc domain.Document, arts *domain.DocumentArtifacts, passed bool, logger *observability.Logger) {
	if o.opts.OutputDir == "" || (passed && !o.opts.KeepArtifacts) {
		return
	}
	w, err := pdf.NewArtifactWriter(filepath.Join(o.opts.OutputDir, runID, doc.ID))
	if err == nil {
		err = w.WriteAll(arts)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to keep candidate artifacts")
		return
	}
	logger.Debug().Str("dir", w.Dir()).Msg("Kept candidate artifacts")
}
