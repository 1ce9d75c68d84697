package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spherical/pdf-fidelity/internal/domain"
	"github.com/spherical/pdf-fidelity/internal/observability"
)

// Worker extracts one contiguous page range through its own document handle
type Worker struct {
	id      int
	engine  domain.Engine
	path    string
	dpi     float64
	timeout time.Duration
	logger  *observability.Logger
	emit    func(domain.StreamEvent)
}

type pageAttempt struct {
	result   domain.PageResult
	panicked bool
}

// Run processes every page of r in ascending order and sends one result per
// page to out. Page failures are recorded on the result and never stop the
// range; only context cancellation or a failure to open a handle does.
func (w *Worker) Run(ctx context.Context, r domain.PageRange, out chan<- domain.PageResult) error {
	if r.Empty() {
		return nil
	}

	h, err := w.engine.Open(ctx, w.path)
	if err != nil {
		return err
	}
	defer func() {
		if h != nil {
			if err := h.Close(); err != nil {
				w.logger.Warn().Err(err).Msg("Failed to close document handle")
			}
		}
	}()

	w.logger.Debug().Msg("Worker started")

	for page := r.Start; page < r.End; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		w.emit(domain.StreamEvent{
			Type:       domain.EventPageProcessing,
			Worker:     w.id,
			PageNumber: page + 1,
			Payload:    fmt.Sprintf("Processing page %d", page+1),
			Timestamp:  time.Now(),
		})

		res, retire, err := w.runPage(ctx, h, page)
		if retire {
			// runPage owns closing a retired handle
			h = nil
		}
		if err != nil {
			return err
		}
		if retire && page+1 < r.End {
			h, err = w.engine.Open(ctx, w.path)
			if err != nil {
				return fmt.Errorf("reopen after page %d: %w", page+1, err)
			}
		}

		res.Worker = w.id
		if res.Err != nil {
			w.logger.Error().Err(res.Err).Page(page).Msg("Failed to extract page")
			w.emit(domain.StreamEvent{
				Type:       domain.EventError,
				Worker:     w.id,
				PageNumber: page + 1,
				Payload:    res.Err.Error(),
				Timestamp:  time.Now(),
			})
		} else {
			w.emit(domain.StreamEvent{
				Type:       domain.EventPageComplete,
				Worker:     w.id,
				PageNumber: page + 1,
				Payload:    fmt.Sprintf("Completed page %d", page+1),
				Timestamp:  time.Now(),
			})
		}

		select {
		case out <- res:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// runPage extracts one page under the page timeout. It reports whether the
// handle must be retired: after a timeout the engine call is still running on
// it, after a panic its state is unknown.
func (w *Worker) runPage(ctx context.Context, h domain.DocumentHandle, page int) (domain.PageResult, bool, error) {
	done := make(chan pageAttempt, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- pageAttempt{
					result:   domain.PageResult{Page: page, Err: domain.PageExtractionError(page, fmt.Errorf("engine panic: %v", r))},
					panicked: true,
				}
			}
		}()
		done <- pageAttempt{result: extractPage(h, page, w.dpi)}
	}()

	var timer <-chan time.Time
	if w.timeout > 0 {
		t := time.NewTimer(w.timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case a := <-done:
		a.result.Duration = time.Since(start)
		if a.panicked {
			w.closeHandle(h)
		}
		return a.result, a.panicked, nil
	case <-timer:
		w.retireHandle(h, done)
		err := domain.PageExtractionTimeout(page, fmt.Errorf("no result after %s", w.timeout))
		return domain.PageResult{Page: page, Err: err, Duration: time.Since(start)}, true, nil
	case <-ctx.Done():
		w.retireHandle(h, done)
		return domain.PageResult{}, true, ctx.Err()
	}
}

func (w *Worker) retireHandle(h domain.DocumentHandle, done <-chan pageAttempt) {
	go func() {
		<-done
		w.closeHandle(h)
	}()
}

func (w *Worker) closeHandle(h domain.DocumentHandle) {
	if err := h.Close(); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to close retired handle")
	}
}

func extractPage(h domain.DocumentHandle, page int, dpi float64) domain.PageResult {
	res := domain.PageResult{Page: page}

	text, err := h.Text(page)
	if err != nil {
		res.Err = pageError(page, err)
		return res
	}
	chars, err := h.Chars(page)
	if err != nil {
		res.Err = pageError(page, err)
		return res
	}
	img, err := h.Render(page, dpi)
	if err != nil {
		res.Err = pageError(page, err)
		return res
	}

	res.Text, res.Chars, res.Image = text, chars, img
	return res
}

func pageError(page int, err error) error {
	var de *domain.DomainError
	if errors.As(err, &de) && (de.Type == domain.ErrorTypePageExtraction || de.Type == domain.ErrorTypePageTimeout) {
		return err
	}
	return domain.PageExtractionError(page, err)
}
