package ui

import (
	"io"
	"os"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/spherical/pdf-fidelity/internal/domain"
)

// WorkerBars renders one page bar per extraction worker
type WorkerBars struct {
	progress *mpb.Progress
	bars     map[int]*mpb.Bar
}

// NewWorkerBars creates a bar for every non-empty range
func NewWorkerBars(ranges []domain.PageRange) *WorkerBars {
	out := io.Writer(os.Stderr)
	if quietFlag {
		out = io.Discard
	}
	wb := &WorkerBars{
		progress: mpb.New(mpb.WithWidth(48), mpb.WithOutput(out)),
		bars:     make(map[int]*mpb.Bar, len(ranges)),
	}
	for _, r := range ranges {
		if r.Empty() {
			continue
		}
		name := r.String()
		wb.bars[r.Worker] = wb.progress.AddBar(int64(r.Len()),
			mpb.PrependDecorators(
				decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DSyncSpaceR}),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Percentage(decor.WC{W: 5}),
				decor.OnComplete(decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 8}), " done"),
			),
		)
	}
	return wb
}

// Consume advances bars from extraction events until ch is closed
func (wb *WorkerBars) Consume(ch <-chan domain.StreamEvent) {
	for ev := range ch {
		switch ev.Type {
		case domain.EventPageComplete, domain.EventError:
			if bar, ok := wb.bars[ev.Worker]; ok && ev.PageNumber > 0 {
				bar.Increment()
			}
		}
	}
}

// Wait aborts unfinished bars and waits for rendering to stop
func (wb *WorkerBars) Wait() {
	for _, bar := range wb.bars {
		if !bar.Completed() {
			bar.Abort(false)
		}
	}
	wb.progress.Wait()
}
