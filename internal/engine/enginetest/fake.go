// Package enginetest provides an in-memory engine for tests. Pages are
// synthesized deterministically from the document path and page index.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spherical/pdf-fidelity/internal/domain"
)

// Engine is a configurable fake rendering engine
type Engine struct {
	// Pages is the page count of every document unless PagesByPath overrides it
	Pages       int
	PagesByPath map[string]int

	// LoadErrors fails Open for the listed paths
	LoadErrors map[string]error

	// FailPages and PanicPages make the listed pages fail or panic on Text
	FailPages  map[int]error
	PanicPages map[int]bool

	// SlowPages delays Text on the listed pages
	SlowPages map[int]time.Duration

	// TextFunc and ImageFunc override the synthesized page content
	TextFunc  func(path string, page int) string
	ImageFunc func(path string, page int) *image.RGBA

	Width, Height int
	Version       string

	opens  atomic.Int32
	closes atomic.Int32

	mu        sync.Mutex
	pageCalls map[int]int
}

// New returns a fake engine serving pages for every path
func New(pages int) *Engine {
	return &Engine{Pages: pages, Width: 24, Height: 32, Version: "fake-1.0"}
}

func (e *Engine) Identity() domain.EngineIdentity {
	return domain.EngineIdentity{Name: "fake", Version: e.Version, Checksum: "h1:fake"}
}

func (e *Engine) Open(ctx context.Context, path string) (domain.DocumentHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := e.LoadErrors[path]; ok {
		return nil, domain.DocumentLoadError(fmt.Sprintf("Failed to open PDF: %s", path), err)
	}
	pages := e.Pages
	if n, ok := e.PagesByPath[path]; ok {
		pages = n
	}
	e.opens.Add(1)
	return &handle{engine: e, path: path, pages: pages}, nil
}

// Opens returns the number of handles opened
func (e *Engine) Opens() int { return int(e.opens.Load()) }

// Closes returns the number of handles closed
func (e *Engine) Closes() int { return int(e.closes.Load()) }

// PageCalls returns how many times Text was called for page
func (e *Engine) PageCalls(page int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pageCalls[page]
}

func (e *Engine) recordCall(page int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pageCalls == nil {
		e.pageCalls = make(map[int]int)
	}
	e.pageCalls[page]++
}

// PageText returns the synthesized text of a page
func (e *Engine) PageText(path string, page int) string {
	if e.TextFunc != nil {
		return e.TextFunc(path, page)
	}
	return fmt.Sprintf("%s page %d\nline two", path, page)
}

// PageImage returns the synthesized raster of a page
func (e *Engine) PageImage(path string, page int) *image.RGBA {
	if e.ImageFunc != nil {
		return e.ImageFunc(path, page)
	}
	img := image.NewRGBA(image.Rect(0, 0, e.Width, e.Height))
	for y := 0; y < e.Height; y++ {
		for x := 0; x < e.Width; x++ {
			v := uint8((x*7 + y*3 + page*11 + len(path)) % 256)
			img.SetRGBA(x, y, color.RGBA{R: v, G: 255 - v, B: uint8(page), A: 255})
		}
	}
	return img
}

type handle struct {
	engine *Engine
	path   string
	pages  int
	closed atomic.Bool
}

func (h *handle) PageCount() int { return h.pages }

func (h *handle) Text(page int) (string, error) {
	if err := h.check(page); err != nil {
		return "", err
	}
	h.engine.recordCall(page)
	if d, ok := h.engine.SlowPages[page]; ok {
		time.Sleep(d)
	}
	if h.engine.PanicPages[page] {
		panic(fmt.Sprintf("fake engine crash on page %d", page))
	}
	if err, ok := h.engine.FailPages[page]; ok {
		return "", domain.PageExtractionError(page, err)
	}
	return h.engine.PageText(h.path, page), nil
}

func (h *handle) Chars(page int) ([]domain.CharacterRecord, error) {
	if err := h.check(page); err != nil {
		return nil, err
	}
	var recs []domain.CharacterRecord
	x := 10.0
	for _, r := range h.engine.PageText(h.path, page) {
		if r == '\n' {
			continue
		}
		recs = append(recs, domain.CharacterRecord{
			Page:      page,
			CodePoint: int(r),
			Char:      string(r),
			BBox:      [4]float64{x, 20, x + 5.5, 30},
			Origin:    [2]float64{x, 28},
			Font:      "Helvetica",
			Size:      10,
			Weight:    400,
			Matrix:    [6]float64{10, 0, 0, 10, x, 28},
		})
		x += 5.5
	}
	return recs, nil
}

func (h *handle) Render(page int, _ float64) (*image.RGBA, error) {
	if err := h.check(page); err != nil {
		return nil, err
	}
	return h.engine.PageImage(h.path, page), nil
}

func (h *handle) Close() error {
	if h.closed.Swap(true) {
		return errors.New("handle closed twice")
	}
	h.engine.closes.Add(1)
	return nil
}

func (h *handle) check(page int) error {
	if h.closed.Load() {
		return domain.PageExtractionError(page, errors.New("handle is closed"))
	}
	if page < 0 || page >= h.pages {
		return domain.PageExtractionError(page, fmt.Errorf("page out of range [0,%d)", h.pages))
	}
	return nil
}
