// Package engine adapts the MuPDF rendering engine to the document handle
// contract used by extraction workers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime/debug"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/pdf-fidelity/internal/domain"
)

const (
	engineName = "mupdf"
	fitzModule = "github.com/gen2brain/go-fitz"
)

// Fitz opens documents with go-fitz. Character geometry comes from the PDF
// content stream through a glyph reader opened alongside each handle.
type Fitz struct {
	identity domain.EngineIdentity
}

// NewFitz creates the engine and resolves its identity from the linked build
func NewFitz() *Fitz {
	return &Fitz{identity: resolveIdentity()}
}

// Identity returns the MuPDF version together with the go-fitz module version
// and checksum recorded in the binary.
func (f *Fitz) Identity() domain.EngineIdentity {
	return f.identity
}

// Open loads path into a new handle owned by the caller
func (f *Fitz) Open(ctx context.Context, path string) (domain.DocumentHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := openFitz(path)
	if err != nil {
		if errors.Is(err, fitz.ErrNeedsPassword) {
			return nil, domain.DocumentLoadError(fmt.Sprintf("document is password protected: %s", path), err)
		}
		return nil, domain.DocumentLoadError(fmt.Sprintf("Failed to open PDF: %s", path), err)
	}

	return &fitzHandle{
		doc:    doc,
		pages:  doc.NumPage(),
		glyphs: newGlyphReader(path),
	}, nil
}

func openFitz(path string) (doc *fitz.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	return fitz.New(path)
}

type fitzHandle struct {
	doc    *fitz.Document
	pages  int
	glyphs *glyphReader
}

func (h *fitzHandle) PageCount() int {
	return h.pages
}

func (h *fitzHandle) Text(page int) (string, error) {
	if err := h.check(page); err != nil {
		return "", err
	}
	text, err := h.doc.Text(page)
	if err != nil {
		return "", domain.PageExtractionError(page, err)
	}
	return text, nil
}

func (h *fitzHandle) Chars(page int) ([]domain.CharacterRecord, error) {
	if err := h.check(page); err != nil {
		return nil, err
	}
	records, err := h.glyphs.Page(page)
	if err != nil {
		return nil, domain.PageExtractionError(page, err)
	}
	return records, nil
}

func (h *fitzHandle) Render(page int, dpi float64) (*image.RGBA, error) {
	if err := h.check(page); err != nil {
		return nil, err
	}
	img, err := h.doc.ImageDPI(page, dpi)
	if err != nil {
		return nil, domain.PageExtractionError(page, err)
	}
	return img, nil
}

func (h *fitzHandle) Close() error {
	var errs []error
	if h.doc != nil {
		if err := h.doc.Close(); err != nil {
			errs = append(errs, err)
		}
		h.doc = nil
	}
	if err := h.glyphs.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (h *fitzHandle) check(page int) error {
	if h.doc == nil {
		return domain.PageExtractionError(page, errors.New("handle is closed"))
	}
	if page < 0 || page >= h.pages {
		return domain.PageExtractionError(page, fmt.Errorf("page out of range [0,%d)", h.pages))
	}
	return nil
}

func resolveIdentity() domain.EngineIdentity {
	id := domain.EngineIdentity{Name: engineName, Version: fitz.FzVersion}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return id
	}
	for _, dep := range info.Deps {
		if dep.Path != fitzModule {
			continue
		}
		if dep.Replace != nil {
			dep = dep.Replace
		}
		id.Version = fmt.Sprintf("%s+go-fitz.%s", fitz.FzVersion, dep.Version)
		id.Checksum = dep.Sum
		break
	}
	return id
}
