package engine

import (
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	lpdf "github.com/ledongthuc/pdf"

	"github.com/spherical/pdf-fidelity/internal/domain"
)

const (
	defaultPageHeight = 792.0
	ascentRatio       = 0.8
	descentRatio      = -0.2
	lineTolerance     = 0.5
	weightRegular     = 400
	weightBold        = 700
)

// glyphReader walks page content streams to produce character records. It is
// opened on first use and owned by a single handle.
type glyphReader struct {
	path   string
	file   io.Closer
	reader *lpdf.Reader
}

func newGlyphReader(path string) *glyphReader {
	return &glyphReader{path: path}
}

func (g *glyphReader) open() error {
	if g.reader != nil {
		return nil
	}
	f, r, err := lpdf.Open(g.path)
	if err != nil {
		return fmt.Errorf("open glyph stream: %w", err)
	}
	g.file, g.reader = f, r
	return nil
}

// Page returns the records of a zero-based page in content stream order.
// The content parser panics on some malformed streams; that is reported as
// an error for the page only.
func (g *glyphReader) Page(page int) (records []domain.CharacterRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, fmt.Errorf("glyph stream panic: %v", r)
		}
	}()

	if err := g.open(); err != nil {
		return nil, err
	}
	if page < 0 || page >= g.reader.NumPage() {
		return nil, fmt.Errorf("invalid page number: %d", page+1)
	}

	p := g.reader.Page(page + 1)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d has no page object", page+1)
	}
	return glyphRecords(page, pageHeight(p), contentGlyphs(p)), nil
}

func (g *glyphReader) Close() error {
	if g.file == nil {
		return nil
	}
	err := g.file.Close()
	g.file, g.reader = nil, nil
	return err
}

func pageHeight(p lpdf.Page) float64 {
	box := p.V.Key("MediaBox")
	if box.Kind() == lpdf.Array && box.Len() == 4 {
		if h := box.Index(3).Float64() - box.Index(1).Float64(); h > 0 {
			return h
		}
	}
	return defaultPageHeight
}

// glyphRecords converts shown glyphs into character records with a top-left
// origin. Geometry, colour and rotation come from each glyph's rendering
// matrix.
func glyphRecords(page int, height float64, glyphs []glyph) []domain.CharacterRecord {
	records := make([]domain.CharacterRecord, 0, len(glyphs))
	for i, g := range glyphs {
		if g.S == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(g.S)

		weight, flags := fontStyle(g.Font)
		x0, y0, x1, y1 := g.bounds()
		records = append(records, domain.CharacterRecord{
			Page:        page,
			CodePoint:   int(r),
			Char:        g.S,
			BBox:        [4]float64{x0, height - y1, x1, height - y0},
			Origin:      [2]float64{g.Trm[4], height - g.Trm[5]},
			Font:        g.Font,
			Size:        g.size(),
			Weight:      weight,
			Flags:       flags,
			Fill:        g.Fill,
			Stroke:      g.Stroke,
			Angle:       g.angle(),
			Matrix:      g.Trm,
			Synthetic:   g.Synthetic,
			Hyphen:      r == '-' && endsLine(glyphs, i),
			DecodeError: r == utf8.RuneError || r == 0,
		})
	}
	return records
}

// endsLine reports whether the next visible glyph after i starts a new line,
// measured across the text direction of glyph i.
func endsLine(glyphs []glyph, i int) bool {
	cur := glyphs[i]
	for k := i + 1; k < len(glyphs); k++ {
		if strings.TrimSpace(glyphs[k].S) == "" {
			continue
		}
		a, b := cur.Trm[0], cur.Trm[1]
		n := math.Hypot(a, b)
		if n == 0 {
			return true
		}
		dx, dy := glyphs[k].Trm[4]-cur.Trm[4], glyphs[k].Trm[5]-cur.Trm[5]
		return math.Abs(-b*dx+a*dy)/n > cur.size()*lineTolerance
	}
	return true
}

func fontStyle(name string) (int, int) {
	lower := strings.ToLower(name)
	weight := weightRegular
	flags := 0
	if strings.Contains(lower, "bold") || strings.Contains(lower, "black") || strings.Contains(lower, "heavy") {
		weight = weightBold
		flags |= domain.FontFlagBold
	}
	if strings.Contains(lower, "italic") || strings.Contains(lower, "oblique") {
		flags |= domain.FontFlagItalic
	}
	if strings.Contains(lower, "courier") || strings.Contains(lower, "mono") {
		flags |= domain.FontFlagMonospace
	}
	if strings.Contains(lower, "times") || (strings.Contains(lower, "serif") && !strings.Contains(lower, "sans")) {
		flags |= domain.FontFlagSerif
	}
	return weight, flags
}
