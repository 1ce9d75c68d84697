package engine

import (
	"math"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
)

// affine is a PDF transformation matrix [a b c d e f] in row-vector form
type affine [6]float64

var identityMatrix = affine{1, 0, 0, 1, 0, 0}

func translate(tx, ty float64) affine {
	return affine{1, 0, 0, 1, tx, ty}
}

// then returns m applied before n
func (m affine) then(n affine) affine {
	return affine{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m affine) apply(x, y float64) (float64, float64) {
	return x*m[0] + y*m[2] + m[4], x*m[1] + y*m[3] + m[5]
}

// glyph is one shown code point in user space
type glyph struct {
	S         string
	Font      string
	Trm       affine
	Advance   float64
	Fill      int
	Stroke    int
	Synthetic bool
}

func (g glyph) size() float64 {
	return math.Hypot(g.Trm[2], g.Trm[3])
}

func (g glyph) angle() float64 {
	deg := math.Atan2(g.Trm[1], g.Trm[0]) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// bounds is the axis-aligned box of the glyph cell in user space
func (g glyph) bounds() (x0, y0, x1, y1 float64) {
	x0, y0 = math.Inf(1), math.Inf(1)
	x1, y1 = math.Inf(-1), math.Inf(-1)
	for _, c := range [4][2]float64{{0, descentRatio}, {g.Advance, descentRatio}, {0, ascentRatio}, {g.Advance, ascentRatio}} {
		x, y := g.Trm.apply(c[0], c[1])
		x0, y0 = math.Min(x0, x), math.Min(y0, y)
		x1, y1 = math.Max(x1, x), math.Max(y1, y)
	}
	return x0, y0, x1, y1
}

// paintState is the part of the graphics state saved by q and restored by Q
type paintState struct {
	ctm       affine
	fill      int
	stroke    int
	charSpace float64
	wordSpace float64
	hscale    float64
	leading   float64
	size      float64
	rise      float64
	font      lpdf.Font
	fontName  string
	enc       lpdf.TextEncoding
}

type contentWalker struct {
	page   lpdf.Page
	gs     paintState
	stack  []paintState
	tm     affine
	tlm    affine
	glyphs []glyph
}

// contentGlyphs interprets the page content stream and returns every shown
// glyph with its rendering matrix and colours. Operators with missing operands
// are skipped.
func contentGlyphs(p lpdf.Page) []glyph {
	strm := p.V.Key("Contents")
	if strm.Kind() == lpdf.Null {
		return nil
	}
	w := &contentWalker{
		page: p,
		gs:   paintState{ctm: identityMatrix, hscale: 1},
		tm:   identityMatrix,
		tlm:  identityMatrix,
	}
	lpdf.Interpret(strm, w.do)
	return w.glyphs
}

func (w *contentWalker) do(stk *lpdf.Stack, op string) {
	n := stk.Len()
	args := make([]lpdf.Value, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = stk.Pop()
	}
	num := func(i int) float64 { return args[i].Float64() }
	want := func(k int) bool { return len(args) == k }

	switch op {
	case "q":
		w.stack = append(w.stack, w.gs)
	case "Q":
		if len(w.stack) > 0 {
			w.gs = w.stack[len(w.stack)-1]
			w.stack = w.stack[:len(w.stack)-1]
		}
	case "cm":
		if want(6) {
			w.gs.ctm = affine{num(0), num(1), num(2), num(3), num(4), num(5)}.then(w.gs.ctm)
		}

	case "g", "G", "rg", "RG", "k", "K", "sc", "scn", "SC", "SCN":
		c, ok := colour(args)
		if !ok {
			return
		}
		if strings.ToLower(op) == op {
			w.gs.fill = c
		} else {
			w.gs.stroke = c
		}
	case "cs":
		w.gs.fill = 0
	case "CS":
		w.gs.stroke = 0

	case "BT":
		w.tm, w.tlm = identityMatrix, identityMatrix
	case "Td", "TD":
		if want(2) {
			if op == "TD" {
				w.gs.leading = -num(1)
			}
			w.tlm = translate(num(0), num(1)).then(w.tlm)
			w.tm = w.tlm
		}
	case "Tm":
		if want(6) {
			w.tlm = affine{num(0), num(1), num(2), num(3), num(4), num(5)}
			w.tm = w.tlm
		}
	case "T*":
		w.nextLine()
	case "Tc":
		if want(1) {
			w.gs.charSpace = num(0)
		}
	case "Tw":
		if want(1) {
			w.gs.wordSpace = num(0)
		}
	case "Tz":
		if want(1) {
			w.gs.hscale = num(0) / 100
		}
	case "TL":
		if want(1) {
			w.gs.leading = num(0)
		}
	case "Ts":
		if want(1) {
			w.gs.rise = num(0)
		}
	case "Tf":
		if want(2) {
			w.setFont(args[0].Name(), num(1))
		}

	case "Tj":
		if want(1) {
			w.show(args[0].RawString())
		}
	case "'":
		if want(1) {
			w.nextLine()
			w.show(args[0].RawString())
		}
	case "\"":
		if want(3) {
			w.gs.wordSpace, w.gs.charSpace = num(0), num(1)
			w.nextLine()
			w.show(args[2].RawString())
		}
	case "TJ":
		if !want(1) {
			return
		}
		arr := args[0]
		for i := 0; i < arr.Len(); i++ {
			v := arr.Index(i)
			if v.Kind() == lpdf.String {
				w.show(v.RawString())
				continue
			}
			tx := -v.Float64() / 1000 * w.gs.size * w.gs.hscale
			w.tm = translate(tx, 0).then(w.tm)
		}
	}
}

func (w *contentWalker) nextLine() {
	w.tlm = translate(0, -w.gs.leading).then(w.tlm)
	w.tm = w.tlm
}

func (w *contentWalker) setFont(name string, size float64) {
	f := w.page.Font(name)
	base := f.BaseFont()
	if i := strings.Index(base, "+"); i >= 0 {
		base = base[i+1:]
	}
	if base == "" {
		base = name
	}
	w.gs.font, w.gs.fontName, w.gs.size = f, base, size
	w.gs.enc = f.Encoder()
}

// show emits one glyph per decoded rune. Runes beyond the raw code count
// (ligature expansion) carry no advance of their own and are synthetic.
func (w *contentWalker) show(raw string) {
	if w.gs.enc == nil {
		return
	}
	gs := &w.gs
	i := 0
	for _, r := range gs.enc.Decode(raw) {
		var w0 float64
		code := -1
		if i < len(raw) {
			code = int(raw[i])
			w0 = gs.font.Width(code) / 1000
		}
		i++

		trm := affine{gs.size * gs.hscale, 0, 0, gs.size, 0, gs.rise}.then(w.tm).then(gs.ctm)
		w.glyphs = append(w.glyphs, glyph{
			S:         string(r),
			Font:      gs.fontName,
			Trm:       trm,
			Advance:   w0,
			Fill:      gs.fill,
			Stroke:    gs.stroke,
			Synthetic: code < 0,
		})

		tx := w0*gs.size + gs.charSpace
		if code == ' ' {
			tx += gs.wordSpace
		}
		w.tm = translate(tx*gs.hscale, 0).then(w.tm)
	}
}

// colour packs gray, RGB or CMYK operands into 0xRRGGBB
func colour(args []lpdf.Value) (int, bool) {
	comps := make([]float64, 0, len(args))
	for _, a := range args {
		if a.Kind() != lpdf.Integer && a.Kind() != lpdf.Real {
			continue
		}
		comps = append(comps, clamp01(a.Float64()))
	}
	var r, g, b float64
	switch len(comps) {
	case 1:
		r, g, b = comps[0], comps[0], comps[0]
	case 3:
		r, g, b = comps[0], comps[1], comps[2]
	case 4:
		k := comps[3]
		r, g, b = (1-comps[0])*(1-k), (1-comps[1])*(1-k), (1-comps[2])*(1-k)
	default:
		return 0, false
	}
	return channel(r)<<16 | channel(g)<<8 | channel(b), true
}

func channel(v float64) int {
	return int(math.Round(v * 255))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
