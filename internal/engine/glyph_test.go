package engine

import (
	"testing"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-fidelity/internal/domain"
	"github.com/spherical/pdf-fidelity/internal/engine/enginetest"
)

const delta = 1e-9

func upright(s string, size, x, y, advance float64) glyph {
	return glyph{S: s, Font: "Helvetica", Trm: affine{size, 0, 0, size, x, y}, Advance: advance}
}

func assertBox(t *testing.T, want, got [4]float64) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], delta, "bbox[%d]", i)
	}
}

// pageGlyphs writes a one-page fixture with the given content stream and
// walks it.
func pageGlyphs(t *testing.T, content string) []glyph {
	t.Helper()
	path, err := enginetest.WritePDF(t.TempDir(), "page.pdf", content)
	require.NoError(t, err)

	f, r, err := lpdf.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	return contentGlyphs(r.Page(1))
}

func TestGlyphRecords_OrderAndGeometry(t *testing.T) {
	glyphs := []glyph{
		upright("B", 10, 72, 700, 0.6),
		upright("a", 10, 78, 700, 0.5),
	}

	recs := glyphRecords(3, 792, glyphs)
	require.Len(t, recs, 2)

	assert.Equal(t, "B", recs[0].Char)
	assert.Equal(t, 'B', rune(recs[0].CodePoint))
	assert.Equal(t, 3, recs[0].Page)
	assertBox(t, [4]float64{72, 84, 78, 94}, recs[0].BBox)
	assert.Equal(t, [2]float64{72, 92}, recs[0].Origin)
	assert.Equal(t, 10.0, recs[0].Size)
	assert.Equal(t, 0.0, recs[0].Angle)
	assert.Equal(t, [6]float64{10, 0, 0, 10, 72, 700}, recs[0].Matrix)
	assert.Equal(t, "a", recs[1].Char)
	assert.False(t, recs[0].Synthetic)
}

func TestGlyphRecords_CarriesSyntheticAndStyle(t *testing.T) {
	first := upright("f", 12, 10, 100, 0.5)
	first.Font = "Times-Roman"
	second := upright("i", 12, 16, 100, 0)
	second.Font = "Times-Roman"
	second.Synthetic = true

	recs := glyphRecords(0, 792, []glyph{first, second})
	require.Len(t, recs, 2)
	assert.False(t, recs[0].Synthetic)
	assert.True(t, recs[1].Synthetic)
	assert.Equal(t, domain.FontFlagSerif, recs[0].Flags&domain.FontFlagSerif)
}

func TestGlyphRecords_HyphenAndDecodeError(t *testing.T) {
	glyphs := []glyph{
		upright("a", 10, 10, 100, 0.5),
		upright("-", 10, 15, 100, 0.5),
		upright("�", 10, 10, 88, 0.5),
		upright("-", 10, 15, 88, 0.5),
		upright("b", 10, 20, 88, 0.5),
	}

	recs := glyphRecords(0, 792, glyphs)
	require.Len(t, recs, 5)
	assert.True(t, recs[1].Hyphen)
	assert.True(t, recs[2].DecodeError)
	assert.False(t, recs[3].Hyphen)
}

func TestGlyphRecords_SkipsEmptyGlyphs(t *testing.T) {
	recs := glyphRecords(0, 792, []glyph{{S: ""}})
	assert.Empty(t, recs)
}

func TestContentGlyphs_RotatedColouredRun(t *testing.T) {
	glyphs := pageGlyphs(t, "q 1 0 0 rg 0 0 1 RG BT /F1 12 Tf 0 1 -1 0 300 400 Tm (Up) Tj ET Q "+
		"BT /F1 10 Tf 72 700 Td (A) Tj ET")
	require.Len(t, glyphs, 3)

	recs := glyphRecords(0, enginetest.PageHeight, glyphs)
	require.Len(t, recs, 3)

	up := recs[0]
	assert.Equal(t, "U", up.Char)
	assert.Equal(t, "Helvetica", up.Font)
	assert.Equal(t, [6]float64{0, 12, -12, 0, 300, 400}, up.Matrix)
	assert.InDelta(t, 90.0, up.Angle, delta)
	assert.InDelta(t, 12.0, up.Size, delta)
	assert.Equal(t, 0xFF0000, up.Fill)
	assert.Equal(t, 0x0000FF, up.Stroke)
	// the cell extends left of the baseline when rotated a quarter turn
	assertBox(t, [4]float64{300 - 9.6, 792 - 400 - 7.2, 300 + 2.4, 792 - 400}, up.BBox)

	p := recs[1]
	assert.Equal(t, "p", p.Char)
	assert.InDelta(t, 300, p.Matrix[4], delta)
	assert.InDelta(t, 407.2, p.Matrix[5], delta)
	assert.Equal(t, 0xFF0000, p.Fill)

	// Q restores the default black fill and the upright matrix
	a := recs[2]
	assert.Equal(t, 0, a.Fill)
	assert.Equal(t, 0, a.Stroke)
	assert.InDelta(t, 0.0, a.Angle, delta)
	assert.Equal(t, [6]float64{10, 0, 0, 10, 72, 700}, a.Matrix)
}

func TestContentGlyphs_TransformsAndSpacing(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, g []glyph)
	}{
		{
			name:    "cm scales text space",
			content: "q 2 0 0 2 10 10 cm BT /F1 10 Tf 5 5 Td (C) Tj ET Q",
			check: func(t *testing.T, g []glyph) {
				require.Len(t, g, 1)
				assert.Equal(t, affine{20, 0, 0, 20, 20, 20}, g[0].Trm)
				assert.InDelta(t, 20.0, g[0].size(), delta)
			},
		},
		{
			name:    "TJ adjustment moves the next glyph",
			content: "BT /F1 10 Tf 0 0 Td [(A) -1000 (B)] TJ ET",
			check: func(t *testing.T, g []glyph) {
				require.Len(t, g, 2)
				assert.InDelta(t, 0, g[0].Trm[4], delta)
				assert.InDelta(t, 16, g[1].Trm[4], delta)
			},
		},
		{
			name:    "word and character spacing",
			content: "BT /F1 10 Tf 2 Tc 3 Tw (a b) Tj ET",
			check: func(t *testing.T, g []glyph) {
				require.Len(t, g, 3)
				assert.InDelta(t, 8, g[1].Trm[4], delta)
				assert.InDelta(t, 19, g[2].Trm[4], delta)
			},
		},
		{
			name:    "T* uses leading",
			content: "BT /F1 10 Tf 14 TL 72 700 Td (x) Tj T* (y) Tj ET",
			check: func(t *testing.T, g []glyph) {
				require.Len(t, g, 2)
				assert.InDelta(t, 72, g[1].Trm[4], delta)
				assert.InDelta(t, 686, g[1].Trm[5], delta)
			},
		},
		{
			name:    "cmyk and gray fills",
			content: "1 0 0 0 k BT /F1 10 Tf (c) Tj ET 0.5 g BT /F1 10 Tf (g) Tj ET",
			check: func(t *testing.T, g []glyph) {
				require.Len(t, g, 2)
				assert.Equal(t, 0x00FFFF, g[0].Fill)
				assert.Equal(t, 0x808080, g[1].Fill)
			},
		},
		{
			name:    "operators missing operands are ignored",
			content: "BT /F1 10 Tf 5 Tm 3 Td (z) Tj ET",
			check: func(t *testing.T, g []glyph) {
				require.Len(t, g, 1)
				assert.InDelta(t, 0, g[0].Trm[4], delta)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, pageGlyphs(t, tt.content))
		})
	}
}

func TestFontStyle(t *testing.T) {
	tests := []struct {
		font   string
		weight int
		flags  int
	}{
		{"Helvetica", weightRegular, 0},
		{"Helvetica-Bold", weightBold, domain.FontFlagBold},
		{"Times-BoldItalic", weightBold, domain.FontFlagBold | domain.FontFlagItalic | domain.FontFlagSerif},
		{"Courier-Oblique", weightRegular, domain.FontFlagItalic | domain.FontFlagMonospace},
		{"DejaVuSans", weightRegular, 0},
		{"NotoSerif", weightRegular, domain.FontFlagSerif},
	}
	for _, tt := range tests {
		t.Run(tt.font, func(t *testing.T) {
			w, f := fontStyle(tt.font)
			assert.Equal(t, tt.weight, w)
			assert.Equal(t, tt.flags, f)
		})
	}
}
