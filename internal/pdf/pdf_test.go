package pdf

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-fidelity/internal/domain"
	"github.com/spherical/pdf-fidelity/internal/engine/enginetest"
)

func TestValidatePDFPath(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4\n"), 0o644))
	txtPath := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("x"), 0o644))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "valid pdf", path: pdfPath},
		{name: "non-existent file", path: filepath.Join(dir, "missing.pdf"), wantErr: true},
		{name: "empty path", path: "", wantErr: true},
		{name: "directory instead of file", path: dir, wantErr: true},
		{name: "wrong extension", path: txtPath, wantErr: true},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidatePDFPath(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateQuality(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.ValidateQuality(85))
	assert.NoError(t, v.ValidateQuality(1))
	assert.NoError(t, v.ValidateQuality(100))
	assert.Error(t, v.ValidateQuality(0))
	assert.Error(t, v.ValidateQuality(101))
}

func TestChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	v := NewValidator()
	sum, err := v.Checksum(path)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)

	assert.NoError(t, v.VerifyChecksum(path, sum))

	err = v.VerifyChecksum(path, "deadbeef")
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeManifestInconsistency))
}

func TestPageCount_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf at all"), 0o644))

	_, err := NewValidator().PageCount(path)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeDocumentLoad))
}

func TestPageCount_Fixture(t *testing.T) {
	path, err := enginetest.WritePDF(t.TempDir(), "three.pdf",
		"BT /F1 12 Tf 72 700 Td (one) Tj ET",
		"BT /F1 12 Tf 72 700 Td (two) Tj ET",
		"BT /F1 12 Tf 72 700 Td (three) Tj ET",
	)
	require.NoError(t, err)

	v := NewValidator()
	require.NoError(t, v.ValidatePDFPath(path))
	n, err := v.PageCount(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func checker(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/4+y/4)%2 == 0 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return img
}

func TestRasterEncoder_Encode(t *testing.T) {
	enc, err := NewRasterEncoder(85)
	require.NoError(t, err)

	src := checker(32, 24)
	lossless, lossy, err := enc.Encode(2, src)
	require.NoError(t, err)

	assert.Equal(t, domain.ArtifactPNG, lossless.Kind)
	assert.Equal(t, domain.ArtifactJPEG, lossy.Kind)
	for _, a := range []domain.Artifact{lossless, lossy} {
		assert.Equal(t, 2, a.Page)
		assert.Equal(t, 32, a.Width)
		assert.Equal(t, 24, a.Height)
		assert.True(t, a.Verify())
	}

	// PNG round trip is pixel exact
	decoded, err := Decode(lossless)
	require.NoError(t, err)
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			r1, g1, b1, _ := src.At(x, y).RGBA()
			r2, g2, b2, _ := decoded.At(x, y).RGBA()
			require.Equal(t, []uint32{r1, g1, b1}, []uint32{r2, g2, b2})
		}
	}

	_, err = Decode(lossy)
	require.NoError(t, err)
}

func TestRasterEncoder_Deterministic(t *testing.T) {
	enc, err := NewRasterEncoder(85)
	require.NoError(t, err)

	a1, b1, err := enc.Encode(0, checker(16, 16))
	require.NoError(t, err)
	a2, b2, err := enc.Encode(0, checker(16, 16))
	require.NoError(t, err)

	assert.Equal(t, a1.Hash, a2.Hash)
	assert.Equal(t, b1.Hash, b2.Hash)
}

func TestNewRasterEncoder_InvalidQuality(t *testing.T) {
	_, err := NewRasterEncoder(0)
	assert.Error(t, err)
}

func TestDecode_NotImage(t *testing.T) {
	_, err := Decode(domain.NewArtifact(domain.ArtifactText, 0, []byte("x")))
	assert.Error(t, err)
}

func TestImageFile(t *testing.T) {
	assert.Equal(t, "page_001.png", ImageFile(0, domain.ArtifactPNG))
	assert.Equal(t, "page_012.jpg", ImageFile(11, domain.ArtifactJPEG))
}

func TestArtifactWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w, err := NewArtifactWriter(dir)
	require.NoError(t, err)
	assert.DirExists(t, w.Dir())

	enc, err := NewRasterEncoder(85)
	require.NoError(t, err)
	png, jpg, err := enc.Encode(0, checker(8, 8))
	require.NoError(t, err)

	arts := &domain.DocumentArtifacts{
		Text:     domain.NewArtifact(domain.ArtifactText, domain.DocumentLevel, []byte{0xFF, 0xFF, 0xFF, 0xFF}),
		Metadata: domain.NewArtifact(domain.ArtifactMetadata, domain.DocumentLevel, []byte("{}\n")),
		Images:   []domain.Artifact{png, jpg},
	}
	require.NoError(t, w.WriteAll(arts))

	for _, name := range []string{TextFile, MetadataFile, "page_001.png", "page_001.jpg"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	got, err := ReadVerified(filepath.Join(dir, TextFile), domain.ArtifactText, domain.DocumentLevel, arts.Text.Hash, arts.Text.Size)
	require.NoError(t, err)
	assert.Equal(t, arts.Text.Content, got.Content)

	require.NoError(t, w.Cleanup())
	_, err = os.Stat(filepath.Join(dir, TextFile))
	assert.True(t, os.IsNotExist(err))
}

func TestReadVerified_Inconsistent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, TextFile)
	require.NoError(t, os.WriteFile(path, []byte("changed"), 0o644))

	tests := []struct {
		name string
		path string
		hash string
		size int64
	}{
		{name: "missing file", path: filepath.Join(dir, "nope"), hash: domain.HashBytes([]byte("x")), size: 1},
		{name: "missing hash", path: path, hash: "", size: 7},
		{name: "stale hash", path: path, hash: domain.HashBytes([]byte("original")), size: 8},
		{name: "size mismatch", path: path, hash: domain.HashBytes([]byte("changed")), size: 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadVerified(tt.path, domain.ArtifactText, domain.DocumentLevel, tt.hash, tt.size)
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeManifestInconsistency))
		})
	}
}
