package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/spherical/pdf-fidelity/internal/domain"
)

// RasterEncoder turns rendered pages into lossless and lossy image artifacts
type RasterEncoder struct {
	quality int
	png     png.Encoder
}

// NewRasterEncoder creates an encoder with the given JPEG quality
func NewRasterEncoder(quality int) (*RasterEncoder, error) {
	if err := NewValidator().ValidateQuality(quality); err != nil {
		return nil, err
	}
	return &RasterEncoder{
		quality: quality,
		png:     png.Encoder{CompressionLevel: png.DefaultCompression},
	}, nil
}

// Encode produces the PNG and JPEG artifacts of one page
func (e *RasterEncoder) Encode(page int, img image.Image) (domain.Artifact, domain.Artifact, error) {
	bounds := img.Bounds()

	var pngBuf bytes.Buffer
	if err := e.png.Encode(&pngBuf, img); err != nil {
		return domain.Artifact{}, domain.Artifact{}, domain.IOError(fmt.Sprintf("Failed to encode page %d as PNG", page+1), err)
	}

	var jpgBuf bytes.Buffer
	opts := &jpeg.Options{Quality: e.quality}
	if err := jpeg.Encode(&jpgBuf, img, opts); err != nil {
		return domain.Artifact{}, domain.Artifact{}, domain.IOError(fmt.Sprintf("Failed to encode page %d as JPG", page+1), err)
	}

	lossless := domain.NewArtifact(domain.ArtifactPNG, page, pngBuf.Bytes())
	lossy := domain.NewArtifact(domain.ArtifactJPEG, page, jpgBuf.Bytes())
	lossless.Width, lossless.Height = bounds.Dx(), bounds.Dy()
	lossy.Width, lossy.Height = bounds.Dx(), bounds.Dy()

	return lossless, lossy, nil
}

// Decode reads an encoded raster artifact back into an image
func Decode(a domain.Artifact) (image.Image, error) {
	var (
		img image.Image
		err error
	)
	switch a.Kind {
	case domain.ArtifactPNG:
		img, err = png.Decode(bytes.NewReader(a.Content))
	case domain.ArtifactJPEG:
		img, err = jpeg.Decode(bytes.NewReader(a.Content))
	default:
		return nil, fmt.Errorf("artifact kind %s is not an image", a.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s page %d: %w", a.Kind, a.Page, err)
	}
	return img, nil
}
