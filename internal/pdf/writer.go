package pdf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spherical/pdf-fidelity/internal/domain"
)

// Artifact file names inside an output directory
const (
	TextFile     = "text.u32"
	MetadataFile = "metadata.jsonl"
)

// ImageFile returns the file name of a page image artifact
func ImageFile(page int, kind domain.ArtifactKind) string {
	ext := "png"
	if kind == domain.ArtifactJPEG {
		ext = "jpg"
	}
	return fmt.Sprintf("page_%03d.%s", page+1, ext)
}

// ArtifactWriter persists extracted artifacts to a directory
type ArtifactWriter struct {
	dir     string
	written []string
}

// NewArtifactWriter creates the output directory if needed
func NewArtifactWriter(dir string) (*ArtifactWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.IOError("Failed to create output directory", err)
	}
	return &ArtifactWriter{dir: dir}, nil
}

// Dir returns the output directory
func (w *ArtifactWriter) Dir() string {
	return w.dir
}

// WriteText writes the document text stream and returns its path
func (w *ArtifactWriter) WriteText(a domain.Artifact) (string, error) {
	return w.write(TextFile, a.Content)
}

// WriteMetadata writes the character metadata stream and returns its path
func (w *ArtifactWriter) WriteMetadata(a domain.Artifact) (string, error) {
	return w.write(MetadataFile, a.Content)
}

// WriteImages writes every image artifact
func (w *ArtifactWriter) WriteImages(images []domain.Artifact) error {
	for _, a := range images {
		if _, err := w.write(ImageFile(a.Page, a.Kind), a.Content); err != nil {
			return err
		}
	}
	return nil
}

// WriteAll writes the text, metadata and image artifacts of a document
func (w *ArtifactWriter) WriteAll(arts *domain.DocumentArtifacts) error {
	if _, err := w.WriteText(arts.Text); err != nil {
		return err
	}
	if _, err := w.WriteMetadata(arts.Metadata); err != nil {
		return err
	}
	return w.WriteImages(arts.Images)
}

func (w *ArtifactWriter) write(name string, content []byte) (string, error) {
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", domain.IOError(fmt.Sprintf("Failed to write %s", name), err)
	}
	w.written = append(w.written, path)
	return path, nil
}

// Cleanup removes every file written so far
func (w *ArtifactWriter) Cleanup() error {
	var errs []error
	for _, p := range w.written {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	w.written = nil

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// ReadVerified reads a persisted artifact and checks its content against the
// recorded hash and size. A missing file or a mismatch is a manifest
// inconsistency.
func ReadVerified(path string, kind domain.ArtifactKind, page int, hash string, size int64) (domain.Artifact, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.Artifact{}, domain.ManifestInconsistency(fmt.Sprintf("cannot read %s artifact %s", kind, path), err)
	}
	if hash == "" {
		return domain.Artifact{}, domain.ManifestInconsistency(fmt.Sprintf("no recorded hash for %s", path), nil)
	}
	a := domain.NewArtifact(kind, page, content)
	if a.Hash != hash || a.Size != size {
		return domain.Artifact{}, domain.ManifestInconsistency(
			fmt.Sprintf("stale %s artifact %s: recorded %s/%d, found %s/%d", kind, path, hash, size, a.Hash, a.Size), nil)
	}
	return a, nil
}
