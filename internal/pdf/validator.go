package pdf

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/spherical/pdf-fidelity/internal/domain"
)

// Validator provides input validation for PDF files
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePDFPath validates that a file path is valid and points to a PDF
func (v *Validator) ValidatePDFPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" {
		return domain.ValidationError(fmt.Sprintf("file is not a PDF (has extension %s)", ext), nil)
	}

	file, err := os.Open(path)
	if err != nil {
		return domain.ValidationError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	file.Close()

	return nil
}

// ValidateQuality validates image quality parameter
func (v *Validator) ValidateQuality(quality int) error {
	if quality < 1 || quality > 100 {
		return domain.ValidationError(fmt.Sprintf("quality must be between 1 and 100, got %d", quality), nil)
	}
	return nil
}

// Checksum returns the sha256 hex digest of the file at path
func (v *Validator) Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", domain.IOError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", domain.IOError(fmt.Sprintf("cannot read file: %s", path), err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum recomputes the file checksum and compares it with expected
func (v *Validator) VerifyChecksum(path, expected string) error {
	actual, err := v.Checksum(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, expected) {
		return domain.ManifestInconsistency(
			fmt.Sprintf("checksum mismatch for %s: registered %s, found %s", path, expected, actual), nil)
	}
	return nil
}

// PageCount reads the page tree with pdfcpu, independently of the rendering
// engine. Malformed and protected inputs fail here with a DocumentLoadError.
func (v *Validator) PageCount(path string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.DocumentLoadError(fmt.Sprintf("cannot parse %s", path), fmt.Errorf("%v", r))
		}
	}()

	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return 0, domain.DocumentLoadError(fmt.Sprintf("cannot parse %s", path), err)
	}
	return ctx.PageCount, nil
}
