// Package validation rejects malformed or unsupported uploads before any
// pipeline side effect happens.
package validation

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

// Formats the analysis collaborator accepts.
var allowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

func (v *Validator) Validate(filename, mimeType string, data []byte) error {
	if strings.TrimSpace(filename) == "" {
		return domain.WrapError(domain.ErrValidation, "validate upload", fmt.Errorf("empty filename"))
	}
	if len(data) == 0 {
		return domain.WrapError(domain.ErrValidation, "validate upload", fmt.Errorf("empty file"))
	}

	ext := strings.ToLower(filepath.Ext(filename))
	wantMime, ok := allowedExtensions[ext]
	if !ok {
		return domain.WrapError(domain.ErrValidation, "validate upload",
			fmt.Errorf("unsupported extension %q", ext))
	}
	if mimeType != "" && !strings.EqualFold(mimeType, wantMime) {
		return domain.WrapError(domain.ErrValidation, "validate upload",
			fmt.Errorf("mime type %q does not match extension %q", mimeType, ext))
	}

	switch ext {
	case ".pdf":
		return validatePDF(data)
	case ".png":
		return validateMagic(data, []byte{0x89, 'P', 'N', 'G'}, "png")
	case ".jpg", ".jpeg":
		return validateMagic(data, []byte{0xFF, 0xD8, 0xFF}, "jpeg")
	case ".tif", ".tiff":
		if bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*")) {
			return nil
		}
		return domain.WrapError(domain.ErrValidation, "validate upload", fmt.Errorf("not a tiff file"))
	}
	return nil
}

// validatePDF opens the document structure, not just the magic bytes, so
// truncated or encrypted uploads are rejected here instead of failing later
// inside the analysis service.
func validatePDF(data []byte) error {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.WrapError(domain.ErrValidation, "validate upload", fmt.Errorf("unreadable pdf: %w", err))
	}
	if reader.NumPage() < 1 {
		return domain.WrapError(domain.ErrValidation, "validate upload", fmt.Errorf("pdf has no pages"))
	}
	return nil
}

func validateMagic(data, magic []byte, format string) error {
	if !bytes.HasPrefix(data, magic) {
		return domain.WrapError(domain.ErrValidation, "validate upload", fmt.Errorf("not a %s file", format))
	}
	return nil
}
