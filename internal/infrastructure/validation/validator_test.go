package validation

import (
	"testing"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

func TestValidateRejectsUnsupportedExtension(t *testing.T) {
	v := New()
	err := v.Validate("malware.exe", "application/octet-stream", []byte{0x4D, 0x5A})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidateRejectsEmptyFile(t *testing.T) {
	v := New()
	err := v.Validate("dni.pdf", "application/pdf", nil)
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidateRejectsMimeExtensionMismatch(t *testing.T) {
	v := New()
	err := v.Validate("dni.pdf", "image/png", []byte("%PDF-1.4"))
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidateRejectsTruncatedPDF(t *testing.T) {
	v := New()
	err := v.Validate("dni.pdf", "application/pdf", []byte("%PDF-1.4 truncated"))
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidateAcceptsPNGMagic(t *testing.T) {
	v := New()
	data := append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 16)...)
	if err := v.Validate("scan.png", "image/png", data); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateAcceptsJPEGWithoutMime(t *testing.T) {
	v := New()
	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 16)...)
	if err := v.Validate("scan.jpg", "", data); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
