package upload

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/hadassahlevi/tiktax-client/internal/core/domain"
)

// MaxUploadBytes bounds a single receipt file.
const MaxUploadBytes = 10 << 20

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	pdfMagic  = []byte("%PDF-")
)

// Sniff determines the content type of a receipt file from its leading
// bytes. PDFs must additionally parse and contain at least one page, so
// a corrupt scan is rejected before any bytes leave the machine.
func Sniff(filename string, data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, jpegMagic):
		return "image/jpeg", nil
	case bytes.HasPrefix(data, pngMagic):
		return "image/png", nil
	case bytes.HasPrefix(data, pdfMagic):
		if err := checkPDF(data); err != nil {
			return "", domain.WrapError(domain.ErrValidation, "sniff",
				&domain.FieldError{Field: "image", Reason: fmt.Sprintf("unreadable pdf: %v", err)})
		}
		return "application/pdf", nil
	default:
		return "", domain.WrapError(domain.ErrValidation, "sniff",
			&domain.FieldError{Field: "image", Reason: fmt.Sprintf("%s is not a jpeg, png or pdf", filename)})
	}
}

// The pdf package panics on some malformed inputs; a corrupt upload
// must surface as a validation error, not a crash.
func checkPDF(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}
	if reader.NumPage() < 1 {
		return fmt.Errorf("no pages")
	}
	return nil
}
