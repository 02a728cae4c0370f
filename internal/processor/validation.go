package processor

import (
	"bytes"
	"fmt"
	"mime"
	"strings"

	"github.com/medilens/medreport/internal/config"
	"github.com/medilens/medreport/internal/errors"
)

const pdfMimeType = "application/pdf"

// ValidateUpload checks an upload before any work is done. head holds the
// first bytes of the file and is used when the declared type is missing or
// generic.
func ValidateUpload(mimeType string, size, maxSize int64, head []byte) (string, error) {
	declared := baseMimeType(mimeType)
	if declared == "" || declared == "application/octet-stream" {
		if detected := detectMimeTypeFromMagicBytes(head); detected != "" {
			declared = detected
		}
	}
	if declared != pdfMimeType {
		return declared, errors.NewInputValidationError("Only PDF files are allowed")
	}
	if size > maxSize {
		return declared, errors.NewInputValidationError(fmt.Sprintf("File size exceeds %s limit", config.SizeLabel(maxSize)))
	}
	return declared, nil
}

func baseMimeType(v string) string {
	if v == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(v); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(v))
}

// detectMimeTypeFromMagicBytes detects the actual MIME type from file content magic bytes.
// Browsers and curl often send "application/octet-stream" for PDFs.
func detectMimeTypeFromMagicBytes(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	// PDF: %PDF-
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return pdfMimeType
	}

	// PNG: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "image/png"
	}

	// JPEG: 0xFF 0xD8 0xFF
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return "image/jpeg"
	}

	// ZIP (and Office documents): 'P' 'K' 0x03 0x04
	if bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x03, 0x04}) {
		return "application/zip"
	}

	return ""
}
