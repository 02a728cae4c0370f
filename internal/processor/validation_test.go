package processor

import (
	"testing"

	"github.com/medilens/medreport/internal/errors"
)

func TestValidateUpload(t *testing.T) {
	pdf := []byte("%PDF-1.4\n")
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	const limit = 10 * 1024 * 1024

	tests := []struct {
		name    string
		mime    string
		size    int64
		head    []byte
		wantErr string
	}{
		{"declared pdf", "application/pdf", 100, pdf, ""},
		{"pdf with params", "application/pdf; charset=binary", 100, pdf, ""},
		{"octet stream sniffed", "application/octet-stream", 100, pdf, ""},
		{"missing type sniffed", "", 100, pdf, ""},
		{"image", "image/png", 100, png, "Only PDF files are allowed"},
		{"octet stream png", "application/octet-stream", 100, png, "Only PDF files are allowed"},
		{"declared pdf wins", "text/plain", 100, pdf, "Only PDF files are allowed"},
		{"too large", "application/pdf", limit + 1, pdf, "File size exceeds 10MB limit"},
		{"exactly at limit", "application/pdf", limit, pdf, ""},
	}

	for _, tt := range tests {
		_, err := ValidateUpload(tt.mime, tt.size, limit, tt.head)
		if tt.wantErr == "" {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tt.name, err)
			}
			continue
		}
		if err == nil || err.Error() != tt.wantErr {
			t.Errorf("%s: expected %q, got %v", tt.name, tt.wantErr, err)
			continue
		}
		if errors.HTTPStatus(err) != 400 {
			t.Errorf("%s: expected 400, got %d", tt.name, errors.HTTPStatus(err))
		}
	}
}

func TestDetectMimeTypeFromMagicBytes(t *testing.T) {
	tests := []struct {
		data []byte
		want string
	}{
		{[]byte("%PDF-1.7"), "application/pdf"},
		{[]byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg"},
		{[]byte{0x50, 0x4B, 0x03, 0x04}, "application/zip"},
		{[]byte("abc"), ""},
		{[]byte("plain text"), ""},
	}
	for _, tt := range tests {
		if got := detectMimeTypeFromMagicBytes(tt.data); got != tt.want {
			t.Errorf("detect(%q) = %q, want %q", tt.data, got, tt.want)
		}
	}
}
