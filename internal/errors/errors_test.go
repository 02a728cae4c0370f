package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestProcessingError_MessageIncludesCause(t *testing.T) {
	cause := stderrors.New("exit status 1")
	err := NewConversionError("req-1", "pdftocairo command failed", cause)

	if !strings.HasPrefix(err.Error(), "Failed to convert PDF: pdftocairo command failed") {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !strings.Contains(err.Error(), "exit status 1") {
		t.Errorf("expected cause in message, got %s", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
}

func TestCodeOf_WrappedError(t *testing.T) {
	inner := NewRecognitionError("req-2", 3, stderrors.New("tesseract crashed"))
	wrapped := fmt.Errorf("recognize: %w", inner)

	code, ok := CodeOf(wrapped)
	if !ok {
		t.Fatal("expected a ProcessingError in the chain")
	}
	if code != ErrorRecognitionFailed {
		t.Errorf("expected %s, got %s", ErrorRecognitionFailed, code)
	}
	if _, ok := CodeOf(stderrors.New("plain")); ok {
		t.Error("plain errors must not report a code")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewInputValidationError("Only PDF files are allowed"), http.StatusBadRequest},
		{"conversion", NewConversionError("r", "no images", nil), http.StatusInternalServerError},
		{"empty text", NewEmptyTextError("r", 2), http.StatusInternalServerError},
		{"timeout", NewProcessingTimeoutError("r", time.Second, nil), http.StatusInternalServerError},
		{"plain", stderrors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("%s: HTTPStatus() = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestToMap(t *testing.T) {
	err := NewRecognitionError("req-3", 2, stderrors.New("bad image"))
	m := err.ToMap()

	if m["error_code"] != "RECOGNITION_FAILED" {
		t.Errorf("unexpected error_code: %v", m["error_code"])
	}
	if m["page"] != 2 {
		t.Errorf("expected page detail 2, got %v", m["page"])
	}
	if m["cause"] != "bad image" {
		t.Errorf("unexpected cause: %v", m["cause"])
	}
}

func TestWithRequestID_KeepsExisting(t *testing.T) {
	err := NewEmptyTextError("first", 1).WithRequestID("second")
	if err.RequestID != "first" {
		t.Errorf("expected existing request id to be kept, got %s", err.RequestID)
	}

	err = NewInputValidationError("x").WithRequestID("late")
	if err.RequestID != "late" {
		t.Errorf("expected request id to be stamped, got %s", err.RequestID)
	}
}

func TestMessageOf(t *testing.T) {
	wrapped := fmt.Errorf("analyze: %w", NewInputValidationError("Only PDF files are allowed"))
	if got := MessageOf(wrapped, "fallback"); got != "Only PDF files are allowed" {
		t.Errorf("expected the validation message, got %q", got)
	}
	if got := MessageOf(stderrors.New("disk full"), "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
}
