package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/medilens/medreport/internal/errors"
	"github.com/medilens/medreport/internal/status"
)

// fakeRasterizer writes empty page files so cleanup has something to remove.
type fakeRasterizer struct {
	pages int
	err   error
	wait  time.Duration
	seen  string
}

func (f *fakeRasterizer) RasterizePdf(ctx context.Context, pdfPath, outDir string) ([]PageImage, error) {
	f.seen = pdfPath
	if f.wait > 0 {
		select {
		case <-time.After(f.wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	var pages []PageImage
	for i := 1; i <= f.pages; i++ {
		p := filepath.Join(outDir, fmt.Sprintf("page-%d.png", i))
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			return nil, err
		}
		pages = append(pages, PageImage{Index: i, Path: p})
	}
	return pages, nil
}

func newTestProcessor(t *testing.T, r Rasterizer, rec Recognizer) (*DocumentProcessor, string) {
	t.Helper()
	tmp := t.TempDir()
	p, err := NewDocumentProcessor(&ProcessorConfig{
		TempDir:     tmp,
		Concurrency: 2,
		Rasterizer:  r,
		Recognizer:  rec,
		Tracker:     status.NewMemoryTracker(time.Minute),
	})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	return p, tmp
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	if len(entries) != 0 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected no leftovers in temp dir, found %v", names)
	}
}

func request(id string) *ProcessRequest {
	body := "%PDF-1.4 fake"
	return &ProcessRequest{
		RequestID: id,
		Filename:  "report.pdf",
		MimeType:  "application/pdf",
		FileSize:  int64(len(body)),
		File:      strings.NewReader(body),
	}
}

func TestProcessDocument_Success(t *testing.T) {
	raster := &fakeRasterizer{pages: 2}
	rec := &fakeRecognizer{texts: map[string]string{
		"page-1.png": "Patient Name: John Doe\nAge: 45 years",
		"page-2.png": "Glucose: 250 mg/dL (70-100)\nHemoglobin 14 g/dL",
	}}
	p, tmp := newTestProcessor(t, raster, rec)

	result, err := p.ProcessDocument(context.Background(), request("req-ok"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Success {
		t.Error("expected success")
	}
	if result.PatientInfo["name"] != "John Doe" {
		t.Errorf("expected patient name, got %v", result.PatientInfo)
	}
	if len(result.TestResults) != 2 {
		t.Fatalf("expected 2 tests, got %+v", result.TestResults)
	}
	if result.TestResults[0].Status != "high" {
		t.Errorf("expected high glucose, got %s", result.TestResults[0].Status)
	}
	if !strings.Contains(result.Summary, "1 of 2 test(s)") {
		t.Errorf("unexpected summary %q", result.Summary)
	}
	if !strings.HasPrefix(filepath.Base(filepath.Dir(raster.seen)), workDirPrefix) {
		t.Errorf("expected document inside a per-request work dir, got %s", raster.seen)
	}

	assertEmptyDir(t, tmp)

	entry, err := p.Tracker().Lookup(context.Background(), "req-ok")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if entry.State != status.StateCompleted {
		t.Errorf("expected completed state, got %s", entry.State)
	}
}

func TestProcessDocument_EmptyText(t *testing.T) {
	rec := &fakeRecognizer{texts: map[string]string{"page-1.png": "  \n\t ", "page-2.png": "©®"}}
	p, tmp := newTestProcessor(t, &fakeRasterizer{pages: 2}, rec)

	_, err := p.ProcessDocument(context.Background(), request("req-empty"))
	if !errors.Is(err, errors.ErrorEmptyText) {
		t.Fatalf("expected empty text error, got %v", err)
	}

	assertEmptyDir(t, tmp)

	entry, _ := p.Tracker().Lookup(context.Background(), "req-empty")
	if entry == nil || entry.State != status.StateFailed {
		t.Errorf("expected failed state, got %+v", entry)
	}
}

func TestProcessDocument_RasterizeFailure(t *testing.T) {
	raster := &fakeRasterizer{err: errors.NewConversionError("", "bad xref", nil)}
	p, tmp := newTestProcessor(t, raster, &fakeRecognizer{})

	_, err := p.ProcessDocument(context.Background(), request("req-bad"))
	if !errors.Is(err, errors.ErrorConversionFailed) {
		t.Fatalf("expected conversion error, got %v", err)
	}
	if errors.HTTPStatus(err) != 500 {
		t.Errorf("expected 500, got %d", errors.HTTPStatus(err))
	}

	var perr *errors.ProcessingError
	if pe, ok := err.(*errors.ProcessingError); ok {
		perr = pe
	}
	if perr == nil || perr.RequestID != "req-bad" {
		t.Errorf("expected request id on error, got %+v", err)
	}

	assertEmptyDir(t, tmp)
}

func TestProcessDocument_RecognitionFailure(t *testing.T) {
	rec := &fakeRecognizer{
		texts:    map[string]string{"page-1.png": "Glucose 90 mg/dL"},
		failures: map[string]error{"page-2.png": fmt.Errorf("engine crashed")},
	}
	p, tmp := newTestProcessor(t, &fakeRasterizer{pages: 2}, rec)

	_, err := p.ProcessDocument(context.Background(), request("req-ocr"))
	if !errors.Is(err, errors.ErrorRecognitionFailed) {
		t.Fatalf("expected recognition error, got %v", err)
	}
	assertEmptyDir(t, tmp)
}

func TestProcessDocument_Timeout(t *testing.T) {
	tmp := t.TempDir()
	p, err := NewDocumentProcessor(&ProcessorConfig{
		TempDir:    tmp,
		Timeout:    20 * time.Millisecond,
		Rasterizer: &fakeRasterizer{pages: 1, wait: time.Second},
		Recognizer: &fakeRecognizer{},
	})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	_, err = p.ProcessDocument(context.Background(), request("req-slow"))
	if !errors.Is(err, errors.ErrorProcessingTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	assertEmptyDir(t, tmp)
}

func TestProcessDocument_NoFile(t *testing.T) {
	p, _ := newTestProcessor(t, &fakeRasterizer{}, &fakeRecognizer{})

	_, err := p.ProcessDocument(context.Background(), &ProcessRequest{})
	if !errors.Is(err, errors.ErrorInputValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewDocumentProcessor_RequiresCollaborators(t *testing.T) {
	if _, err := NewDocumentProcessor(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewDocumentProcessor(&ProcessorConfig{Recognizer: &fakeRecognizer{}}); err == nil {
		t.Error("expected error without rasterizer")
	}
	if _, err := NewDocumentProcessor(&ProcessorConfig{Rasterizer: &fakeRasterizer{}}); err == nil {
		t.Error("expected error without recognizer")
	}
}

func TestAnalyzeFile(t *testing.T) {
	rec := &fakeRecognizer{texts: map[string]string{"page-1.png": "Cholesterol: 180 mg/dL"}}
	p, tmp := newTestProcessor(t, &fakeRasterizer{pages: 1}, rec)

	path := filepath.Join(t.TempDir(), "report.pdf")
	os.WriteFile(path, []byte("%PDF-1.7\n..."), 0o644)

	result, err := p.AnalyzeFile(context.Background(), path, 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.TestResults) != 1 || result.TestResults[0].Status != "normal" {
		t.Errorf("unexpected tests %+v", result.TestResults)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected input file to be kept: %v", err)
	}
	assertEmptyDir(t, tmp)

	notPDF := filepath.Join(t.TempDir(), "scan.png")
	os.WriteFile(notPDF, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, 0o644)
	if _, err := p.AnalyzeFile(context.Background(), notPDF, 1024); !errors.Is(err, errors.ErrorInputValidation) {
		t.Errorf("expected validation error for png, got %v", err)
	}
}
