/**
 * Document Processor for the medical report analyzer
 *
 * Runs one uploaded report through the pipeline:
 * - Rasterize every PDF page (pdftocairo)
 * - OCR the pages in parallel (tesseract)
 * - Normalize, extract, classify and summarize the text
 *
 * Every request works in its own temporary directory, removed on all exits.
 */

package processor

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/medilens/medreport/internal/analysis"
	"github.com/medilens/medreport/internal/errors"
	"github.com/medilens/medreport/internal/logging"
	"github.com/medilens/medreport/internal/status"
)

const (
	workDirPrefix = "medical-report-"
	documentName  = "document.pdf"
	pagesDirName  = "pages"
)

// DocumentProcessorInterface defines the interface for document processing
type DocumentProcessorInterface interface {
	ProcessDocument(ctx context.Context, req *ProcessRequest) (*analysis.AnalysisResult, error)
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	TempDir     string
	Concurrency int
	Timeout     time.Duration // zero disables the deadline
	Rasterizer  Rasterizer
	Recognizer  Recognizer
	Tracker     status.Tracker
	Logger      *logging.Logger
}

// ProcessRequest represents one uploaded report
type ProcessRequest struct {
	RequestID string
	Filename  string
	MimeType  string
	FileSize  int64
	File      io.Reader
}

// DocumentProcessor handles document processing
type DocumentProcessor struct {
	config     *ProcessorConfig
	rasterizer Rasterizer
	recognizer Recognizer
	tracker    status.Tracker
	logger     *logging.Logger
}

// NewDocumentProcessor creates a new document processor
func NewDocumentProcessor(cfg *ProcessorConfig) (*DocumentProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Rasterizer == nil {
		return nil, fmt.Errorf("rasterizer is required")
	}
	if cfg.Recognizer == nil {
		return nil, fmt.Errorf("recognizer is required")
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	tracker := cfg.Tracker
	if tracker == nil {
		tracker = status.NewMemoryTracker(10 * time.Minute)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &DocumentProcessor{
		config:     cfg,
		rasterizer: cfg.Rasterizer,
		recognizer: cfg.Recognizer,
		tracker:    tracker,
		logger:     logger,
	}, nil
}

// ProcessDocument processes a document through the complete pipeline
func (p *DocumentProcessor) ProcessDocument(ctx context.Context, req *ProcessRequest) (*analysis.AnalysisResult, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.File == nil {
		return nil, errors.NewInputValidationError("No file uploaded. Please upload a PDF file.").WithRequestID(req.RequestID)
	}

	ctx = WithRequestID(ctx, req.RequestID)
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	log := p.logger.With("requestId", req.RequestID)
	start := time.Now()
	log.Info("Starting analysis pipeline", "filename", req.Filename, "size", req.FileSize)
	p.transition(ctx, log, req.RequestID, status.StateReceived, req.Filename)

	result, err := p.run(ctx, log, req)
	if err != nil {
		perr := p.classifyFailure(ctx, req.RequestID, start, err)
		log.Error("Analysis failed", "error", perr.ToMap(), "durationMs", time.Since(start).Milliseconds())
		err = perr
		p.transition(context.WithoutCancel(ctx), log, req.RequestID, status.StateFailed, err.Error())
		return nil, err
	}

	log.Info("Analysis completed",
		"tests", len(result.TestResults),
		"patientFields", len(result.PatientInfo),
		"durationMs", time.Since(start).Milliseconds())
	p.transition(ctx, log, req.RequestID, status.StateCompleted, "")
	return result, nil
}

func (p *DocumentProcessor) run(ctx context.Context, log *logging.Logger, req *ProcessRequest) (*analysis.AnalysisResult, error) {
	workDir, err := p.createWorkDir()
	if err != nil {
		return nil, errors.NewConversionError(req.RequestID, "could not create work directory", err)
	}
	docPath := filepath.Join(workDir, documentName)
	pagesDir := filepath.Join(workDir, pagesDirName)
	defer p.cleanup(log, workDir, docPath, pagesDir)

	if err := saveDocument(docPath, req.File); err != nil {
		return nil, errors.NewConversionError(req.RequestID, "could not store uploaded document", err)
	}

	// Step 1: Rasterize
	pages, err := p.rasterizer.RasterizePdf(ctx, docPath, pagesDir)
	if err != nil {
		return nil, err
	}
	p.transition(ctx, log, req.RequestID, status.StateRasterized, fmt.Sprintf("%d pages", len(pages)))

	// Step 2: OCR
	texts, err := RecognizePages(ctx, p.recognizer, pages, p.config.Concurrency, log)
	if err != nil {
		return nil, err
	}
	p.transition(ctx, log, req.RequestID, status.StateRecognized, "")

	// Step 3: Normalize
	text := analysis.Normalize(texts)
	if analysis.IsBlank(text) {
		return nil, errors.NewEmptyTextError(req.RequestID, len(pages))
	}
	p.transition(ctx, log, req.RequestID, status.StateNormalized, "")

	// Step 4: Extract
	info, tests := analysis.Extract(text)
	p.transition(ctx, log, req.RequestID, status.StateExtracted, fmt.Sprintf("%d tests", len(tests)))

	// Step 5: Classify
	tests = analysis.ClassifyAll(tests)
	p.transition(ctx, log, req.RequestID, status.StateClassified, "")

	// Step 6: Summarize
	summary := analysis.Summarize(info, tests)
	p.transition(ctx, log, req.RequestID, status.StateSummarized, "")

	return &analysis.AnalysisResult{
		Success:     true,
		PatientInfo: info,
		TestResults: tests,
		Summary:     summary,
	}, nil
}

// Tracker exposes the status tracker requests are recorded in.
func (p *DocumentProcessor) Tracker() status.Tracker {
	return p.tracker
}

// classifyFailure turns context expiry into a timeout error and makes sure
// every failure carries the request id.
func (p *DocumentProcessor) classifyFailure(ctx context.Context, requestID string, start time.Time, err error) *errors.ProcessingError {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewProcessingTimeoutError(requestID, time.Since(start), err)
	}

	var perr *errors.ProcessingError
	if stderrors.As(err, &perr) {
		return perr.WithRequestID(requestID)
	}
	return errors.NewConversionError(requestID, err.Error(), err)
}

func (p *DocumentProcessor) transition(ctx context.Context, log *logging.Logger, requestID string, state status.State, detail string) {
	log.Debug("Pipeline state changed", "state", string(state), "detail", detail)
	if err := p.tracker.Record(ctx, requestID, state, detail); err != nil {
		log.Warn("Failed to record pipeline state", "state", string(state), "error", err)
	}
}

func (p *DocumentProcessor) createWorkDir() (string, error) {
	if err := os.MkdirAll(p.config.TempDir, 0o755); err != nil {
		return "", err
	}
	dir := filepath.Join(p.config.TempDir, workDirPrefix+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// cleanup removes the page images, the document and the work directory, in
// that order. Failures are logged and never returned.
func (p *DocumentProcessor) cleanup(log *logging.Logger, workDir, docPath, pagesDir string) {
	if err := os.RemoveAll(pagesDir); err != nil {
		log.Warn("Failed to remove page images", "path", pagesDir, "error", err)
	}
	if err := os.Remove(docPath); err != nil && !os.IsNotExist(err) {
		log.Warn("Failed to remove document", "path", docPath, "error", err)
	}
	if err := os.RemoveAll(workDir); err != nil {
		log.Warn("Failed to remove work directory", "path", workDir, "error", err)
	}
}

func saveDocument(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type requestIDKey struct{}

// WithRequestID attaches a request id for log and error correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
