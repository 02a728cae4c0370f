package processor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/medilens/medreport/internal/analysis"
)

// AnalyzeFile validates and processes a PDF on local disk. The file itself
// is copied into the work directory and never modified.
func (p *DocumentProcessor) AnalyzeFile(ctx context.Context, path string, maxSize int64) (*analysis.AnalysisResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	mimeType, err := ValidateUpload("", info.Size(), maxSize, head[:n])
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind %s: %w", path, err)
	}

	return p.ProcessDocument(ctx, &ProcessRequest{
		Filename: filepath.Base(path),
		MimeType: mimeType,
		FileSize: info.Size(),
		File:     f,
	})
}
