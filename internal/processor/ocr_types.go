/**
 * OCR Types - Shared data structures for the rasterize and recognize stages
 */

package processor

import (
	"context"
)

// PageImage is one rendered page. Index is 1-based and contiguous across a document.
type PageImage struct {
	Index int
	Path  string
}

// Rasterizer renders every page of a PDF into outDir.
type Rasterizer interface {
	RasterizePdf(ctx context.Context, pdfPath, outDir string) ([]PageImage, error)
}

// Recognizer extracts raw text from a single page image.
// Implementations must be safe for concurrent use.
type Recognizer interface {
	RecognizeImage(ctx context.Context, imagePath string) (string, error)
}

// OCRLanguage is the only language pages are recognized in.
const OCRLanguage = "eng"
