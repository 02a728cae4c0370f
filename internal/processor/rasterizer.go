/**
 * PDF Rasterizer
 *
 * Renders every page of a PDF to PNG with poppler's pdftocairo.
 * pdfcpu cross-checks the page count when it can read the document.
 */

package processor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/medilens/medreport/internal/errors"
	"github.com/medilens/medreport/internal/logging"
)

const pagePrefix = "page"

var pageFile = regexp.MustCompile(`^` + pagePrefix + `-(\d+)\.png$`)

// PdftocairoRasterizer runs pdftocairo as a subprocess.
type PdftocairoRasterizer struct {
	binary string
	dpi    int
	logger *logging.Logger

	// pageCount reports the document's page count; replaced in tests
	pageCount func(pdfPath string) (int, error)
}

// RasterizerConfig holds rasterizer configuration
type RasterizerConfig struct {
	PdftocairoPath string
	DPI            int
	Logger         *logging.Logger
}

// NewPdftocairoRasterizer creates a rasterizer.
func NewPdftocairoRasterizer(cfg *RasterizerConfig) *PdftocairoRasterizer {
	binary := cfg.PdftocairoPath
	if binary == "" {
		binary = "pdftocairo"
	}
	dpi := cfg.DPI
	if dpi <= 0 {
		dpi = 300
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &PdftocairoRasterizer{
		binary:    binary,
		dpi:       dpi,
		logger:    logger,
		pageCount: api.PageCountFile,
	}
}

// RasterizePdf renders pdfPath into outDir as page-N.png and returns the pages
// ordered by N. The source document is left in place.
func (r *PdftocairoRasterizer) RasterizePdf(ctx context.Context, pdfPath, outDir string) ([]PageImage, error) {
	requestID := requestIDFrom(ctx)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.NewConversionError(requestID, "could not create page directory", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary,
		"-png",
		"-r", strconv.Itoa(r.dpi),
		pdfPath,
		filepath.Join(outDir, pagePrefix),
	)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "pdftocairo exited with an error"
		}
		return nil, errors.NewConversionError(requestID, msg, err)
	}

	pages, err := collectPages(outDir)
	if err != nil {
		return nil, errors.NewConversionError(requestID, err.Error(), nil)
	}

	if n, err := r.pageCount(pdfPath); err != nil {
		r.logger.Warn("Could not read page count, trusting rendered pages",
			"requestId", requestID, "error", err, "pages", len(pages))
	} else if n != len(pages) {
		return nil, errors.NewConversionError(requestID,
			fmt.Sprintf("document has %d pages but %d were rendered", n, len(pages)), nil)
	}

	r.logger.Debug("Rasterized document", "requestId", requestID, "pages", len(pages), "dpi", r.dpi)
	return pages, nil
}

// collectPages lists page-N.png files in dir, ordered numerically, and
// requires N to run 1..count without gaps. pdftocairo zero-pads N to the
// width of the page count, so names are parsed rather than sorted as text.
func collectPages(dir string) ([]PageImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("could not read page directory: %w", err)
	}

	var pages []PageImage
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := pageFile.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		pages = append(pages, PageImage{Index: n, Path: filepath.Join(dir, e.Name())})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no page images were produced")
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	for i, p := range pages {
		if p.Index != i+1 {
			return nil, fmt.Errorf("page images are not contiguous: expected page %d, found %d", i+1, p.Index)
		}
	}
	return pages, nil
}
