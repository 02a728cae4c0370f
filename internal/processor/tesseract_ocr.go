/**
 * Tesseract OCR
 *
 * Two recognizers over the same engine: libtesseract through gosseract, and
 * the tesseract command line for hosts without the shared library headers.
 * Both recognize English only.
 */

package processor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// GosseractRecognizer recognizes images with libtesseract.
type GosseractRecognizer struct {
	clientFactory func() *gosseract.Client
	dpi           int
}

// NewGosseractRecognizer creates a recognizer. dpi is passed to tesseract as
// the source resolution when positive.
func NewGosseractRecognizer(dpi int) *GosseractRecognizer {
	return &GosseractRecognizer{clientFactory: gosseract.NewClient, dpi: dpi}
}

// RecognizeImage runs OCR on imagePath with a dedicated client, so calls may run in parallel.
func (g *GosseractRecognizer) RecognizeImage(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := g.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(OCRLanguage); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	if g.dpi > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(g.dpi)); err != nil {
			return "", fmt.Errorf("set dpi: %w", err)
		}
	}
	if err := c.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract OCR failed: %w", err)
	}
	return text, nil
}

// TesseractCLIRecognizer runs `tesseract <image> stdout -l eng`.
type TesseractCLIRecognizer struct {
	binary string
}

// NewTesseractCLIRecognizer creates a recognizer for the given binary path.
func NewTesseractCLIRecognizer(binary string) *TesseractCLIRecognizer {
	if binary == "" {
		binary = "tesseract"
	}
	return &TesseractCLIRecognizer{binary: binary}
}

// RecognizeImage runs the tesseract binary and returns its stdout.
func (t *TesseractCLIRecognizer) RecognizeImage(ctx context.Context, imagePath string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.binary, imagePath, "stdout", "-l", OCRLanguage)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("tesseract failed: %s: %w", msg, err)
		}
		return "", fmt.Errorf("tesseract failed: %w", err)
	}
	return stdout.String(), nil
}

// textQuality estimates how much of the recognized text looks like prose,
// between 0 and 0.85. Scanned noise tends to score below 0.5.
func textQuality(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	quality := 0.5

	if len(text) > 1000 {
		quality += 0.1
	}
	if len(text) > 5000 {
		quality += 0.1
	}
	if len(strings.Fields(text)) > 100 {
		quality += 0.1
	}

	alpha := 0
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			alpha++
		}
	}
	ratio := float64(alpha) / float64(len(text))
	switch {
	case ratio > 0.5 && ratio < 0.9:
		quality += 0.1
	case ratio < 0.2:
		quality -= 0.3
	}

	if quality > 0.85 {
		quality = 0.85
	}
	return quality
}
