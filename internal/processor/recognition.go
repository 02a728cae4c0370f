package processor

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/medilens/medreport/internal/analysis"
	"github.com/medilens/medreport/internal/errors"
	"github.com/medilens/medreport/internal/logging"
)

// RecognizePages runs recognizer over every page with at most concurrency
// calls in flight. It waits for every started call before returning. Once a
// page has failed, pages that have not started yet are skipped; calls already
// running are left to finish. The first failure is returned as a
// RecognitionError naming its page.
func RecognizePages(ctx context.Context, recognizer Recognizer, pages []PageImage, concurrency int, logger *logging.Logger) ([]analysis.PageText, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = logging.Nop()
	}
	requestID := requestIDFrom(ctx)

	results := make([]analysis.PageText, len(pages))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)

	for i, page := range pages {
		i, page := i, page
		eg.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			// in-flight calls keep the caller's context so a sibling
			// failure does not interrupt them
			text, err := recognizer.RecognizeImage(ctx, page.Path)
			if err != nil {
				return errors.NewRecognitionError(requestID, page.Index, err)
			}
			if q := textQuality(text); q < 0.5 {
				logger.Warn("Low quality OCR output", "requestId", requestID, "page", page.Index, "quality", q)
			}
			results[i] = analysis.PageText{Page: page.Index, Text: text}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Page < results[j].Page })
	return results, nil
}
