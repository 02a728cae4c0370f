package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medilens/medreport/internal/analysis"
	"github.com/medilens/medreport/internal/config"
	"github.com/medilens/medreport/internal/errors"
	"github.com/medilens/medreport/internal/middleware"
	"github.com/medilens/medreport/internal/processor"
	"github.com/medilens/medreport/internal/status"
)

const (
	uploadField     = "file"
	noFileMessage   = "No file uploaded. Please upload a PDF file."
	internalFailure = "Failed to analyze medical report"
	sniffLength     = 512
	bannerMessage   = "Medical Report OCR API is running"
	notFoundRequest = "Request not found"
)

func fileTooLargeMessage(limit int64) string {
	return fmt.Sprintf("File size exceeds %s limit", config.SizeLabel(limit))
}

func (s *Server) handleBanner(c echo.Context) error {
	body := map[string]interface{}{
		"status":  "OK",
		"message": bannerMessage,
		"version": Version,
		"endpoints": map[string]string{
			"analyze": "POST /api/analyze - Upload and analyze medical report PDF",
			"status":  "GET /api/analyze/:requestId/status - Pipeline state of a request",
			"health":  "GET /health",
		},
	}
	if s.tracker != nil {
		if stats, err := s.tracker.Stats(c.Request().Context()); err == nil {
			body["requests"] = stats
		} else {
			s.logger.Warn("Failed to read request stats", "error", err)
		}
	}
	return c.JSON(http.StatusOK, body)
}

func (s *Server) handleAnalyze(c echo.Context) error {
	rid := middleware.GetRequestID(c)

	fh, err := c.FormFile(uploadField)
	if err != nil {
		if middleware.BodyLimitExceeded(c) {
			return badRequest(c, fileTooLargeMessage(s.cfg.MaxFileSize))
		}
		return badRequest(c, noFileMessage)
	}

	file, err := fh.Open()
	if err != nil {
		return badRequest(c, noFileMessage)
	}
	defer file.Close()

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return badRequest(c, noFileMessage)
	}
	mimeType, err := processor.ValidateUpload(fh.Header.Get(echo.HeaderContentType), fh.Size, s.cfg.MaxFileSize, head[:n])
	if err != nil {
		s.logger.Info("Rejected upload", "requestId", rid, "filename", fh.Filename, "mimeType", mimeType, "size", fh.Size)
		return s.failure(c, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return s.failure(c, err)
	}

	// the pipeline owns its deadline; a client disconnect must not leave
	// temporary files behind, so cleanup runs regardless
	ctx := context.WithoutCancel(c.Request().Context())
	result, err := s.processor.ProcessDocument(ctx, &processor.ProcessRequest{
		RequestID: rid,
		Filename:  fh.Filename,
		MimeType:  mimeType,
		FileSize:  fh.Size,
		File:      file,
	})
	if err != nil {
		return s.failure(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleStatus(c echo.Context) error {
	if s.tracker == nil {
		return c.JSON(http.StatusNotFound, map[string]interface{}{"success": false, "error": notFoundRequest})
	}

	entry, err := s.tracker.Lookup(c.Request().Context(), c.Param("requestId"))
	if stderrors.Is(err, status.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]interface{}{"success": false, "error": notFoundRequest})
	}
	if err != nil {
		s.logger.Error("Failed to look up request status", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to read request status")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":   true,
		"requestId": entry.RequestID,
		"state":     entry.State,
		"detail":    entry.Detail,
		"updatedAt": entry.UpdatedAt,
	})
}

// failure answers 400 for input problems and 500 with the empty result shape otherwise.
func (s *Server) failure(c echo.Context, err error) error {
	code := errors.HTTPStatus(err)
	message := errors.MessageOf(err, internalFailure)
	if code == http.StatusBadRequest {
		return badRequest(c, message)
	}
	return c.JSON(code, analysis.Failure(message))
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
