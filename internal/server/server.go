// Package server exposes the analysis pipeline over HTTP.
package server

import (
	stderrors "errors"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/medilens/medreport/internal/config"
	"github.com/medilens/medreport/internal/logging"
	"github.com/medilens/medreport/internal/middleware"
	"github.com/medilens/medreport/internal/processor"
	"github.com/medilens/medreport/internal/status"
)

const (
	Version = "1.0.0"

	// multipart framing around the file itself
	multipartOverhead = 1 << 20
)

// Server wires the HTTP routes to the document processor.
type Server struct {
	echo      *echo.Echo
	cfg       *config.Config
	processor processor.DocumentProcessorInterface
	tracker   status.Tracker
	logger    *logging.Logger
}

// New builds the echo instance with middleware and routes registered.
func New(cfg *config.Config, proc processor.DocumentProcessorInterface, tracker status.Tracker, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		cfg:       cfg,
		processor: proc,
		tracker:   tracker,
		logger:    logger,
	}

	e.HTTPErrorHandler = s.handleError

	zl := logger.Zerolog()
	e.Use(middleware.Recovery(zl))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(zl))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}))

	e.GET("/", s.handleBanner)
	e.GET("/health", s.handleBanner)

	api := e.Group("/api")
	api.POST("/analyze", s.handleAnalyze,
		middleware.BodyLimit(cfg.MaxFileSize+multipartOverhead, fileTooLargeMessage(cfg.MaxFileSize)))
	api.GET("/analyze/:requestId/status", s.handleStatus)

	return s
}

// Echo exposes the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// ServeHTTP lets the server be used directly with net/http and httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// handleError renders every error as {success:false, error}. Unknown routes
// also list the endpoints that do exist.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if stderrors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		}
	}

	body := map[string]interface{}{
		"success": false,
		"error":   message,
	}
	switch code {
	case http.StatusNotFound:
		body["error"] = "Endpoint not found"
		body["availableEndpoints"] = []string{"/api/analyze"}
	case http.StatusMethodNotAllowed:
		body["error"] = "Method not allowed"
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, body)
	}
	if err != nil {
		s.logger.Error("Failed to write error response", "error", err)
	}
}
