/**
 * Medical report analyzer - Main Entry Point
 *
 * Rasterizes uploaded PDF reports, OCRs every page and turns the text into
 * patient details, classified test results and a plain-language summary.
 *
 * Commands:
 * - serve:   HTTP API (POST /api/analyze)
 * - analyze: one-shot analysis of a local PDF, printed as JSON
 * - watch:   follow pipeline state changes published to Redis
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/medilens/medreport/internal/analysis"
	"github.com/medilens/medreport/internal/config"
	"github.com/medilens/medreport/internal/errors"
	"github.com/medilens/medreport/internal/logging"
	"github.com/medilens/medreport/internal/processor"
	"github.com/medilens/medreport/internal/server"
	"github.com/medilens/medreport/internal/status"
)

const shutdownTimeout = 10 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:           "medreport",
		Short:         "Medical report OCR analyzer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <report.pdf>",
		Short: "Analyze a local PDF report and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), args[0], cmd.OutOrStdout())
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print pipeline state changes as they are published",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.OutOrStdout())
		},
	}
}

// app holds the collaborators shared by every command.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	tracker   status.Tracker
	processor *processor.DocumentProcessor
}

// setup loads configuration and builds the pipeline. Logs go to logOut so
// that commands printing JSON keep stdout clean.
func setup(ctx context.Context, logOut io.Writer) (*app, error) {
	// Load environment variables
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLoggerWithWriter("medreport", logOut)
	if cfg.IsDev() {
		logger = logging.NewConsoleLogger("medreport", logOut)
	}

	tracker, err := newTracker(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	proc, err := newProcessor(cfg, tracker, logger)
	if err != nil {
		tracker.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, tracker: tracker, processor: proc}, nil
}

func newTracker(ctx context.Context, cfg *config.Config, logger *logging.Logger) (status.Tracker, error) {
	if cfg.RedisURL == "" {
		logger.Info("Tracking pipeline state in memory", "ttl", cfg.StatusExpiry())
		return status.NewMemoryTracker(cfg.StatusExpiry()), nil
	}

	tracker, err := status.NewRedisTracker(ctx, &status.RedisTrackerConfig{
		RedisURL: cfg.RedisURL,
		TTL:      cfg.StatusExpiry(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect status tracker: %w", err)
	}
	logger.Info("Tracking pipeline state in Redis", "ttl", cfg.StatusExpiry())
	return tracker, nil
}

func newRecognizer(cfg *config.Config) processor.Recognizer {
	if cfg.OCREngine == config.OCREngineCLI {
		return processor.NewTesseractCLIRecognizer(cfg.TesseractPath)
	}
	return processor.NewGosseractRecognizer(cfg.RasterDPI)
}

func newProcessor(cfg *config.Config, tracker status.Tracker, logger *logging.Logger) (*processor.DocumentProcessor, error) {
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	return processor.NewDocumentProcessor(&processor.ProcessorConfig{
		TempDir:     cfg.TempDir,
		Concurrency: cfg.OCRConcurrency,
		Timeout:     cfg.Timeout(),
		Rasterizer: processor.NewPdftocairoRasterizer(&processor.RasterizerConfig{
			PdftocairoPath: cfg.PdftocairoPath,
			DPI:            cfg.RasterDPI,
			Logger:         logger.Named("rasterizer"),
		}),
		Recognizer: newRecognizer(cfg),
		Tracker:    tracker,
		Logger:     logger.Named("processor"),
	})
}

func runServer() error {
	a, err := setup(context.Background(), os.Stdout)
	if err != nil {
		return err
	}
	defer a.tracker.Close()

	srv := server.New(a.cfg, a.processor, a.tracker, a.logger.Named("http"))
	e := srv.Echo()

	// Graceful shutdown
	go func() {
		addr := ":" + a.cfg.Port
		a.logger.Info("Starting server", "addr", addr, "ocrEngine", a.cfg.OCREngine, "concurrency", a.cfg.OCRConcurrency)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			a.logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	a.logger.Info("Server stopped")
	return nil
}

func runAnalyze(ctx context.Context, path string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := setup(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer a.tracker.Close()

	result, err := a.processor.AnalyzeFile(ctx, path, a.cfg.MaxFileSize)
	if err != nil {
		if encErr := writeJSON(out, analysis.Failure(errors.MessageOf(err, err.Error()))); encErr != nil {
			return encErr
		}
		return err
	}
	return writeJSON(out, result)
}

func runWatch(out io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer a.tracker.Close()

	rt, ok := a.tracker.(*status.RedisTracker)
	if !ok {
		return fmt.Errorf("watch needs REDIS_URL; in-memory state is not shared between processes")
	}

	events, closeSub, err := rt.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer closeSub()

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-events:
			if !ok {
				return nil
			}
			fmt.Fprintln(out, payload)
		}
	}
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
