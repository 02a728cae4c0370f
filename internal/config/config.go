/**
 * Configuration for the medical report analyzer
 *
 * Loads configuration from environment variables (optionally seeded from .env)
 */

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds analyzer configuration
type Config struct {
	// HTTP server
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`

	// Upload limits
	MaxFileSize int64 `mapstructure:"MAX_FILE_SIZE"`

	// Temporary directory for per-request work directories
	TempDir string `mapstructure:"TEMP_DIR"`

	// Rasterizer configuration
	PdftocairoPath string `mapstructure:"PDFTOCAIRO_PATH"`
	RasterDPI      int    `mapstructure:"RASTER_DPI"`

	// OCR configuration
	OCREngine      string `mapstructure:"OCR_ENGINE"`
	TesseractPath  string `mapstructure:"TESSERACT_PATH"`
	OCRConcurrency int    `mapstructure:"OCR_CONCURRENCY"`

	// Processing timeout in milliseconds, 0 disables it
	ProcessingTimeout int `mapstructure:"PROCESSING_TIMEOUT"`

	// Status tracking; in-memory when RedisURL is empty
	RedisURL  string `mapstructure:"REDIS_URL"`
	StatusTTL int    `mapstructure:"STATUS_TTL"`
}

const (
	OCREngineGosseract = "gosseract"
	OCREngineCLI       = "cli"
)

var keys = []string{
	"PORT", "ENV", "FRONTEND_URL", "MAX_FILE_SIZE", "TEMP_DIR",
	"PDFTOCAIRO_PATH", "RASTER_DPI", "OCR_ENGINE", "TESSERACT_PATH",
	"OCR_CONCURRENCY", "PROCESSING_TIMEOUT", "REDIS_URL", "STATUS_TTL",
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("FRONTEND_URL", "http://localhost:3001")
	v.SetDefault("MAX_FILE_SIZE", 10*1024*1024) // 10MB
	v.SetDefault("TEMP_DIR", "/tmp/medreport")
	v.SetDefault("PDFTOCAIRO_PATH", "pdftocairo")
	v.SetDefault("RASTER_DPI", 300)
	v.SetDefault("OCR_ENGINE", OCREngineGosseract)
	v.SetDefault("TESSERACT_PATH", "tesseract")
	v.SetDefault("OCR_CONCURRENCY", 4)
	v.SetDefault("PROCESSING_TIMEOUT", 300000) // 5 minutes
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("STATUS_TTL", 600)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 100*1024*1024 { // 1KB to 100MB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 100MB, got %d", c.MaxFileSize)
	}

	if c.TempDir == "" {
		return fmt.Errorf("TEMP_DIR is required")
	}

	if c.RasterDPI < 72 || c.RasterDPI > 1200 {
		return fmt.Errorf("RASTER_DPI must be between 72 and 1200, got %d", c.RasterDPI)
	}

	if c.OCREngine != OCREngineGosseract && c.OCREngine != OCREngineCLI {
		return fmt.Errorf("OCR_ENGINE must be %q or %q, got %q", OCREngineGosseract, OCREngineCLI, c.OCREngine)
	}

	if c.OCRConcurrency < 1 || c.OCRConcurrency > 64 {
		return fmt.Errorf("OCR_CONCURRENCY must be between 1 and 64, got %d", c.OCRConcurrency)
	}

	if c.ProcessingTimeout < 0 {
		return fmt.Errorf("PROCESSING_TIMEOUT must not be negative, got %d", c.ProcessingTimeout)
	}

	if c.StatusTTL < 1 {
		return fmt.Errorf("STATUS_TTL must be positive, got %d", c.StatusTTL)
	}

	return nil
}

// IsDev reports whether the analyzer runs in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Timeout returns the processing timeout, zero meaning none.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.ProcessingTimeout) * time.Millisecond
}

// StatusExpiry returns how long pipeline states stay queryable.
func (c *Config) StatusExpiry() time.Duration {
	return time.Duration(c.StatusTTL) * time.Second
}

// MaxFileSizeLabel renders the upload limit for error messages, e.g. "10MB".
func (c *Config) MaxFileSizeLabel() string {
	return SizeLabel(c.MaxFileSize)
}

// SizeLabel renders a byte count in whole MB when it divides evenly.
func SizeLabel(n int64) string {
	const mb = 1024 * 1024
	if n >= mb && n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	if n >= 1024 && n%1024 == 0 {
		return fmt.Sprintf("%dKB", n/1024)
	}
	return fmt.Sprintf("%d bytes", n)
}
