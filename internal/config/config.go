package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"telbill/internal/logger"
)

type Config struct {
	// Input folders
	InvoicesDir string
	DetailsDir  string

	// Processing
	BatchWorkers int
	GroupBy      string // "description" or "invoice"
	OCRFallback  bool   // send PDFs without a text layer to Cloud Vision

	// Output
	OutputPath string // .csv or .xlsx, empty for none

	// Google Sheets Configuration
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	workers, err := strconv.Atoi(getEnv("BATCH_WORKERS", "1"))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: BATCH_WORKERS must be an integer: %w", err)
	}

	ocrFallback, err := strconv.ParseBool(getEnv("OCR_FALLBACK", "false"))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: OCR_FALLBACK must be a boolean: %w", err)
	}

	config := &Config{
		InvoicesDir:          getEnv("INVOICES_DIR", ""),
		DetailsDir:           getEnv("DETAILS_DIR", ""),
		BatchWorkers:         workers,
		GroupBy:              strings.ToLower(getEnv("GROUP_BY", "description")),
		OCRFallback:          ocrFallback,
		OutputPath:           getEnv("OUTPUT_PATH", ""),
		GoogleSheetURL:       getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet: getEnv("GOOGLE_SHEET_WORKSHEET", "Faturas"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:        getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:            getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.BatchWorkers < 1 {
		return fmt.Errorf("BATCH_WORKERS must be at least 1, got %d", c.BatchWorkers)
	}
	if c.GroupBy != "description" && c.GroupBy != "invoice" {
		return fmt.Errorf("GROUP_BY must be 'description' or 'invoice', got %q", c.GroupBy)
	}
	if c.OutputPath != "" {
		switch strings.ToLower(filepath.Ext(c.OutputPath)) {
		case ".csv", ".xlsx":
		default:
			return fmt.Errorf("OUTPUT_PATH must end in .csv or .xlsx, got %q", c.OutputPath)
		}
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
