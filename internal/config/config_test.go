package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"INVOICES_DIR", "DETAILS_DIR", "BATCH_WORKERS", "GROUP_BY", "OCR_FALLBACK",
		"OUTPUT_PATH", "GOOGLE_SHEET_URL", "GOOGLE_SHEET_WORKSHEET",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_TIME_FORMAT", "LOG_OUTPUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.BatchWorkers)
	assert.Equal(t, "description", cfg.GroupBy)
	assert.False(t, cfg.OCRFallback)
	assert.Equal(t, "Faturas", cfg.GoogleSheetWorksheet)
	assert.Equal(t, "info", cfg.GetLoggerConfig().Level)
	assert.Equal(t, "stderr", cfg.GetLoggerConfig().Output)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("INVOICES_DIR", "/data/pdf")
	t.Setenv("DETAILS_DIR", "/data/det")
	t.Setenv("BATCH_WORKERS", "8")
	t.Setenv("GROUP_BY", "Invoice")
	t.Setenv("OCR_FALLBACK", "true")
	t.Setenv("OUTPUT_PATH", "out/final.XLSX")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/pdf", cfg.InvoicesDir)
	assert.Equal(t, "/data/det", cfg.DetailsDir)
	assert.Equal(t, 8, cfg.BatchWorkers)
	assert.Equal(t, "invoice", cfg.GroupBy)
	assert.True(t, cfg.OCRFallback)
	assert.Equal(t, "json", cfg.GetLoggerConfig().Format)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non numeric workers", "BATCH_WORKERS", "many"},
		{"zero workers", "BATCH_WORKERS", "0"},
		{"unknown grouping", "GROUP_BY", "origin"},
		{"bad bool", "OCR_FALLBACK", "maybe"},
		{"unsupported output", "OUTPUT_PATH", "final.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
