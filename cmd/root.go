package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"telbill/internal/config"
	"telbill/internal/invoice"
	"telbill/internal/logger"
	"telbill/internal/ocr"
	"telbill/internal/parsing"
	"telbill/internal/text"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "telbill",
	Short: "telbill - Oi invoice reader and detail reconciliation",
	Long: `telbill reads the Oi telecom invoices (PDF or text exports), extracts the header
data of each invoice, loads the itemized detail exports and joins both into one
table per invoice and charge description.

The table can be written to CSV, XLSX or appended to a Google Sheet.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("telbill executed")

		fmt.Println("Welcome to telbill!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}

// newNormalizer builds the document reader, with the Cloud Vision fallback when useOCR is set.
// The returned function releases the OCR client.
func newNormalizer(ctx context.Context, useOCR bool, log zerolog.Logger) (*text.Normalizer, func(), error) {
	if !useOCR {
		return text.NewNormalizer(nil), func() {}, nil
	}

	ocrService, err := createOCRService(ctx, log)
	if err != nil {
		return nil, nil, err
	}

	release := func() {
		if err := ocrService.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close OCR client")
		}
	}
	return text.NewNormalizer(ocrService), release, nil
}

// newExtractor builds the invoice extractor for the pt-BR documents.
func newExtractor(ctx context.Context, useOCR bool, log zerolog.Logger) (*invoice.Extractor, func(), error) {
	normalizer, release, err := newNormalizer(ctx, useOCR, log)
	if err != nil {
		return nil, nil, err
	}
	return invoice.NewExtractor(normalizer, parsing.PtBR), release, nil
}

// loadConfig reads the environment configuration; flag values override it in each command.
func loadConfig(log zerolog.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return nil, err
	}
	return cfg, nil
}

// createOCRService creates and configures the OCR service
func createOCRService(ctx context.Context, log zerolog.Logger) (ocr.OCRService, error) {
	hasCredentials := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" || os.Getenv("GOOGLE_CREDENTIALS") != ""

	if !hasCredentials {
		log.Error().Msg("Google Cloud credentials not configured")
		return nil, fmt.Errorf("OCR fallback needs Google Cloud credentials. Please set one of:\n\n" +
			"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n" +
			"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n" +
			"2. Export GOOGLE_CREDENTIALS with inline JSON:\n" +
			"   export GOOGLE_CREDENTIALS='{\"type\":\"service_account\",\"project_id\":\"your-project\",...}'\n\n" +
			"3. Check that your .env file contains the credentials variables\n\n" +
			"Or run without --ocr (OCR_FALLBACK=false)")
	}

	ocrService, err := ocr.NewGoogleVisionOCRService(ctx)
	if err != nil {
		log.Error().
			Err(err).
			Msg("Failed to create OCR service")
		return nil, fmt.Errorf("failed to create OCR service: %w", err)
	}

	log.Debug().Msg("OCR service created successfully")
	return ocrService, nil
}
