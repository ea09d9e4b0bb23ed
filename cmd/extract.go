package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"telbill/internal/invoice"
	"telbill/internal/logger"
	"telbill/pkg/models"
)

var extractCmd = &cobra.Command{
	Use:   "extract [folder-or-document]",
	Short: "Extract invoice header data from Oi documents as JSON",
	Long: `Extract account, invoice number, amount, dates, billing period and barcode from
one Oi invoice or from every .pdf/.txt document under a folder.

Documents are classified into one of the known layouts and read with that
layout's rules. Documents that match no layout or miss a required field are
reported as failures; the rest of the folder is still processed.

The output is always JSON.`,
	Example: `  # Extract a single invoice
  telbill extract faturas/oi_0042.pdf

  # Extract a folder with 4 workers into a file
  telbill extract faturas/ --workers 4 -o invoices.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

// ExtractOutput represents the JSON output structure for extraction
type ExtractOutput struct {
	Total     int                    `json:"total"`
	Extracted int                    `json:"extracted"`
	Records   []models.InvoiceRecord `json:"records"`
	Failures  []models.Failure       `json:"failures,omitempty"`
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	extractCmd.Flags().Int("workers", 0, "Parallel workers (default: BATCH_WORKERS)")
	extractCmd.Flags().Bool("ocr", false, "Use Cloud Vision for PDFs without a text layer (default: OCR_FALLBACK)")
	extractCmd.Flags().Int("timeout", 1800, "Processing timeout in seconds")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	outputPath, _ := cmd.Flags().GetString("output")
	workers, _ := cmd.Flags().GetInt("workers")
	useOCR, _ := cmd.Flags().GetBool("ocr")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	target := args[0]

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if workers < 1 {
		workers = cfg.BatchWorkers
	}
	if !cmd.Flags().Changed("ocr") {
		useOCR = cfg.OCRFallback
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("path not found: %s", target)
	}

	log.Info().
		Str("target", target).
		Int("workers", workers).
		Bool("ocr", useOCR).
		Msg("Starting invoice extraction")

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	extractor, release, err := newExtractor(ctx, useOCR, log)
	if err != nil {
		return err
	}
	defer release()

	var out ExtractOutput

	if !info.IsDir() {
		if err := validateDocumentFile(target, log); err != nil {
			return err
		}
		rec, err := extractor.ExtractFile(ctx, target)
		if err != nil {
			return handleDocumentError(err, log)
		}
		out = ExtractOutput{Total: 1, Extracted: 1, Records: []models.InvoiceRecord{*rec}}
	} else {
		paths, err := invoice.FindDocuments(target)
		if err != nil {
			return fmt.Errorf("failed to find documents: %w", err)
		}
		if len(paths) == 0 {
			fmt.Fprintln(os.Stderr, "No invoice documents found in the folder.")
			return nil
		}

		fmt.Fprintf(os.Stderr, "Processing %d documents with %d workers...\n", len(paths), workers)
		batch, err := extractor.ExtractAll(ctx, paths, workers, progressPrinter(os.Stderr))
		if err != nil {
			return handleDocumentError(err, log)
		}

		out = ExtractOutput{
			Total:     len(paths),
			Extracted: len(batch.Records),
			Records:   batch.Records,
			Failures:  batch.Failures,
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON output")
		return fmt.Errorf("failed to create JSON output: %w", err)
	}

	log.Info().
		Int("total", out.Total).
		Int("extracted", out.Extracted).
		Int("failed", len(out.Failures)).
		Msg("Invoice extraction completed")

	return writeOutput(outputPath, append(data, '\n'), log)
}

// progressPrinter prints one line per finished document
func progressPrinter(w io.Writer) invoice.ProgressFunc {
	var mu sync.Mutex
	return func(done, total int, path string, err error) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(w, "[%d/%d] %s - %s", done, total, filepath.Base(path), getStatusEmoji(err))
		if err != nil {
			fmt.Fprintf(w, " (%s)", err.Error())
		}
		fmt.Fprintln(w)
	}
}

// getStatusEmoji returns an emoji for the processing status
func getStatusEmoji(err error) string {
	if err != nil {
		return "❌"
	}
	return "✅"
}
