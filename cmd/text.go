package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"telbill/internal/invoice"
	"telbill/internal/logger"
	"telbill/internal/ocr"
	"telbill/internal/text"
)

var textCmd = &cobra.Command{
	Use:   "text [document]",
	Short: "Print the normalized text of an invoice and its detected layout",
	Long: `Read one invoice document (PDF text layer or .txt export), normalize it the way
the extractor sees it and print it page by page together with the layout the
classifier picked.

Use it to inspect documents that fail with "unrecognized invoice layout" or a
field extraction error before adding or adjusting a rule table.

With --ocr, PDFs without a text layer are sent to Google Cloud Vision:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string`,
	Example: `  # Print the text of an invoice
  telbill text faturas/oi_0042.pdf

  # JSON output with pages and layout
  telbill text faturas/oi_0042.pdf --json -o oi_0042.json

  # Scanned invoice through Cloud Vision
  telbill text scan.pdf --ocr --timeout 120`,
	Args: cobra.ExactArgs(1),
	RunE: runText,
}

// TextOutput represents the JSON output structure when --json flag is used
type TextOutput struct {
	FileName   string     `json:"file_name"`
	Source     string     `json:"source"`
	Layout     int        `json:"layout"`
	LayoutName string     `json:"layout_name"`
	LayoutErr  string     `json:"layout_error,omitempty"`
	PageCount  int        `json:"page_count"`
	Pages      [][]string `json:"pages"`
}

func init() {
	rootCmd.AddCommand(textCmd)

	textCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	textCmd.Flags().Bool("json", false, "Output as JSON")
	textCmd.Flags().Bool("ocr", false, "Use Cloud Vision for PDFs without a text layer (default: OCR_FALLBACK)")
	textCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runText(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("text")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	useOCR, _ := cmd.Flags().GetBool("ocr")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	path := args[0]

	if !cmd.Flags().Changed("ocr") {
		if cfg, err := loadConfig(log); err == nil {
			useOCR = cfg.OCRFallback
		}
	}

	log.Info().
		Str("file", path).
		Str("output", outputPath).
		Bool("json", jsonOutput).
		Bool("ocr", useOCR).
		Int("timeout", timeoutSecs).
		Msg("Reading document text")

	if err := validateDocumentFile(path, log); err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	normalizer, release, err := newNormalizer(ctx, useOCR, log)
	if err != nil {
		return err
	}
	defer release()

	doc, err := normalizer.Read(ctx, path)
	if err != nil {
		return handleDocumentError(err, log)
	}

	layout, layoutErr := invoice.Classify(doc.Text())
	if layoutErr != nil {
		log.Warn().Err(layoutErr).Str("file", path).Msg("Document matches no known layout")
	}

	return outputText(doc, layout, layoutErr, outputPath, jsonOutput, log)
}

// validateDocumentFile checks if the file exists, is a regular file and has a supported extension
func validateDocumentFile(path string, log zerolog.Logger) error {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", path).Msg("Document not found")
			return fmt.Errorf("document not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", path).Msg("Permission denied accessing document")
			return fmt.Errorf("permission denied accessing document: %s", path)
		}
		return fmt.Errorf("error accessing document: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().Str("file", path).Msg("Path is not a regular file")
		return fmt.Errorf("path is not a regular file: %s", path)
	}

	if !text.IsSupported(path) {
		log.Error().Str("file", path).Msg("Unsupported document extension")
		return fmt.Errorf("unsupported document %s (expected one of %s)", path, strings.Join(text.SupportedExtensions, ", "))
	}

	if fileInfo.Size() == 0 {
		log.Error().Str("file", path).Msg("Document is empty")
		return fmt.Errorf("document is empty: %s", path)
	}

	return nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling processing")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// handleDocumentError provides user-friendly error messages for reading failures
func handleDocumentError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Document processing failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("processing timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("processing was canceled")
	case errors.Is(err, text.ErrUnsupportedFormat):
		return fmt.Errorf("unsupported document format. Only %s files are read", strings.Join(text.SupportedExtensions, ", "))
	case errors.Is(err, text.ErrUnreadable):
		return fmt.Errorf("the PDF could not be parsed. It may be corrupted or encrypted: %w", err)
	case errors.Is(err, invoice.ErrUnrecognizedLayout):
		return fmt.Errorf("the document matches no known Oi layout. Run 'telbill text <file>' to inspect its text: %w", err)
	case errors.Is(err, invoice.ErrFieldExtraction):
		return fmt.Errorf("a required field could not be read. Run 'telbill text <file>' to check the labels: %w", err)
	case errors.Is(err, ocr.ErrPDFTooLarge):
		return fmt.Errorf("PDF file is too large for OCR (maximum 20MB)")
	case errors.Is(err, ocr.ErrTooManyPages):
		return fmt.Errorf("PDF has too many pages for OCR (maximum 5 pages). Try splitting the file")
	case errors.Is(err, ocr.ErrInvalidPDF):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity")
	case errors.Is(err, ocr.ErrEmptyDocument):
		return fmt.Errorf("no readable text found in the document, even with OCR")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Please check GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS.\n\nOriginal error: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Please ensure your Google Cloud service account has the 'Cloud Vision API User' role")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "quota"):
		return fmt.Errorf("Google Cloud Vision API quota exceeded. Check your project quotas in the Google Cloud Console")
	case errors.Is(err, ocr.ErrOCRFailed):
		return fmt.Errorf("OCR processing failed. This may be due to network issues or service unavailability: %w", err)
	default:
		return fmt.Errorf("document processing failed: %w", err)
	}
}

// outputText formats and outputs the normalized document
func outputText(doc *text.Document, layout invoice.Layout, layoutErr error, outputPath string, jsonOutput bool, log zerolog.Logger) error {
	var outputData []byte

	if jsonOutput {
		out := TextOutput{
			FileName:   doc.Path,
			Source:     string(doc.Source),
			Layout:     int(layout),
			LayoutName: layout.String(),
			PageCount:  len(doc.Pages),
			Pages:      doc.Pages,
		}
		if layoutErr != nil {
			out.LayoutErr = layoutErr.Error()
		}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		outputData = append(data, '\n')
	} else {
		var b strings.Builder
		fmt.Fprintf(&b, "=== %s ===\n", doc.Path)
		fmt.Fprintf(&b, "Source: %s\n", doc.Source)
		if layoutErr != nil {
			fmt.Fprintf(&b, "Layout: none (%v)\n", layoutErr)
		} else {
			fmt.Fprintf(&b, "Layout: %d (%s)\n", int(layout), layout)
		}
		for i, page := range doc.Pages {
			fmt.Fprintf(&b, "\n--- page %d ---\n", i+1)
			for _, line := range page {
				b.WriteString(line)
				b.WriteByte('\n')
			}
		}
		outputData = []byte(b.String())
	}

	return writeOutput(outputPath, outputData, log)
}

// writeOutput writes data to outputPath, or stdout when it is empty
func writeOutput(outputPath string, data []byte, log zerolog.Logger) error {
	if outputPath == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			log.Error().Err(err).Msg("Failed to write to stdout")
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(data)).
		Msg("Results written to file")
	return nil
}
