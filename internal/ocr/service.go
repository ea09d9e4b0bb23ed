// Package ocr recovers text from scanned invoices using Google Cloud Vision.
//
// It is only used as a fallback by the text normalizer when a PDF carries no text layer.
//
// Required Environment Variables:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//
// Cloud Vision API Limitations:
//   - Maximum file size: 20MB for synchronous processing
//   - Maximum pages: 5 pages for synchronous processing
package ocr

import (
	"context"
	"io"
	"strings"
	"time"
)

// OCRService extracts page text from scanned PDF documents.
type OCRService interface {
	// ProcessPDF returns the recognized text of every page, in page order.
	ProcessPDF(ctx context.Context, pdfData io.Reader) (*OCRResult, error)

	// Close releases the underlying client.
	Close() error
}

// OCRResult contains the recognized pages and processing metadata.
type OCRResult struct {
	// Pages holds the recognized text of each page in reading order.
	Pages []string `json:"pages"`

	// Confidence is the average confidence score across all detected text (0.0 to 1.0).
	Confidence float32 `json:"confidence"`

	// LanguageCodes contains the detected languages in the document.
	LanguageCodes []string `json:"language_codes,omitempty"`

	ProcessedAt        time.Time     `json:"processed_at"`
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// Text joins the pages with form feeds, the same page separator used by text exports.
func (r *OCRResult) Text() string {
	return strings.Join(r.Pages, "\f")
}
