// Package invoice reads the vendor's invoice documents into InvoiceRecords.
//
// A document is first classified into one of the known layouts by looking for signature
// markers in its normalized text (see ClassificationOrder). The layout's rule table then
// picks each field from the lines around a trigger label. Barcode and billing period are
// searched across the whole text regardless of layout.
//
// Layouts are fixed. A document that matches no signature fails with
// *UnrecognizedLayoutError and needs a new rule table; nothing is guessed at runtime.
//
// Required fields are the account, the invoice number and the amount. Missing any of them
// fails the document with *FieldExtractionError. Dates are optional: values that cannot be
// parsed are logged and left empty.
package invoice

import (
	"context"

	"telbill/pkg/models"
)

// Service is the batch extraction surface used by the reconciliation pipeline.
type Service interface {
	// ExtractAll extracts every path, collecting per-document failures instead of aborting.
	ExtractAll(ctx context.Context, paths []string, workers int, progress ProgressFunc) (*BatchResult, error)

	// ExtractFile extracts a single document.
	ExtractFile(ctx context.Context, path string) (*models.InvoiceRecord, error)
}

var _ Service = (*Extractor)(nil)
