package reconciliation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"telbill/pkg/models"
)

// ErrNoInvoices indicates an invoice directory without readable documents
var ErrNoInvoices = errors.New("no invoice documents")

// GroupBy selects the granularity of the final table.
type GroupBy string

const (
	// GroupByDescription yields one row per invoice and detail description.
	GroupByDescription GroupBy = "description"

	// GroupByInvoice yields one row per invoice with descriptions collected.
	GroupByInvoice GroupBy = "invoice"
)

// ParseGroupBy reads a GroupBy from configuration or flags. Empty means GroupByDescription.
func ParseGroupBy(s string) (GroupBy, error) {
	switch GroupBy(strings.ToLower(strings.TrimSpace(s))) {
	case "", GroupByDescription:
		return GroupByDescription, nil
	case GroupByInvoice:
		return GroupByInvoice, nil
	}
	return "", fmt.Errorf("ParseGroupBy: unknown grouping %q (use %q or %q)", s, GroupByDescription, GroupByInvoice)
}

// WarningKind classifies an IntegrityWarning.
type WarningKind string

const (
	WarningUnmatchedInvoice WarningKind = "unmatched_invoice" // invoice without detail lines
	WarningOrphanDetail     WarningKind = "orphan_detail"     // detail lines without an invoice
	WarningDuplicateInvoice WarningKind = "duplicate_invoice" // same invoice number in several documents
	WarningEmptyKey         WarningKind = "empty_key"         // invoice number made only of zeros
	WarningAmountMismatch   WarningKind = "amount_mismatch"   // detail total differs from the invoice amount
)

// IntegrityWarning is a data-quality finding. Warnings are reported, never returned as errors.
type IntegrityWarning struct {
	Kind          WarningKind `json:"kind"`
	InvoiceNumber string      `json:"invoice_number"`
	Path          string      `json:"path,omitempty"`
	Message       string      `json:"message"`
}

func (w IntegrityWarning) String() string {
	if w.Path != "" {
		return fmt.Sprintf("%s: fatura %s (%s): %s", w.Kind, w.InvoiceNumber, w.Path, w.Message)
	}
	return fmt.Sprintf("%s: fatura %s: %s", w.Kind, w.InvoiceNumber, w.Message)
}

// AggregateResult is the output of Aggregate. ZeroAmount repeats the records of Records whose
// summed detail amount is exactly zero.
type AggregateResult struct {
	Records    []models.AggregatedRecord
	ZeroAmount []models.AggregatedRecord
	Warnings   []IntegrityWarning
}

// Report is the outcome of one pipeline run.
type Report struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`

	Invoices   []models.InvoiceRecord    `json:"invoices"`
	Details    []models.DetailLine       `json:"-"`
	Records    []models.ReconciledRecord `json:"-"`
	Aggregated []models.AggregatedRecord `json:"-"`
	ZeroAmount []models.AggregatedRecord `json:"-"`

	Warnings []IntegrityWarning `json:"warnings"`
	Failures []models.Failure   `json:"failures"`

	TotalDocuments int           `json:"total_documents"`
	MatchedCount   int           `json:"matched_count"`
	DetailFiles    int           `json:"detail_files"`
	SkippedRows    int           `json:"skipped_detail_rows"` // also listed in Failures
	ProcessingTime time.Duration `json:"processing_time"`
}

// UnmatchedCount returns the number of final rows without detail lines.
func (r *Report) UnmatchedCount() int {
	n := 0
	for _, a := range r.Aggregated {
		if a.Unmatched {
			n++
		}
	}
	return n
}
