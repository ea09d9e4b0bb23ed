package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NotAvailable is the single sentinel used for missing text values after reconciliation.
const NotAvailable = "N/A"

// Vendor is the telecom carrier whose documents this module reads.
const Vendor = "Oi"

// InvoiceRecord is the header data extracted from one invoice document.
type InvoiceRecord struct {
	// Identifiers
	AccountID     string `json:"account_id"`     // Vendor-assigned account or contract number
	InvoiceNumber string `json:"invoice_number"` // Invoice number as printed on the document
	Vendor        string `json:"vendor"`

	// Amount due as printed on the document
	Amount decimal.Decimal `json:"amount"`

	// Dates
	IssueDate   *time.Time `json:"issue_date,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	PeriodStart *time.Time `json:"billing_period_start,omitempty"`
	PeriodEnd   *time.Time `json:"billing_period_end,omitempty"`

	// BillingMonthLabel is the issue month rendered with localized abbreviations, e.g. "mai-2024".
	BillingMonthLabel string `json:"billing_month_label,omitempty"`

	// Optional metadata
	Barcode  string `json:"barcode,omitempty"`
	AreaCode string `json:"area_code,omitempty"` // DDD, only printed on some layouts

	LayoutID   int    `json:"layout_id"`
	SourcePath string `json:"source_path"`
}

// DetailLine is one itemized charge after loading and pre-aggregation.
type DetailLine struct {
	InvoiceNumber string          `json:"invoice_number"`
	Origin        string          `json:"origin"` // originating phone line
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`

	// Files that contributed to the line, sorted. Usually one; more when several exports
	// itemize the same charge.
	SourceFiles []string `json:"source_files"`
	SourcePaths []string `json:"source_paths"`
}

// Key returns the grouping key used to collapse duplicate detail rows.
func (d DetailLine) Key() [3]string {
	return [3]string{d.InvoiceNumber, d.Origin, d.Description}
}

// ReconciledRecord is one invoice header joined with at most one detail line.
// Invoices without detail lines appear once with Unmatched set.
type ReconciledRecord struct {
	Invoice InvoiceRecord

	Origin            string
	Description       string
	DetailSourceFiles []string
	DetailSourcePaths []string
	DetailAmount      decimal.NullDecimal

	Unmatched bool
}

// AggregatedRecord is one row of the final table.
type AggregatedRecord struct {
	Invoice InvoiceRecord

	Description       string
	Origins           []string
	DetailSourceFiles []string
	DetailSourcePaths []string
	DetailAmount      decimal.NullDecimal

	// AmountDelta is DetailAmount minus the invoice amount. It is only set on per-invoice rows
	// that have detail lines.
	AmountDelta decimal.NullDecimal

	LineCount int
	Unmatched bool
}

// Failure records a per-item problem that did not abort the run.
type Failure struct {
	Path   string `json:"path"`
	Stage  string `json:"stage"` // "extract" or "details"
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// IsPlaceholder reports whether a raw value is one of the null spellings found in vendor exports.
func IsPlaceholder(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "none", "null", strings.ToLower(NotAvailable):
		return true
	}
	return false
}

// OrNotAvailable returns s, or the sentinel when s is a placeholder.
func OrNotAvailable(s string) string {
	if IsPlaceholder(s) {
		return NotAvailable
	}
	return strings.TrimSpace(s)
}
