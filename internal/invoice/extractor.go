package invoice

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telbill/internal/logger"
	"telbill/internal/parsing"
	"telbill/internal/text"
	"telbill/pkg/models"
)

var (
	barcodePattern = regexp.MustCompile(`(?:\d{5,}[\s.-]?\d\s+){4}`)
	periodPattern  = regexp.MustCompile(`(\d{2}/\d{2}/\d+) [aA] (\d{2}/\d{2}/\d+)`)
	numericDate    = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}`)
)

// invalidAccountValue is what the telephone-contract rules pick up when the label row is
// followed by the column header instead of a number.
const invalidAccountValue = "CONTA"

// DocumentReader loads a file as normalized text.
type DocumentReader interface {
	Read(ctx context.Context, path string) (*text.Document, error)
}

// Extractor turns invoice documents into InvoiceRecords.
type Extractor struct {
	reader DocumentReader
	locale parsing.Locale
	log    zerolog.Logger
}

// NewExtractor creates an Extractor reading documents through reader and interpreting month
// names with loc.
func NewExtractor(reader DocumentReader, loc parsing.Locale) *Extractor {
	return &Extractor{
		reader: reader,
		locale: loc,
		log:    logger.WithComponent("invoice"),
	}
}

// ExtractFile reads and extracts a single document.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*models.InvoiceRecord, error) {
	const op = "ExtractFile"

	doc, err := e.reader.Read(ctx, path)
	if err != nil {
		return nil, WrapDocumentError(op, path, err)
	}

	return e.Extract(doc)
}

// Extract classifies the document and applies its layout's rule table.
func (e *Extractor) Extract(doc *text.Document) (*models.InvoiceRecord, error) {
	log := logger.WithFile(e.log, doc.Path)
	full := doc.Text()

	layout, err := Classify(full)
	if err != nil {
		var layoutErr *UnrecognizedLayoutError
		if errors.As(err, &layoutErr) {
			layoutErr.Path = doc.Path
		}
		return nil, err
	}

	lines := doc.Lines()
	raw := ApplyRules(Rules(layout), lines)

	fail := func(field Field, value, reason string) error {
		return &FieldExtractionError{Path: doc.Path, Layout: layout, Field: field, Value: value, Reason: reason}
	}

	rec := &models.InvoiceRecord{
		Vendor:     models.Vendor,
		LayoutID:   int(layout),
		SourcePath: doc.Path,
		AreaCode:   raw[FieldAreaCode],
	}

	rec.AccountID = raw[FieldAccount]
	if rec.AccountID == "" || rec.AccountID == invalidAccountValue {
		return nil, fail(FieldAccount, rec.AccountID, "account not found")
	}

	rec.InvoiceNumber = raw[FieldInvoiceNumber]
	if rec.InvoiceNumber == "" || rec.InvoiceNumber == invalidAccountValue {
		return nil, fail(FieldInvoiceNumber, rec.InvoiceNumber, "invoice number not found")
	}

	amountText, ok := raw[FieldAmount]
	if !ok {
		return nil, fail(FieldAmount, "", "amount not found")
	}
	if m, found := parsing.FindMoney(amountText); found {
		amountText = m
	}
	amount, err := parsing.ParseMoney(amountText)
	if err != nil {
		return nil, fail(FieldAmount, raw[FieldAmount], err.Error())
	}
	rec.Amount = amount

	rec.IssueDate = e.optionalDate(log, FieldIssueDate, raw[FieldIssueDate])
	rec.DueDate = e.optionalDate(log, FieldDueDate, raw[FieldDueDate])

	switch {
	case rec.IssueDate != nil:
		rec.BillingMonthLabel = parsing.FormatMonthLabel(*rec.IssueDate, e.locale)
	case raw[FieldReferenceMonth] != "":
		if ref := e.optionalDate(log, FieldReferenceMonth, raw[FieldReferenceMonth]); ref != nil {
			rec.BillingMonthLabel = parsing.FormatMonthLabel(*ref, e.locale)
		}
	}

	rec.Barcode = FindBarcode(full)
	rec.PeriodStart, rec.PeriodEnd = e.findPeriod(full)

	log.Debug().
		Str("layout", layout.String()).
		Str("account", rec.AccountID).
		Str("invoice_number", rec.InvoiceNumber).
		Str("amount", rec.Amount.StringFixed(2)).
		Msg("Invoice extracted")

	return rec, nil
}

// optionalDate parses a date that may be missing. Unparseable values are logged and dropped.
func (e *Extractor) optionalDate(log zerolog.Logger, field Field, value string) *time.Time {
	if value == "" {
		return nil
	}

	t, err := parsing.ParseDate(value, e.locale)
	if err != nil {
		// the rule may have captured extra text around a numeric date
		if m := numericDate.FindString(value); m != "" {
			t, err = parsing.ParseDate(m, e.locale)
		}
	}
	if err != nil {
		log.Warn().Err(err).Str("field", string(field)).Str("value", value).Msg("Ignoring unparseable date")
		return nil
	}
	return &t
}

// findPeriod returns the first "DD/MM/YYYY a DD/MM/YYYY" range whose dates both parse.
func (e *Extractor) findPeriod(full string) (*time.Time, *time.Time) {
	for _, m := range periodPattern.FindAllStringSubmatch(full, -1) {
		start, err := parsing.ParseDate(m[1], e.locale)
		if err != nil {
			continue
		}
		end, err := parsing.ParseDate(m[2], e.locale)
		if err != nil {
			continue
		}
		return &start, &end
	}
	return nil, nil
}

// FindBarcode returns the first barcode-like digit sequence, limited to its first line.
func FindBarcode(full string) string {
	m := barcodePattern.FindString(full)
	if m == "" {
		return ""
	}
	first, _, _ := strings.Cut(m, "\n")
	return strings.Join(strings.Fields(first), " ")
}
