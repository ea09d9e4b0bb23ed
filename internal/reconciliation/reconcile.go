// Package reconciliation joins invoice headers with detail lines and collapses the result into
// the final table.
//
// The join preserves every invoice: an invoice with no detail line appears once, flagged as
// unmatched. Invoice numbers are compared after parsing.NormalizeInvoiceNumber on both sides.
// Missing text is replaced by models.NotAvailable so that grouping treats it as a value.
package reconciliation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"telbill/internal/parsing"
	"telbill/pkg/models"
)

// Reconcile performs the invoice-preserving join. Output follows the invoice order, and detail
// lines of one invoice follow their input order.
func Reconcile(invoices []models.InvoiceRecord, details []models.DetailLine) ([]models.ReconciledRecord, []IntegrityWarning) {
	var warnings []IntegrityWarning

	byNumber := make(map[string][]models.DetailLine)
	var unkeyed []models.DetailLine
	for _, d := range details {
		key := parsing.NormalizeInvoiceNumber(d.InvoiceNumber)
		if key == "" {
			unkeyed = append(unkeyed, d)
			continue
		}
		byNumber[key] = append(byNumber[key], d)
	}
	warnings = append(warnings, unkeyedDetailWarnings(unkeyed)...)

	seen := make(map[string]string)
	records := make([]models.ReconciledRecord, 0, len(invoices))

	for _, inv := range invoices {
		inv = normalizeInvoice(inv)
		key := parsing.NormalizeInvoiceNumber(inv.InvoiceNumber)

		if key == "" {
			warnings = append(warnings, IntegrityWarning{
				Kind:          WarningEmptyKey,
				InvoiceNumber: inv.InvoiceNumber,
				Path:          inv.SourcePath,
				Message:       "invoice number has no significant digits, not joined",
			})
		} else if first, dup := seen[key]; dup {
			warnings = append(warnings, IntegrityWarning{
				Kind:          WarningDuplicateInvoice,
				InvoiceNumber: inv.InvoiceNumber,
				Path:          inv.SourcePath,
				Message:       fmt.Sprintf("also read from %s, detail lines are joined to both", first),
			})
		} else {
			seen[key] = inv.SourcePath
		}

		lines := byNumber[key]
		if key == "" || len(lines) == 0 {
			records = append(records, unmatched(inv))
			warnings = append(warnings, IntegrityWarning{
				Kind:          WarningUnmatchedInvoice,
				InvoiceNumber: inv.InvoiceNumber,
				Path:          inv.SourcePath,
				Message:       "no detail lines",
			})
			continue
		}

		for _, d := range lines {
			records = append(records, models.ReconciledRecord{
				Invoice:           inv,
				Origin:            models.OrNotAvailable(d.Origin),
				Description:       models.OrNotAvailable(d.Description),
				DetailSourceFiles: orNotAvailableList(d.SourceFiles),
				DetailSourcePaths: orNotAvailableList(d.SourcePaths),
				DetailAmount:      decimal.NewNullDecimal(d.Amount),
			})
		}
	}

	var orphans []string
	for key := range byNumber {
		if _, ok := seen[key]; !ok {
			orphans = append(orphans, key)
		}
	}
	sort.Strings(orphans)
	for _, key := range orphans {
		lines := byNumber[key]
		total := decimal.Zero
		for _, d := range lines {
			total = total.Add(d.Amount)
		}
		warnings = append(warnings, IntegrityWarning{
			Kind:          WarningOrphanDetail,
			InvoiceNumber: lines[0].InvoiceNumber,
			Message:       fmt.Sprintf("%d detail lines totalling %s have no invoice", len(lines), total.StringFixed(2)),
		})
	}

	return records, warnings
}

// unkeyedDetailWarnings reports detail lines whose invoice number has no significant digits,
// one warning per raw number.
func unkeyedDetailWarnings(lines []models.DetailLine) []IntegrityWarning {
	type group struct {
		count int
		total decimal.Decimal
		path  string
	}

	var order []string
	groups := make(map[string]*group)
	for _, d := range lines {
		g, ok := groups[d.InvoiceNumber]
		if !ok {
			g = &group{total: decimal.Zero}
			if len(d.SourcePaths) > 0 {
				g.path = d.SourcePaths[0]
			}
			groups[d.InvoiceNumber] = g
			order = append(order, d.InvoiceNumber)
		}
		g.count++
		g.total = g.total.Add(d.Amount)
	}
	sort.Strings(order)

	warnings := make([]IntegrityWarning, 0, len(order))
	for _, number := range order {
		g := groups[number]
		warnings = append(warnings, IntegrityWarning{
			Kind:          WarningEmptyKey,
			InvoiceNumber: number,
			Path:          g.path,
			Message:       fmt.Sprintf("%d detail lines totalling %s have no significant invoice digits, not joined", g.count, g.total.StringFixed(2)),
		})
	}
	return warnings
}

func unmatched(inv models.InvoiceRecord) models.ReconciledRecord {
	return models.ReconciledRecord{
		Invoice:           inv,
		Origin:            models.NotAvailable,
		Description:       models.NotAvailable,
		DetailSourceFiles: []string{models.NotAvailable},
		DetailSourcePaths: []string{models.NotAvailable},
		Unmatched:         true,
	}
}

// normalizeInvoice replaces placeholder text in the optional invoice fields by the sentinel.
func normalizeInvoice(inv models.InvoiceRecord) models.InvoiceRecord {
	inv.Vendor = models.OrNotAvailable(inv.Vendor)
	inv.BillingMonthLabel = models.OrNotAvailable(inv.BillingMonthLabel)
	inv.Barcode = models.OrNotAvailable(inv.Barcode)
	inv.AreaCode = models.OrNotAvailable(inv.AreaCode)
	return inv
}

func orNotAvailableList(values []string) []string {
	if len(values) == 0 {
		return []string{models.NotAvailable}
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = models.OrNotAvailable(v)
	}
	return out
}
