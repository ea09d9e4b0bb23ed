package reconciliation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"telbill/internal/parsing"
	"telbill/pkg/models"
)

const keySeparator = "\x1f"

type group struct {
	record       models.AggregatedRecord
	descriptions map[string]bool
	origins      map[string]bool
	files        map[string]bool
	paths        map[string]bool
	sum          decimal.Decimal
	matched      bool
	key          string
}

type invoiceTotal struct {
	invoice models.InvoiceRecord
	sum     decimal.Decimal
	matched bool
}

// Aggregate collapses reconciled rows sharing the invoice identity (and the description, for
// GroupByDescription) into one row, summing the detail amounts. The result does not depend on
// the input order.
func Aggregate(records []models.ReconciledRecord, by GroupBy) AggregateResult {
	if by == "" {
		by = GroupByDescription
	}

	groups := make(map[string]*group)
	totals := make(map[string]*invoiceTotal)

	for _, r := range records {
		invKey := invoiceKey(r.Invoice)
		key := invKey
		if by == GroupByDescription {
			key += keySeparator + r.Description
		}

		g, ok := groups[key]
		if !ok {
			g = &group{
				record:       models.AggregatedRecord{Invoice: r.Invoice},
				descriptions: make(map[string]bool),
				origins:      make(map[string]bool),
				files:        make(map[string]bool),
				paths:        make(map[string]bool),
				sum:          decimal.Zero,
				key:          key,
			}
			groups[key] = g
		}

		g.record.LineCount++
		g.descriptions[r.Description] = true
		g.origins[r.Origin] = true
		for _, f := range r.DetailSourceFiles {
			g.files[f] = true
		}
		for _, p := range r.DetailSourcePaths {
			g.paths[p] = true
		}

		t, ok := totals[invKey]
		if !ok {
			t = &invoiceTotal{invoice: r.Invoice, sum: decimal.Zero}
			totals[invKey] = t
		}

		if r.DetailAmount.Valid {
			g.sum = g.sum.Add(r.DetailAmount.Decimal)
			g.matched = true
			t.sum = t.sum.Add(r.DetailAmount.Decimal)
			t.matched = true
		}
	}

	result := AggregateResult{Records: make([]models.AggregatedRecord, 0, len(groups))}
	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return lessRecord(ordered[i], ordered[j])
	})

	for _, g := range ordered {
		rec := g.record
		rec.Description = joinDescriptions(g.descriptions)
		rec.Origins = sortedKeys(g.origins)
		rec.DetailSourceFiles = sortedKeys(g.files)
		rec.DetailSourcePaths = sortedKeys(g.paths)
		rec.Unmatched = !g.matched

		if g.matched {
			rec.DetailAmount = decimal.NewNullDecimal(g.sum)
			if by == GroupByInvoice {
				rec.AmountDelta = decimal.NewNullDecimal(g.sum.Sub(rec.Invoice.Amount))
			}
		}

		result.Records = append(result.Records, rec)
		if rec.DetailAmount.Valid && rec.DetailAmount.Decimal.IsZero() {
			result.ZeroAmount = append(result.ZeroAmount, rec)
		}
	}

	result.Warnings = mismatchWarnings(totals)
	return result
}

func mismatchWarnings(totals map[string]*invoiceTotal) []IntegrityWarning {
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var warnings []IntegrityWarning
	for _, k := range keys {
		t := totals[k]
		if !t.matched || t.sum.Equal(t.invoice.Amount) {
			continue
		}
		warnings = append(warnings, IntegrityWarning{
			Kind:          WarningAmountMismatch,
			InvoiceNumber: t.invoice.InvoiceNumber,
			Path:          t.invoice.SourcePath,
			Message: fmt.Sprintf("detail total %s differs from invoice amount %s by %s",
				parsing.FormatMoney(t.sum),
				parsing.FormatMoney(t.invoice.Amount),
				parsing.FormatMoney(t.sum.Sub(t.invoice.Amount))),
		})
	}
	return warnings
}

// invoiceKey identifies an invoice by every header field.
func invoiceKey(inv models.InvoiceRecord) string {
	return strings.Join([]string{
		inv.AccountID,
		inv.InvoiceNumber,
		inv.Amount.String(),
		models.FormatDate(inv.IssueDate),
		models.FormatDate(inv.DueDate),
		inv.BillingMonthLabel,
		models.FormatDate(inv.PeriodStart),
		models.FormatDate(inv.PeriodEnd),
		inv.Barcode,
		inv.AreaCode,
		inv.Vendor,
		strconv.Itoa(inv.LayoutID),
		inv.SourcePath,
	}, keySeparator)
}

func lessRecord(a, b *group) bool {
	ai, bi := a.record.Invoice, b.record.Invoice
	if na, nb := parsing.NormalizeInvoiceNumber(ai.InvoiceNumber), parsing.NormalizeInvoiceNumber(bi.InvoiceNumber); na != nb {
		return na < nb
	}
	if ai.SourcePath != bi.SourcePath {
		return ai.SourcePath < bi.SourcePath
	}
	return a.key < b.key
}

func joinDescriptions(set map[string]bool) string {
	descriptions := sortedKeys(set)
	if len(descriptions) > 1 {
		kept := descriptions[:0]
		for _, d := range descriptions {
			if d != models.NotAvailable {
				kept = append(kept, d)
			}
		}
		descriptions = kept
	}
	return strings.Join(descriptions, models.ListSeparator)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
