package models

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TableColumns is the header of the final table. Order and spelling are relied on by the
// spreadsheet consumers.
var TableColumns = []string{
	"CONTA",
	"FATURA",
	"VALOR_DET",
	"VALOR_PDF",
	"EMISSAO",
	"VENCIMENTO",
	"MESREF",
	"ORIGEM",
	"DESCRICAO",
	"INICIO_PERIODO",
	"FIM_PERIODO",
	"BOLETO",
	"ARQUIVO",
	"FULL_PATH_FILE_PDF",
	"FILE_DET",
	"FULL_PATH_FILE_DET",
	"TIPO_LEITURA",
	"SEM_DETALHAMENTO",
}

// ListSeparator joins multi-valued cells.
const ListSeparator = "|"

// Row renders the record as text cells in TableColumns order.
func (a AggregatedRecord) Row() []string {
	cells := a.Cells()
	row := make([]string, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case string:
			row[i] = v
		case float64:
			row[i] = strconv.FormatFloat(v, 'f', 2, 64)
		case bool:
			row[i] = strconv.FormatBool(v)
		}
	}
	// amounts keep exact decimal text rather than the float rendering
	row[2] = FormatNullAmount(a.DetailAmount)
	row[3] = a.Invoice.Amount.StringFixed(2)
	return row
}

// Cells renders the record as typed cells in TableColumns order: amounts are float64 when
// present, the unmatched flag is a bool and everything else is text.
func (a AggregatedRecord) Cells() []interface{} {
	inv := a.Invoice

	var detailAmount interface{} = NotAvailable
	if a.DetailAmount.Valid {
		detailAmount = a.DetailAmount.Decimal.Round(2).InexactFloat64()
	}

	return []interface{}{
		OrNotAvailable(inv.AccountID),
		OrNotAvailable(inv.InvoiceNumber),
		detailAmount,
		inv.Amount.Round(2).InexactFloat64(),
		FormatDate(inv.IssueDate),
		FormatDate(inv.DueDate),
		OrNotAvailable(inv.BillingMonthLabel),
		joinList(a.Origins),
		OrNotAvailable(a.Description),
		FormatDate(inv.PeriodStart),
		FormatDate(inv.PeriodEnd),
		OrNotAvailable(inv.Barcode),
		baseName(inv.SourcePath),
		OrNotAvailable(inv.SourcePath),
		joinList(a.DetailSourceFiles),
		joinList(a.DetailSourcePaths),
		strconv.Itoa(inv.LayoutID),
		a.Unmatched,
	}
}

// FormatDate renders an optional date as YYYY-MM-DD or the sentinel.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return NotAvailable
	}
	return t.Format(time.DateOnly)
}

// FormatNullAmount renders an optional amount with two decimal places or the sentinel.
func FormatNullAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return NotAvailable
	}
	return d.Decimal.StringFixed(2)
}

func baseName(path string) string {
	if IsPlaceholder(path) {
		return NotAvailable
	}
	return filepath.Base(path)
}

func joinList(values []string) string {
	var kept []string
	for _, v := range values {
		if !IsPlaceholder(v) {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return NotAvailable
	}
	return strings.Join(kept, ListSeparator)
}
