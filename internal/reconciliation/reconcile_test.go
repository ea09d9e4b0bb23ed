package reconciliation

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telbill/pkg/models"
)

func inv(number, amount, path string) models.InvoiceRecord {
	issued := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	return models.InvoiceRecord{
		AccountID:         "1122334455",
		InvoiceNumber:     number,
		Vendor:            models.Vendor,
		Amount:            decimal.RequireFromString(amount),
		IssueDate:         &issued,
		BillingMonthLabel: "mai-2024",
		LayoutID:          3,
		SourcePath:        path,
	}
}

func line(number, origin, description, amount, file string) models.DetailLine {
	return models.DetailLine{
		InvoiceNumber: number,
		Origin:        origin,
		Description:   description,
		Amount:        decimal.RequireFromString(amount),
		SourceFiles:   []string{file},
		SourcePaths:   []string{"details/" + file},
	}
}

func warningsOf(warnings []IntegrityWarning, kind WarningKind) []IntegrityWarning {
	var out []IntegrityWarning
	for _, w := range warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

func TestReconcileCardinality(t *testing.T) {
	invoices := []models.InvoiceRecord{
		inv("00042", "15.00", "a.pdf"),
		inv("7", "1.00", "b.pdf"),
		inv("900", "3.00", "c.pdf"),
	}
	details := []models.DetailLine{
		line("42", "1133334444", "Plano", "10.00", "d1.txt"),
		line("0042", "1133334444", "Extras", "5.00", "d2.csv"),
		line("900", "2133334444", "Plano", "3.00", "d2.csv"),
		line("555", "2133334444", "Plano", "8.00", "d2.csv"),
	}

	records, warnings := Reconcile(invoices, details)

	// one row per matching detail line, and one row for the invoice without details
	require.Len(t, records, 4)

	counts := map[string]int{}
	for _, r := range records {
		counts[r.Invoice.SourcePath]++
	}
	assert.Equal(t, map[string]int{"a.pdf": 2, "b.pdf": 1, "c.pdf": 1}, counts)

	var unmatchedRecord models.ReconciledRecord
	for _, r := range records {
		if r.Unmatched {
			unmatchedRecord = r
		}
	}
	assert.Equal(t, "b.pdf", unmatchedRecord.Invoice.SourcePath)
	assert.False(t, unmatchedRecord.DetailAmount.Valid)
	assert.Equal(t, models.NotAvailable, unmatchedRecord.Origin)
	assert.Equal(t, models.NotAvailable, unmatchedRecord.Description)
	assert.Equal(t, []string{models.NotAvailable}, unmatchedRecord.DetailSourceFiles)

	assert.Len(t, warningsOf(warnings, WarningUnmatchedInvoice), 1)

	orphans := warningsOf(warnings, WarningOrphanDetail)
	require.Len(t, orphans, 1)
	assert.Equal(t, "555", orphans[0].InvoiceNumber)
	assert.Contains(t, orphans[0].Message, "8.00")
}

func TestReconcileNormalizesPlaceholders(t *testing.T) {
	invoice := inv("1", "2.00", "a.pdf")
	invoice.BillingMonthLabel = ""
	invoice.Barcode = "nan"

	records, _ := Reconcile(
		[]models.InvoiceRecord{invoice},
		[]models.DetailLine{
			{InvoiceNumber: "1", Origin: "None", Description: " null ", Amount: decimal.RequireFromString("2")},
		},
	)

	require.Len(t, records, 1)
	r := records[0]
	assert.False(t, r.Unmatched)
	assert.Equal(t, models.NotAvailable, r.Origin)
	assert.Equal(t, models.NotAvailable, r.Description)
	assert.Equal(t, []string{models.NotAvailable}, r.DetailSourceFiles)
	assert.Equal(t, models.NotAvailable, r.Invoice.BillingMonthLabel)
	assert.Equal(t, models.NotAvailable, r.Invoice.Barcode)
	assert.True(t, r.DetailAmount.Valid)
}

func TestReconcileEmptyAndDuplicateKeys(t *testing.T) {
	records, warnings := Reconcile(
		[]models.InvoiceRecord{
			inv("000", "1.00", "zero.pdf"),
			inv("12", "1.00", "a.pdf"),
			inv("012", "1.00", "b.pdf"),
		},
		[]models.DetailLine{
			line("0", "1", "X", "1.00", "d.csv"),
			line("12", "1", "X", "1.00", "d.csv"),
		},
	)

	require.Len(t, records, 3)
	assert.True(t, records[0].Unmatched, "zero-only numbers never join")
	assert.False(t, records[1].Unmatched)
	assert.False(t, records[2].Unmatched)

	emptyKeys := warningsOf(warnings, WarningEmptyKey)
	require.Len(t, emptyKeys, 2)
	paths := []string{emptyKeys[0].Path, emptyKeys[1].Path}
	assert.ElementsMatch(t, []string{"zero.pdf", "details/d.csv"}, paths)
	dups := warningsOf(warnings, WarningDuplicateInvoice)
	require.Len(t, dups, 1)
	assert.Equal(t, "b.pdf", dups[0].Path)
	assert.Empty(t, warningsOf(warnings, WarningOrphanDetail))
}

func TestReconcileReportsUnkeyedDetailLines(t *testing.T) {
	records, warnings := Reconcile(
		[]models.InvoiceRecord{inv("5", "1.00", "a.pdf")},
		[]models.DetailLine{
			line("000", "1", "X", "2.50", "d.csv"),
			line("000", "2", "Y", "1.00", "d.csv"),
			line("", "3", "Z", "4.00", "e.csv"),
		},
	)

	require.Len(t, records, 1)
	assert.True(t, records[0].Unmatched)
	assert.Empty(t, warningsOf(warnings, WarningOrphanDetail))

	emptyKeys := warningsOf(warnings, WarningEmptyKey)
	require.Len(t, emptyKeys, 2)
	assert.Equal(t, "", emptyKeys[0].InvoiceNumber)
	assert.Equal(t, "details/e.csv", emptyKeys[0].Path)
	assert.Equal(t, "000", emptyKeys[1].InvoiceNumber)
	assert.Contains(t, emptyKeys[1].Message, "2 detail lines totalling 3.50")
}

func TestReconcileNoDetails(t *testing.T) {
	records, warnings := Reconcile([]models.InvoiceRecord{inv("1", "1", "a.pdf")}, nil)
	require.Len(t, records, 1)
	assert.True(t, records[0].Unmatched)
	assert.Len(t, warnings, 1)
}

func TestAggregateEndToEndScenario(t *testing.T) {
	records, _ := Reconcile(
		[]models.InvoiceRecord{inv("42", "15.00", "oi.pdf")},
		[]models.DetailLine{
			line("00042", "1133334444", "SERVICOS", "10.00", "DET0042.txt"),
			line("00042", "1133335555", "SERVICOS", "5.50", "Fatura_Excel.csv"),
		},
	)

	result := Aggregate(records, GroupByDescription)
	require.Len(t, result.Records, 1)

	row := result.Records[0]
	assert.False(t, row.Unmatched)
	assert.True(t, decimal.RequireFromString("15.50").Equal(row.DetailAmount.Decimal))
	assert.Equal(t, "SERVICOS", row.Description)
	assert.Equal(t, []string{"1133334444", "1133335555"}, row.Origins)
	assert.Equal(t, []string{"DET0042.txt", "Fatura_Excel.csv"}, row.DetailSourceFiles)
	assert.Equal(t, 2, row.LineCount)
	assert.False(t, row.AmountDelta.Valid)

	mismatches := warningsOf(result.Warnings, WarningAmountMismatch)
	require.Len(t, mismatches, 1)
	assert.Contains(t, mismatches[0].Message, "0,50")
}

func TestAggregateGroupings(t *testing.T) {
	records, _ := Reconcile(
		[]models.InvoiceRecord{inv("1", "30.00", "a.pdf"), inv("2", "9.00", "b.pdf")},
		[]models.DetailLine{
			line("1", "100", "Plano", "10.00", "d.csv"),
			line("1", "101", "Plano", "10.00", "d.csv"),
			line("1", "100", "Extras", "10.00", "d.csv"),
		},
	)

	byDescription := Aggregate(records, GroupByDescription)
	require.Len(t, byDescription.Records, 3)
	assert.Equal(t, "Extras", byDescription.Records[0].Description)
	assert.Equal(t, "Plano", byDescription.Records[1].Description)
	assert.Equal(t, "20", byDescription.Records[1].DetailAmount.Decimal.String())
	assert.True(t, byDescription.Records[2].Unmatched)
	assert.False(t, byDescription.Records[2].DetailAmount.Valid)
	assert.Equal(t, models.NotAvailable, byDescription.Records[2].Description)

	byInvoice := Aggregate(records, GroupByInvoice)
	require.Len(t, byInvoice.Records, 2)
	first := byInvoice.Records[0]
	assert.Equal(t, "Extras|Plano", first.Description)
	assert.Equal(t, "30", first.DetailAmount.Decimal.String())
	require.True(t, first.AmountDelta.Valid)
	assert.True(t, first.AmountDelta.Decimal.IsZero())
	assert.Equal(t, 3, first.LineCount)
	assert.Empty(t, warningsOf(byInvoice.Warnings, WarningAmountMismatch))
}

func TestAggregateReportsZeroAmounts(t *testing.T) {
	records, _ := Reconcile(
		[]models.InvoiceRecord{inv("1", "5.00", "a.pdf")},
		[]models.DetailLine{
			line("1", "100", "Credito", "5.00", "d.csv"),
			line("1", "101", "Credito", "-5.00", "d.csv"),
			line("1", "100", "Plano", "5.00", "d.csv"),
		},
	)

	result := Aggregate(records, GroupByDescription)
	require.Len(t, result.Records, 2, "zero-sum rows stay in the table")
	require.Len(t, result.ZeroAmount, 1)
	assert.Equal(t, "Credito", result.ZeroAmount[0].Description)
	assert.True(t, result.ZeroAmount[0].DetailAmount.Valid)
}

func TestAggregateOrderIndependent(t *testing.T) {
	invoices := []models.InvoiceRecord{
		inv("3", "1.00", "c.pdf"),
		inv("1", "1.00", "a.pdf"),
		inv("2", "1.00", "b.pdf"),
	}
	details := []models.DetailLine{
		line("1", "100", "Plano", "1.00", "x.csv"),
		line("1", "101", "Plano", "2.00", "y.csv"),
		line("1", "100", "Extras", "0.50", "x.csv"),
		line("3", "300", "Plano", "4.00", "x.csv"),
		line("3", "300", "Plano", "4.00", "y.csv"),
	}

	records, _ := Reconcile(invoices, details)
	want := Aggregate(records, GroupByDescription)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffledInvoices := append([]models.InvoiceRecord(nil), invoices...)
		shuffledDetails := append([]models.DetailLine(nil), details...)
		rng.Shuffle(len(shuffledInvoices), func(a, b int) {
			shuffledInvoices[a], shuffledInvoices[b] = shuffledInvoices[b], shuffledInvoices[a]
		})
		rng.Shuffle(len(shuffledDetails), func(a, b int) {
			shuffledDetails[a], shuffledDetails[b] = shuffledDetails[b], shuffledDetails[a]
		})

		got, _ := Reconcile(shuffledInvoices, shuffledDetails)
		assert.Equal(t, want.Records, Aggregate(got, GroupByDescription).Records)
	}
}

func TestParseGroupBy(t *testing.T) {
	g, err := ParseGroupBy("")
	require.NoError(t, err)
	assert.Equal(t, GroupByDescription, g)

	g, err = ParseGroupBy(" Invoice ")
	require.NoError(t, err)
	assert.Equal(t, GroupByInvoice, g)

	_, err = ParseGroupBy("origin")
	assert.Error(t, err)
}
