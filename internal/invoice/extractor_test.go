package invoice

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telbill/internal/parsing"
	"telbill/internal/text"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func newTestExtractor() *Extractor {
	return NewExtractor(text.NewNormalizer(nil), parsing.PtBR)
}

func TestExtractTelephoneContract(t *testing.T) {
	rec, err := newTestExtractor().Extract(docFromText("oi1.pdf", telephoneContractDoc))
	require.NoError(t, err)

	assert.Equal(t, int(LayoutTelephoneContract), rec.LayoutID)
	assert.Equal(t, "3234-5678", rec.AccountID)
	assert.Equal(t, "000123", rec.InvoiceNumber)
	assert.True(t, decimal.RequireFromString("1234.56").Equal(rec.Amount))
	assert.Equal(t, date(2024, 5, 10), rec.IssueDate)
	assert.Equal(t, date(2024, 5, 25), rec.DueDate)
	assert.Equal(t, "mai-2024", rec.BillingMonthLabel)
	assert.Equal(t, "31", rec.AreaCode)
	assert.Equal(t, date(2024, 4, 1), rec.PeriodStart)
	assert.Equal(t, date(2024, 4, 30), rec.PeriodEnd)
	assert.Equal(t, "84670000001-7 43590024020-9 02405000243-2 84221010811-9", rec.Barcode)
	assert.Equal(t, "Oi", rec.Vendor)
	assert.Equal(t, "oi1.pdf", rec.SourcePath)
}

func TestExtractGroupContract(t *testing.T) {
	rec, err := newTestExtractor().Extract(docFromText("oi2.pdf", groupContractDoc))
	require.NoError(t, err)

	assert.Equal(t, int(LayoutGroupContract), rec.LayoutID)
	assert.Equal(t, "9988776655", rec.AccountID)
	assert.Equal(t, "000000456", rec.InvoiceNumber)
	assert.True(t, decimal.RequireFromString("89.90").Equal(rec.Amount))
	assert.Equal(t, date(2024, 6, 3), rec.IssueDate)
	assert.Equal(t, date(2024, 6, 20), rec.DueDate)
	assert.Equal(t, "jun-2024", rec.BillingMonthLabel)
	assert.Empty(t, rec.Barcode)
	assert.Nil(t, rec.PeriodStart)
}

func TestExtractGroupContractReferenceMonthFallback(t *testing.T) {
	doc := docFromText("oi2b.pdf", `Contrato Agrupador: 5
Referência
maio/2024
Fatura: 77
Valor a pagar
10,00`)

	rec, err := newTestExtractor().Extract(doc)
	require.NoError(t, err)

	assert.Nil(t, rec.IssueDate)
	assert.Equal(t, "mai-2024", rec.BillingMonthLabel)
}

func TestExtractBusiness(t *testing.T) {
	rec, err := newTestExtractor().Extract(docFromText("oi3.pdf", businessDoc))
	require.NoError(t, err)

	assert.Equal(t, int(LayoutBusiness), rec.LayoutID)
	assert.Equal(t, "1122334455", rec.AccountID)
	assert.Equal(t, "0789", rec.InvoiceNumber)
	assert.True(t, decimal.RequireFromString("2500").Equal(rec.Amount))
	assert.Equal(t, date(2024, 7, 5), rec.IssueDate)
	assert.Equal(t, date(2024, 7, 15), rec.DueDate)
	assert.Equal(t, "jul-2024", rec.BillingMonthLabel)
}

func TestExtractAcrossPages(t *testing.T) {
	doc := docFromText("multi.pdf", "CHEGOU SUA FATURA DA OI\nNÚMERO DO CLIENTE: 1\f NÚMERO DA FATURA: 2\nPAGAR (R$)\n3,00")

	rec, err := newTestExtractor().Extract(doc)
	require.NoError(t, err)
	assert.Equal(t, "2", rec.InvoiceNumber)
	assert.Nil(t, rec.DueDate)
}

func TestExtractUnrecognizedLayout(t *testing.T) {
	_, err := newTestExtractor().Extract(docFromText("other.pdf", "FATURA DE OUTRA EMPRESA\nTotal 10,00"))

	require.ErrorIs(t, err, ErrUnrecognizedLayout)
	var layoutErr *UnrecognizedLayoutError
	require.True(t, errors.As(err, &layoutErr))
	assert.Equal(t, "other.pdf", layoutErr.Path)
	assert.Contains(t, layoutErr.Text, "Total 10,00")
}

func TestExtractRequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field Field
	}{
		{
			name:  "account is the column header",
			doc:   "TELEFONE/CONTRATO:\nCONTA\nFATURA N 1\nVALOR A PAGAR 1,00",
			field: FieldAccount,
		},
		{
			name:  "account probes find nothing",
			doc:   "TELEFONE/CONTRATO: SEM NUMERO\nAQUI\nFATURA N 1\nVALOR A PAGAR 1,00",
			field: FieldAccount,
		},
		{
			name:  "invoice number missing",
			doc:   "Contrato Agrupador: 5\nValor a pagar\n10,00",
			field: FieldInvoiceNumber,
		},
		{
			name:  "invoice number is the sentinel",
			doc:   "TELEFONE/CONTRATO: 3132345678\nFATURA N CONTA\nVALOR A PAGAR 1,00",
			field: FieldInvoiceNumber,
		},
		{
			name:  "amount missing",
			doc:   "CHEGOU SUA FATURA DA OI\nNÚMERO DO CLIENTE: 1\nNÚMERO DA FATURA: 2",
			field: FieldAmount,
		},
		{
			name:  "amount unreadable",
			doc:   "CHEGOU SUA FATURA DA OI\nNÚMERO DO CLIENTE: 1\nNÚMERO DA FATURA: 2\nPAGAR (R$)\nvide anexo",
			field: FieldAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestExtractor().Extract(docFromText("doc.pdf", tt.doc))

			require.ErrorIs(t, err, ErrFieldExtraction)
			var fieldErr *FieldExtractionError
			require.True(t, errors.As(err, &fieldErr))
			assert.Equal(t, tt.field, fieldErr.Field)
			assert.Equal(t, "doc.pdf", fieldErr.Path)
		})
	}
}

func TestExtractIgnoresBadOptionalDate(t *testing.T) {
	doc := docFromText("d.pdf", "CHEGOU SUA FATURA DA OI\nEmissão em breve\nNÚMERO DO CLIENTE: 1\nNÚMERO DA FATURA: 2\nPAGAR (R$)\n3,00")

	rec, err := newTestExtractor().Extract(doc)
	require.NoError(t, err)
	assert.Nil(t, rec.IssueDate)
	assert.Empty(t, rec.BillingMonthLabel)
}

func TestFindPeriodSkipsInvalidRanges(t *testing.T) {
	e := newTestExtractor()

	start, end := e.findPeriod("Período 31/02/2024 a 28/02/2024\nServiços de 01/04/2024 a 30/04/2024")
	assert.Equal(t, date(2024, 4, 1), start)
	assert.Equal(t, date(2024, 4, 30), end)

	start, end = e.findPeriod("Período 31/02/2024 a 31/03/2024")
	assert.Nil(t, start)
	assert.Nil(t, end)
}

func TestFindBarcode(t *testing.T) {
	assert.Equal(t,
		"84670000001-7 43590024020-9 02405000243-2 84221010811-9",
		FindBarcode("x\n84670000001-7 43590024020-9 02405000243-2 84221010811-9\nCODIGO"))
	assert.Empty(t, FindBarcode("no digits here"))
}

func TestApplyRulesFirstRuleWins(t *testing.T) {
	lines := []string{"Mês de referência: Abril 2024", "Referência", "maio/2024"}

	values := ApplyRules(groupContractRules, lines)
	assert.Equal(t, "Abril 2024", values[FieldReferenceMonth])
}

func TestIdentifierAction(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{"label alone takes next line", []string{"TELEFONE/CONTRATO:", "3132345678"}, "3132345678"},
		{"label and token", []string{"TELEFONE/CONTRATO: 3132345678"}, "3132345678"},
		{"dash pattern first", []string{"TELEFONE/CONTRATO: CONTA 3132345678", "31-3234"}, "31-3234"},
		{"seven digits last", []string{"TELEFONE/CONTRATO: N DA CONTA", "3234567"}, "3234567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Identifier()(tt.lines, 0, "TELEFONE/CONTRATO:"))
		})
	}
}
