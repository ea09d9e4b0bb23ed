package parsing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.234,56", "1234.56"},
		{"R$ 1.234,56", "1234.56"},
		{"R$ 89,90", "89.9"},
		{"0,00", "0"},
		{"12.50", "12.5"},
		{"1.234.567,01", "1234567.01"},
		{"-3,10", "-3.1"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseMoneyRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "R$", "abc", "12,3x"} {
		_, err := ParseMoney(in)
		assert.ErrorIs(t, err, ErrInvalidAmount, in)
	}
}

func TestMoneyRoundTrip(t *testing.T) {
	for _, in := range []string{"1.234,56", "0,99", "999,00", "12.345.678,90", "-1.000,01"} {
		d, err := ParseMoney(in)
		require.NoError(t, err)
		assert.Equal(t, in, FormatMoney(d))
	}
}

func TestIsMoney(t *testing.T) {
	for _, s := range []string{"1.234,56", "R$ 10,00", " -3,10 ", "0,00", "1234,56"} {
		assert.True(t, IsMoney(s), "%q", s)
	}
	for _, s := range []string{"34.56", "1.2", "1133334444  1.2", "5,5O", "10", "1.234,5", ""} {
		assert.False(t, IsMoney(s), "%q", s)
	}
}

func TestFindMoney(t *testing.T) {
	got, ok := FindMoney("VALOR A PAGAR\nR$ 1.234,56 ATÉ 10/05/2024")
	assert.True(t, ok)
	assert.Equal(t, "1.234,56", got)

	_, ok = FindMoney("nothing here")
	assert.False(t, ok)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"10/05/2024", time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)},
		{"1/2/24", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"10 de maio de 2024", time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)},
		{"Maio 2024", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"março/2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"MARCO/2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"fev/2023", time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"DEZ2022", time.Date(2022, 12, 1, 0, 0, 0, 0, time.UTC)},
		{"mai-2024", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in, PtBR)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDateErrors(t *testing.T) {
	for _, in := range []string{"", "31/02/2024", "13/13/2024", "smarch 2024", "CONTA"} {
		_, err := ParseDate(in, PtBR)
		assert.ErrorIs(t, err, ErrInvalidDate, in)
	}
}

func TestFormatMonthLabel(t *testing.T) {
	assert.Equal(t, "mai-2024", FormatMonthLabel(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), PtBR))
	assert.Equal(t, "dez-2023", FormatMonthLabel(time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), PtBR))

	label := FormatMonthLabel(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), PtBR)
	back, err := ParseDate(label, PtBR)
	require.NoError(t, err)
	assert.Equal(t, time.February, back.Month())
}

func TestNormalizeInvoiceNumber(t *testing.T) {
	tests := map[string]string{
		"00042":    "42",
		"  00042 ": "42",
		"42":       "42",
		"4200":     "4200",
		"0A10":     "A10",
		"":         "",
	}

	for in, want := range tests {
		got := NormalizeInvoiceNumber(in)
		assert.Equal(t, want, got, in)
		assert.Equal(t, got, NormalizeInvoiceNumber(got), "idempotent for %q", in)
	}
}

func TestProbeIdentifier(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"dash wins over digits", "TELEFONE/CONTRATO: 1234567890 CONTA 31-98765", "31-98765"},
		{"ten digits", "TELEFONE/CONTRATO: CONTA 3132345678 X", "3132345678"},
		{"eight digits", "TELEFONE/CONTRATO: CONTA N 31323456", "31323456"},
		{"seven digits", "TELEFONE/CONTRATO: CONTA N 3132345", "3132345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ProbeIdentifier(tt.in)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := ProbeIdentifier("TELEFONE/CONTRATO: CONTA")
	assert.False(t, ok)
}

func TestLookupMonth(t *testing.T) {
	m, ok := PtBR.LookupMonth("Março")
	assert.True(t, ok)
	assert.Equal(t, time.March, m)

	_, ok = PtBR.LookupMonth("May")
	assert.False(t, ok)
}
