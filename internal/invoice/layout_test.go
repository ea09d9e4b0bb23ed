package invoice

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Layout
	}{
		{"group contract", "Contrato Agrupador: 1", LayoutGroupContract},
		{"group contract any case", "CONTRATO AGRUPADOR: 1", LayoutGroupContract},
		{"group contract beats telephone markers", "PLANO LOCAL\ncontrato agrupador: 1\nTELEFONE/CONTRATO", LayoutGroupContract},
		{"customized account", "VALOR REFERENTE A CONTA CUSTOMIZADA", LayoutTelephoneContract},
		{"local plan", "PLANO LOCAL", LayoutTelephoneContract},
		{"telephone beats business footer", "TELEFONE/CONTRATO: 1\nOI EMPRESAS", LayoutTelephoneContract},
		{"business greeting", "CHEGOU SUA FATURA DA OI", LayoutBusiness},
		{"business word", "OI EMPRESAS", LayoutBusiness},
		{"telephone markers are case sensitive", "plano local\nempresas", LayoutUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.text)
			if tt.want == LayoutUnknown {
				assert.ErrorIs(t, err, ErrUnrecognizedLayout)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyUnrecognizedCarriesText(t *testing.T) {
	_, err := Classify("BOLETO DE OUTRA OPERADORA")

	var layoutErr *UnrecognizedLayoutError
	require.True(t, errors.As(err, &layoutErr))
	assert.Equal(t, "BOLETO DE OUTRA OPERADORA", layoutErr.Text)
}

func TestClassificationOrder(t *testing.T) {
	var order []Layout
	for _, sig := range ClassificationOrder {
		order = append(order, sig.Layout)
	}
	assert.Equal(t, []Layout{LayoutGroupContract, LayoutTelephoneContract, LayoutBusiness}, order)
}

func TestLayoutString(t *testing.T) {
	assert.Equal(t, "telefone-contrato", LayoutTelephoneContract.String())
	assert.Equal(t, "contrato-agrupador", LayoutGroupContract.String())
	assert.Equal(t, "empresas", LayoutBusiness.String())
	assert.Equal(t, "unknown", Layout(9).String())
}
