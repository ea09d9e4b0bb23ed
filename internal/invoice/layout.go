package invoice

import "strings"

// Layout identifies the rule table used to read a document. The numeric value is reported
// in the TIPO_LEITURA column.
type Layout int

const (
	LayoutUnknown           Layout = 0
	LayoutTelephoneContract Layout = 1 // "TELEFONE/CONTRATO" documents
	LayoutGroupContract     Layout = 2 // "Contrato Agrupador" documents
	LayoutBusiness          Layout = 3 // "Oi Empresas" documents
)

func (l Layout) String() string {
	switch l {
	case LayoutTelephoneContract:
		return "telefone-contrato"
	case LayoutGroupContract:
		return "contrato-agrupador"
	case LayoutBusiness:
		return "empresas"
	default:
		return "unknown"
	}
}

// Signature lists the markers that identify a layout.
type Signature struct {
	Layout   Layout
	Markers  []string
	FoldCase bool
}

// ClassificationOrder is evaluated top to bottom and the first matching signature wins.
// Group-contract documents also print "PLANO LOCAL" and "EMPRESAS", and telephone-contract
// footers mention "EMPRESAS", so the order is significant.
var ClassificationOrder = []Signature{
	{
		Layout:   LayoutGroupContract,
		Markers:  []string{"contrato agrupador:"},
		FoldCase: true,
	},
	{
		Layout:  LayoutTelephoneContract,
		Markers: []string{"VALOR REFERENTE A CONTA CUSTOMIZADA", "PLANO LOCAL", "TELEFONE/CONTRATO"},
	},
	{
		Layout:  LayoutBusiness,
		Markers: []string{"CHEGOU SUA FATURA DA OI", "EMPRESAS"},
	},
}

// Classify returns the layout of the normalized document text. An unmatched text yields an
// *UnrecognizedLayoutError holding the text.
func Classify(text string) (Layout, error) {
	folded := strings.ToLower(text)

	for _, sig := range ClassificationOrder {
		for _, marker := range sig.Markers {
			if sig.FoldCase {
				if strings.Contains(folded, strings.ToLower(marker)) {
					return sig.Layout, nil
				}
				continue
			}
			if strings.Contains(text, marker) {
				return sig.Layout, nil
			}
		}
	}

	return LayoutUnknown, &UnrecognizedLayoutError{Text: text}
}
