package detail

import (
	"path/filepath"
	"strings"
)

// Schema maps one export convention onto the DetailLine columns.
type Schema struct {
	Name string

	// Marker is a file name substring. Extension is used when Marker is empty.
	Marker    string
	Extension string

	Invoice     string
	Origin      string
	Amount      string
	Description string

	// FixedWidth allows space-aligned files. They are still read as delimited when the
	// header line carries the delimiter.
	FixedWidth bool
}

// Columns returns the schema columns in DetailLine order.
func (s Schema) Columns() []string {
	return []string{s.Invoice, s.Origin, s.Amount, s.Description}
}

var (
	// DetalhamentoSchema is the "DetalhamentoFaturaExcel" web export.
	DetalhamentoSchema = Schema{
		Name:        "excel-detalhamento",
		Marker:      "DetalhamentoFaturaExcel",
		Invoice:     "FATURA",
		Origin:      "Nº Origem",
		Amount:      "Valor (R$)",
		Description: "Descrição",
	}

	// FaturaSchema is the "Fatura_Excel" web export.
	FaturaSchema = Schema{
		Name:        "excel-fatura",
		Marker:      "Fatura_Excel",
		Invoice:     "NUMERO DA FATURA",
		Origin:      "TELEFONE",
		Amount:      "VALOR BRUTO",
		Description: "DESCRICAO DO SERVICO",
	}

	// LegacySchema is the mainframe text export.
	LegacySchema = Schema{
		Name:        "legacy",
		Extension:   ".txt",
		Invoice:     "FATURA",
		Origin:      "FONE-ORIG",
		Amount:      "VALOR",
		Description: "BLOCO",
		FixedWidth:  true,
	}
)

// DispatchOrder is the order in which file names are tested. Substring markers come before the
// extension rule so a "Fatura_Excel.txt" export is not read as legacy.
var DispatchOrder = []Schema{DetalhamentoSchema, FaturaSchema, LegacySchema}

// CandidateExtensions are the extensions considered detail files. Anything else in the
// directory is skipped.
var CandidateExtensions = []string{".csv", ".txt"}

// SchemaFor picks the schema for a file name. Matching is case-insensitive.
func SchemaFor(path string) (Schema, error) {
	name := strings.ToLower(filepath.Base(path))
	ext := strings.ToLower(filepath.Ext(name))

	for _, s := range DispatchOrder {
		if s.Marker != "" {
			if strings.Contains(name, strings.ToLower(s.Marker)) {
				return s, nil
			}
			continue
		}
		if ext == s.Extension {
			return s, nil
		}
	}
	return Schema{}, &UnrecognizedDetailSchemaError{Path: path}
}

// IsCandidate reports whether a file name looks like a detail export.
func IsCandidate(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range CandidateExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
