package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"telbill/internal/detail"
	"telbill/internal/logger"
	"telbill/internal/parsing"
	"telbill/pkg/models"
)

var detailsCmd = &cobra.Command{
	Use:   "details [folder]",
	Short: "Load the itemized detail exports of a folder",
	Long: `Load every detail export in a folder and print the normalized detail table.

Files are matched by name (case-insensitive):
  *DetalhamentoFaturaExcel*  web export, columns FATURA / Nº Origem / Valor (R$) / Descrição
  *Fatura_Excel*             web export, columns NUMERO DA FATURA / TELEFONE / VALOR BRUTO / DESCRICAO DO SERVICO
  *.txt                      legacy export, columns FATURA / FONE-ORIG / VALOR / BLOCO

Rows are summed per invoice, origin and description.`,
	Example: `  # Summary per invoice
  telbill details detalhes/

  # Full table as JSON
  telbill details detalhes/ --json -o details.json`,
	Args: cobra.ExactArgs(1),
	RunE: runDetails,
}

// DetailsOutput represents the JSON output structure for detail loading
type DetailsOutput struct {
	Files       int                 `json:"files"`
	SkippedRows int                 `json:"skipped_rows"`
	Lines       []models.DetailLine `json:"lines"`
	Failures    []models.Failure    `json:"failures,omitempty"`
}

func init() {
	rootCmd.AddCommand(detailsCmd)

	detailsCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	detailsCmd.Flags().Bool("json", false, "Output the full table as JSON")
	detailsCmd.Flags().Bool("drop-zero", false, "Drop lines whose summed amount is zero")
	detailsCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runDetails(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("details")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	dropZero, _ := cmd.Flags().GetBool("drop-zero")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	dir := args[0]

	log.Info().
		Str("dir", dir).
		Bool("drop_zero", dropZero).
		Msg("Loading detail files")

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	loader := detail.NewLoader()
	loader.DropZero = dropZero

	result, err := loader.LoadDir(ctx, dir)
	if err != nil {
		return handleDetailsError(err, dir, log)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(DetailsOutput{
			Files:       result.Files,
			SkippedRows: result.SkippedRows,
			Lines:       result.Lines,
			Failures:    result.Failures,
		}, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		return writeOutput(outputPath, append(data, '\n'), log)
	}

	return writeOutput(outputPath, []byte(detailsSummary(result)), log)
}

// detailsSummary renders one line per invoice number with its total
func detailsSummary(result *detail.Result) string {
	type total struct {
		number string
		lines  int
		sum    decimal.Decimal
	}

	var order []string
	totals := make(map[string]*total)
	for _, l := range result.Lines {
		key := parsing.NormalizeInvoiceNumber(l.InvoiceNumber)
		t, ok := totals[key]
		if !ok {
			t = &total{number: l.InvoiceNumber, sum: decimal.Zero}
			totals[key] = t
			order = append(order, key)
		}
		t.lines++
		t.sum = t.sum.Add(l.Amount)
	}

	var b strings.Builder
	b.WriteString(strings.Repeat("=", 50) + "\n")
	b.WriteString("                 DETALHAMENTO\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Arquivos lidos: %d\n", result.Files)
	fmt.Fprintf(&b, "Linhas: %d\n", len(result.Lines))
	if result.SkippedRows > 0 {
		fmt.Fprintf(&b, "Linhas ignoradas: %d\n", result.SkippedRows)
	}
	b.WriteString("\n")

	for _, key := range order {
		t := totals[key]
		fmt.Fprintf(&b, "Fatura %-15s %4d linhas  R$ %s\n", t.number, t.lines, parsing.FormatMoney(t.sum))
	}

	if len(result.Failures) > 0 {
		b.WriteString("\nErros:\n")
		for _, f := range result.Failures {
			fmt.Fprintf(&b, "  ❌ %s: %s\n", f.Path, f.Reason)
		}
	}
	return b.String()
}

// handleDetailsError provides user-friendly error messages for detail loading failures
func handleDetailsError(err error, dir string, log zerolog.Logger) error {
	log.Error().Err(err).Str("dir", dir).Msg("Detail loading failed")

	switch {
	case errors.Is(err, detail.ErrNoDetailFiles):
		return fmt.Errorf("no detail files (.csv or .txt) found in %s", dir)
	case errors.Is(err, detail.ErrNoUsableDetails):
		return fmt.Errorf("none of the detail files in %s could be loaded. Check the file names and headers: %w", dir, err)
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("detail folder not found: %s", dir)
	default:
		return fmt.Errorf("detail loading failed: %w", err)
	}
}
