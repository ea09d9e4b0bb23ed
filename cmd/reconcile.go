package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"telbill/internal/detail"
	"telbill/internal/export"
	"telbill/internal/logger"
	"telbill/internal/parsing"
	"telbill/internal/reconciliation"
	"telbill/internal/sheets"
	"telbill/pkg/services"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Join Oi invoices with their detail exports and write the final table",
	Long: `Extract every invoice in the invoices folder, load every detail export in the
details folder, join both on the invoice number (leading zeros ignored) and
collapse the result into one row per invoice and description.

Invoices without detail lines stay in the table with SEM_DETALHAMENTO=true.
Rows whose detail total is zero are listed separately but kept.

The table is written to --output (.csv or .xlsx) and/or appended to the Google
Sheet given by --sheet or GOOGLE_SHEET_URL.

Environment variables (flags take precedence):
  INVOICES_DIR, DETAILS_DIR   - input folders
  BATCH_WORKERS               - parallel extraction workers (default: 1)
  GROUP_BY                    - description or invoice (default: description)
  OUTPUT_PATH                 - .csv or .xlsx file
  GOOGLE_SHEET_URL            - Google Sheet to append to
  GOOGLE_SHEET_WORKSHEET      - worksheet name (default: Faturas)
  GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS - for --sheet and --ocr`,
	Example: `  # Reconcile into an Excel file
  telbill reconcile --invoices faturas/ --details detalhes/ -o faturas.xlsx

  # One row per invoice, appended to a Google Sheet
  telbill reconcile --invoices faturas/ --details detalhes/ --group-by invoice \
    --sheet "https://docs.google.com/spreadsheets/d/<id>/edit"

  # Dry run: process everything, write nothing
  telbill reconcile --invoices faturas/ --details detalhes/ --dry-run`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().String("invoices", "", "Invoice documents folder (default: INVOICES_DIR)")
	reconcileCmd.Flags().String("details", "", "Detail exports folder (default: DETAILS_DIR)")
	reconcileCmd.Flags().String("group-by", "", "Row granularity: description or invoice (default: GROUP_BY)")
	reconcileCmd.Flags().StringP("output", "o", "", "Output .csv or .xlsx file (default: OUTPUT_PATH)")
	reconcileCmd.Flags().String("sheet", "", "Google Sheet URL to append to (default: GOOGLE_SHEET_URL)")
	reconcileCmd.Flags().String("worksheet", "", "Worksheet name (default: GOOGLE_SHEET_WORKSHEET)")
	reconcileCmd.Flags().Bool("skip-existing", false, "Skip invoices already present in the Google Sheet")
	reconcileCmd.Flags().Bool("drop-zero-details", false, "Drop detail lines whose summed amount is zero")
	reconcileCmd.Flags().Bool("dry-run", false, "Process files but don't write any output")
	reconcileCmd.Flags().Bool("verbose", false, "List every warning")
	reconcileCmd.Flags().Int("workers", 0, "Parallel extraction workers (default: BATCH_WORKERS)")
	reconcileCmd.Flags().Bool("ocr", false, "Use Cloud Vision for PDFs without a text layer (default: OCR_FALLBACK)")
	reconcileCmd.Flags().Int("timeout", 1800, "Processing timeout in seconds")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("reconcile")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	invoicesDir := flagOr(cmd, "invoices", cfg.InvoicesDir)
	detailsDir := flagOr(cmd, "details", cfg.DetailsDir)
	groupByFlag := flagOr(cmd, "group-by", cfg.GroupBy)
	outputPath := flagOr(cmd, "output", cfg.OutputPath)
	sheetURL := flagOr(cmd, "sheet", cfg.GoogleSheetURL)
	worksheet := flagOr(cmd, "worksheet", cfg.GoogleSheetWorksheet)
	skipExisting, _ := cmd.Flags().GetBool("skip-existing")
	dropZero, _ := cmd.Flags().GetBool("drop-zero-details")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	verbose, _ := cmd.Flags().GetBool("verbose")
	workers, _ := cmd.Flags().GetInt("workers")
	useOCR, _ := cmd.Flags().GetBool("ocr")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if workers < 1 {
		workers = cfg.BatchWorkers
	}
	if !cmd.Flags().Changed("ocr") {
		useOCR = cfg.OCRFallback
	}

	if invoicesDir == "" || detailsDir == "" {
		return fmt.Errorf("both --invoices and --details are required (or INVOICES_DIR and DETAILS_DIR)")
	}
	for _, dir := range []string{invoicesDir, detailsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("folder not found: %s", dir)
		}
		if !info.IsDir() {
			return fmt.Errorf("path is not a directory: %s", dir)
		}
	}

	groupBy, err := reconciliation.ParseGroupBy(groupByFlag)
	if err != nil {
		return err
	}

	log.Info().
		Str("invoices", invoicesDir).
		Str("details", detailsDir).
		Str("group_by", string(groupBy)).
		Str("output", outputPath).
		Bool("sheet", sheetURL != "").
		Bool("dry_run", dryRun).
		Int("workers", workers).
		Msg("Starting reconciliation")

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("                         CONCILIAÇÃO DE FATURAS OI")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Faturas: %s\n", invoicesDir)
	fmt.Printf("Detalhamentos: %s\n", detailsDir)
	fmt.Printf("Agrupamento: %s\n", groupBy)
	if dryRun {
		fmt.Println("Modo: Dry Run (nenhum arquivo ou planilha será gravado)")
	}
	fmt.Println()

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	submitters, err := buildSubmitters(ctx, outputPath, sheetURL, worksheet, skipExisting, dryRun, log)
	if err != nil {
		return err
	}

	extractor, release, err := newExtractor(ctx, useOCR, log)
	if err != nil {
		return err
	}
	defer release()

	loader := detail.NewLoader()
	loader.DropZero = dropZero

	fmt.Printf("Processando faturas com %d workers...\n", workers)
	report, err := reconciliation.NewService(extractor, loader).Run(ctx, reconciliation.Options{
		InvoicesDir: invoicesDir,
		DetailsDir:  detailsDir,
		Workers:     workers,
		GroupBy:     groupBy,
		Progress:    progressPrinter(os.Stdout),
	})
	if err != nil {
		return handleReconcileError(err, log)
	}
	fmt.Println()

	printReport(report, verbose)

	if dryRun {
		fmt.Printf("Dry run: %d linhas não gravadas\n", len(report.Aggregated))
	}

	for _, s := range submitters {
		fmt.Printf("Gravando %d linhas em %s...\n", len(report.Aggregated), s.Target())
		if err := s.Submit(ctx, report.Aggregated); err != nil {
			return handleReconcileError(fmt.Errorf("failed to write to %s: %w", s.Target(), err), log)
		}
	}

	fmt.Println(strings.Repeat("=", 80))

	log.Info().
		Str("run_id", report.RunID).
		Int("rows", len(report.Aggregated)).
		Int("targets", len(submitters)).
		Msg("Reconciliation completed")

	return nil
}

// flagOr returns the flag value when it was set, otherwise the configured value
func flagOr(cmd *cobra.Command, name, configured string) string {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return configured
}

// buildSubmitters creates the output targets before any processing so that bad settings fail fast
func buildSubmitters(ctx context.Context, outputPath, sheetURL, worksheet string, skipExisting, dryRun bool, log zerolog.Logger) ([]services.Submitter, error) {
	var submitters []services.Submitter

	if outputPath != "" {
		fileSubmitter, err := export.NewFileSubmitter(outputPath)
		if err != nil {
			return nil, handleReconcileError(err, log)
		}
		if !dryRun {
			submitters = append(submitters, fileSubmitter)
		}
	}

	if sheetURL != "" && !dryRun {
		sheetsService, err := sheets.NewSheetsService(ctx, sheetURL, worksheet)
		if err != nil {
			return nil, fmt.Errorf("failed to create Google Sheets service: %w", err)
		}
		sheetsService.SkipExisting = skipExisting
		submitters = append(submitters, sheetsService)
	}

	if len(submitters) == 0 && !dryRun {
		log.Warn().Msg("No output configured, results are only summarized")
	}
	return submitters, nil
}

// printReport prints the run summary
func printReport(report *reconciliation.Report, verbose bool) {
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("                 RESULTADO")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Execução: %s\n", report.RunID)
	fmt.Printf("Documentos: %d\n", report.TotalDocuments)
	fmt.Printf("Faturas lidas: %d\n", len(report.Invoices))
	fmt.Printf("Arquivos de detalhamento: %d\n", report.DetailFiles)
	fmt.Printf("Linhas de detalhamento: %d\n", len(report.Details))
	if report.SkippedRows > 0 {
		fmt.Printf("⚠️  Linhas de detalhamento ignoradas (valor inválido): %d\n", report.SkippedRows)
	}
	fmt.Printf("Linhas na tabela final: %d\n", len(report.Aggregated))
	fmt.Printf("Faturas com detalhamento: %d\n", report.MatchedCount)
	if n := report.UnmatchedCount(); n > 0 {
		fmt.Printf("%d linhas sem detalhamento\n", n)
	}
	if len(report.ZeroAmount) > 0 {
		fmt.Printf("Linhas com valor zero: %d\n", len(report.ZeroAmount))
		for _, z := range report.ZeroAmount {
			fmt.Printf("  ⚠️  Fatura %s - %s\n", z.Invoice.InvoiceNumber, z.Description)
		}
	}
	fmt.Printf("Tempo: %s\n", report.ProcessingTime.Round(time.Millisecond))
	fmt.Println()

	if len(report.Failures) > 0 {
		fmt.Printf("Erros: %d\n", len(report.Failures))
		for _, f := range report.Failures {
			fmt.Printf("  ❌ [%s] %s: %s\n", f.Stage, f.Path, f.Reason)
		}
		fmt.Println()
	}

	var shown int
	for _, w := range report.Warnings {
		if w.Kind == reconciliation.WarningUnmatchedInvoice && !verbose {
			continue
		}
		if shown == 0 {
			fmt.Println("Avisos:")
		}
		shown++
		if w.Kind == reconciliation.WarningAmountMismatch || verbose {
			fmt.Printf("  ⚠️  %s\n", w)
		} else {
			fmt.Printf("  ⚠️  %s: fatura %s\n", w.Kind, w.InvoiceNumber)
		}
	}
	if shown > 0 {
		fmt.Println()
	}

	detailTotal, invoiceTotal := reportTotals(report)
	fmt.Printf("Total detalhado: R$ %s\n", parsing.FormatMoney(detailTotal))
	fmt.Printf("Total faturado:  R$ %s\n", parsing.FormatMoney(invoiceTotal))
	fmt.Println()
}

// reportTotals sums the detail amounts of the final table and the amounts of the extracted invoices
func reportTotals(report *reconciliation.Report) (decimal.Decimal, decimal.Decimal) {
	detailTotal, invoiceTotal := decimal.Zero, decimal.Zero
	for _, a := range report.Aggregated {
		if a.DetailAmount.Valid {
			detailTotal = detailTotal.Add(a.DetailAmount.Decimal)
		}
	}
	for _, inv := range report.Invoices {
		invoiceTotal = invoiceTotal.Add(inv.Amount)
	}
	return detailTotal, invoiceTotal
}

// handleReconcileError provides user-friendly error messages for pipeline failures
func handleReconcileError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Reconciliation failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("reconciliation timed out. Try increasing --timeout or --workers")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("reconciliation was canceled, no output was written")
	case errors.Is(err, reconciliation.ErrNoInvoices):
		return fmt.Errorf("no invoice documents (.pdf or .txt) found: %w", err)
	case errors.Is(err, detail.ErrNoDetailFiles):
		return fmt.Errorf("no detail files (.csv or .txt) found: %w", err)
	case errors.Is(err, detail.ErrNoUsableDetails):
		return fmt.Errorf("none of the detail files could be loaded. Run 'telbill details <folder>' to see why: %w", err)
	case errors.Is(err, export.ErrUnsupportedFormat):
		return fmt.Errorf("the output file must end in .csv or .xlsx: %w", err)
	default:
		return fmt.Errorf("reconciliation failed: %w", err)
	}
}
