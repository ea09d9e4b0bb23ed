package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telbill/internal/detail"
	"telbill/internal/invoice"
	"telbill/internal/logger"
)

// DetailLoader loads a directory of detail exports.
type DetailLoader interface {
	LoadDir(ctx context.Context, dir string) (*detail.Result, error)
}

// Options configures one pipeline run.
type Options struct {
	InvoicesDir string
	DetailsDir  string
	Workers     int
	GroupBy     GroupBy
	Progress    invoice.ProgressFunc
}

// Service runs extraction, detail loading, reconciliation and aggregation.
type Service struct {
	extractor invoice.Service
	loader    DetailLoader
	log       zerolog.Logger
}

// NewService creates the pipeline from its two readers.
func NewService(extractor invoice.Service, loader DetailLoader) *Service {
	return &Service{
		extractor: extractor,
		loader:    loader,
		log:       logger.WithComponent("reconciliation"),
	}
}

// Run executes the whole pipeline. Per-document and per-file problems end up in
// Report.Failures; an error is returned only when a stage cannot produce anything or the
// context is done, in which case partial results are discarded.
func (s *Service) Run(ctx context.Context, opts Options) (*Report, error) {
	const op = "Run"

	report := &Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
	log := logger.WithRunID(s.log, report.RunID)

	groupBy, err := ParseGroupBy(string(opts.GroupBy))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	paths, err := invoice.FindDocuments(opts.InvoicesDir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: %s: %w", op, opts.InvoicesDir, ErrNoInvoices)
	}
	report.TotalDocuments = len(paths)

	log.Info().
		Str("invoices_dir", opts.InvoicesDir).
		Str("details_dir", opts.DetailsDir).
		Int("documents", len(paths)).
		Int("workers", opts.Workers).
		Str("group_by", string(groupBy)).
		Msg("Starting reconciliation run")

	batch, err := s.extractor.ExtractAll(ctx, paths, opts.Workers, opts.Progress)
	if err != nil {
		return nil, fmt.Errorf("%s: extraction: %w", op, err)
	}
	report.Invoices = batch.Records
	report.Failures = append(report.Failures, batch.Failures...)

	details, err := s.loader.LoadDir(ctx, opts.DetailsDir)
	if err != nil {
		return nil, fmt.Errorf("%s: details: %w", op, err)
	}
	report.Details = details.Lines
	report.DetailFiles = details.Files
	report.SkippedRows = details.SkippedRows
	report.Failures = append(report.Failures, details.Failures...)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	records, warnings := Reconcile(batch.Records, details.Lines)
	report.Records = records
	report.Warnings = append(report.Warnings, warnings...)

	aggregated := Aggregate(records, groupBy)
	report.Aggregated = aggregated.Records
	report.ZeroAmount = aggregated.ZeroAmount
	report.Warnings = append(report.Warnings, aggregated.Warnings...)

	report.MatchedCount = len(report.Invoices)
	for _, a := range aggregated.Records {
		if a.Unmatched {
			report.MatchedCount--
		}
	}

	for _, w := range report.Warnings {
		switch w.Kind {
		case WarningUnmatchedInvoice:
			log.Debug().Str("invoice", w.InvoiceNumber).Str("file", w.Path).Msg(w.Message)
		default:
			log.Warn().Str("kind", string(w.Kind)).Str("invoice", w.InvoiceNumber).Str("file", w.Path).Msg(w.Message)
		}
	}

	report.ProcessingTime = time.Since(report.StartedAt)

	log.Info().
		Int("invoices", len(report.Invoices)).
		Int("detail_lines", len(report.Details)).
		Int("rows", len(report.Aggregated)).
		Int("unmatched", report.UnmatchedCount()).
		Int("zero_amount", len(report.ZeroAmount)).
		Int("failures", len(report.Failures)).
		Dur("duration", report.ProcessingTime).
		Msg("Reconciliation run completed")

	return report, nil
}
