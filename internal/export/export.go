// Package export writes the final table to local files. CSV uses the semicolon delimiter of the
// vendor exports; XLSX keeps amounts numeric.
package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"telbill/internal/logger"
	"telbill/pkg/models"
	"telbill/pkg/services"
)

// ErrUnsupportedFormat is returned for an output path with an unknown extension
var ErrUnsupportedFormat = errors.New("unsupported output format")

// DefaultSheet is the worksheet name used in XLSX files
const DefaultSheet = "Faturas"

// NewFileSubmitter picks the exporter from the file extension (.csv or .xlsx).
func NewFileSubmitter(path string) (services.Submitter, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSVExporter(path), nil
	case ".xlsx":
		return NewXLSXExporter(path, DefaultSheet), nil
	}
	return nil, fmt.Errorf("NewFileSubmitter: %s: %w", path, ErrUnsupportedFormat)
}

// CSVExporter writes the table as a semicolon-separated file.
type CSVExporter struct {
	path string
	log  zerolog.Logger
}

var _ services.Submitter = (*CSVExporter)(nil)

func NewCSVExporter(path string) *CSVExporter {
	return &CSVExporter{path: path, log: logger.WithComponent("export-csv")}
}

func (e *CSVExporter) Target() string { return e.path }

// Submit replaces the file with the given rows.
func (e *CSVExporter) Submit(ctx context.Context, records []models.AggregatedRecord) error {
	const op = "CSVExporter.Submit"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	f, err := os.Create(e.path)
	if err != nil {
		return fmt.Errorf("%s: failed to create file: %w", op, err)
	}

	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%s: failed to close file: %w", op, err)
	}

	e.log.Info().Str("file", e.path).Int("rows", len(records)).Msg("CSV written")
	return nil
}

// WriteCSV writes the header and one line per record to w.
func WriteCSV(w io.Writer, records []models.AggregatedRecord) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(models.TableColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(r.Row()); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// XLSXExporter writes the table to one worksheet of a new workbook.
type XLSXExporter struct {
	path  string
	sheet string
	log   zerolog.Logger
}

var _ services.Submitter = (*XLSXExporter)(nil)

func NewXLSXExporter(path, sheet string) *XLSXExporter {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &XLSXExporter{path: path, sheet: sheet, log: logger.WithComponent("export-xlsx")}
}

func (e *XLSXExporter) Target() string { return e.path }

// Submit replaces the file with a workbook holding the given rows.
func (e *XLSXExporter) Submit(ctx context.Context, records []models.AggregatedRecord) error {
	const op = "XLSXExporter.Submit"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	data, err := BuildXLSX(records, e.sheet)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.WriteFile(e.path, data, 0o644); err != nil {
		return fmt.Errorf("%s: failed to write file: %w", op, err)
	}

	e.log.Info().Str("file", e.path).Int("rows", len(records)).Msg("XLSX written")
	return nil
}

// BuildXLSX returns a workbook (as bytes) with the header in row 1 and one row per record.
func BuildXLSX(records []models.AggregatedRecord, sheet string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("failed to create sheet: %w", err)
		}
	}
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range models.TableColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for r, rec := range records {
		for c, v := range rec.Cells() {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", r+2, err)
			}
		}
	}

	last, _ := excelize.ColumnNumberToName(len(models.TableColumns))
	_ = f.SetColWidth(sheet, "A", last, 16)
	_ = f.SetColWidth(sheet, "I", "I", 40) // DESCRICAO
	_ = f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
