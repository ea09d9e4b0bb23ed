package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"telbill/internal/logger"
	"telbill/internal/parsing"
	"telbill/pkg/models"
	"telbill/pkg/services"
)

// DefaultWorksheet is the tab the final table is appended to
const DefaultWorksheet = "Faturas"

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// Service handles Google Sheets operations
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	sheetURL      string
	worksheet     string
	log           zerolog.Logger

	// SkipExisting drops rows whose invoice number is already present in the worksheet
	SkipExisting bool
}

var _ services.Submitter = (*Service)(nil)

// NewSheetsService creates a new Google Sheets service writing to worksheet
func NewSheetsService(ctx context.Context, sheetURL, worksheet string) (*Service, error) {
	const op = "NewSheetsService"

	log := logger.WithComponent("sheets")

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}
	if worksheet == "" {
		worksheet = DefaultWorksheet
	}

	log.Debug().Str("spreadsheet_id", spreadsheetID).Str("worksheet", worksheet).Msg("Extracted spreadsheet ID")

	var creds []byte
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	client := config.Client(ctx)
	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		sheetURL:      sheetURL,
		worksheet:     worksheet,
		log:           log,
	}, nil
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// Target returns the spreadsheet URL and worksheet
func (s *Service) Target() string {
	return fmt.Sprintf("%s (%s)", s.sheetURL, s.worksheet)
}

// Submit appends the records to the worksheet, creating it with headers when needed
func (s *Service) Submit(ctx context.Context, records []models.AggregatedRecord) error {
	const op = "Submit"

	if err := s.ensureSheetWithHeaders(ctx, s.worksheet); err != nil {
		return fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	if s.SkipExisting {
		existing, err := s.ExistingInvoices(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		before := len(records)
		records = filterExisting(records, existing)
		s.log.Info().
			Int("skipped", before-len(records)).
			Int("remaining", len(records)).
			Msg("Skipping invoices already in the sheet")
	}

	if len(records) == 0 {
		s.log.Info().Str("sheet", s.worksheet).Msg("Nothing to write")
		return nil
	}

	s.log.Info().
		Str("sheet", s.worksheet).
		Int("rows", len(records)).
		Msg("Writing reconciled rows to Google Sheet")

	values := make([][]interface{}, 0, len(records))
	for _, r := range records {
		values = append(values, r.Cells())
	}

	_, err := s.sheetsService.Spreadsheets.Values.Append(
		s.spreadsheetID,
		columnRange(s.worksheet),
		&sheets.ValueRange{Values: values},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to append values to sheet: %w", op, err)
	}

	s.log.Info().
		Int("rows_written", len(values)).
		Msg("Successfully wrote rows to Google Sheet")

	return nil
}

// ExistingInvoices returns the normalized invoice numbers already in the worksheet
func (s *Service) ExistingInvoices(ctx context.Context) (map[string]bool, error) {
	const op = "ExistingInvoices"

	col := columnName(invoiceColumn())
	values, err := s.ReadRange(ctx, fmt.Sprintf("%s!%s2:%s", s.worksheet, col, col))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	existing := make(map[string]bool, len(values))
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		if key := parsing.NormalizeInvoiceNumber(fmt.Sprintf("%v", row[0])); key != "" {
			existing[key] = true
		}
	}
	return existing, nil
}

func filterExisting(records []models.AggregatedRecord, existing map[string]bool) []models.AggregatedRecord {
	kept := make([]models.AggregatedRecord, 0, len(records))
	for _, r := range records {
		if existing[parsing.NormalizeInvoiceNumber(r.Invoice.InvoiceNumber)] {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// ensureSheetWithHeaders ensures the sheet exists and has proper headers
func (s *Service) ensureSheetWithHeaders(ctx context.Context, sheetName string) error {
	const op = "ensureSheetWithHeaders"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	var sheetExists bool
	var sheetID int64
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == sheetName {
			sheetExists = true
			sheetID = sheet.Properties.SheetId
			break
		}
	}

	if !sheetExists {
		s.log.Info().Str("sheet", sheetName).Msg("Creating new sheet")

		batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: sheetName},
				}},
			},
		}

		resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to create sheet: %w", op, err)
		}
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}

	headers := headerRange(sheetName)
	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, headers).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get headers: %w", op, err)
	}

	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		s.log.Info().Str("sheet", sheetName).Msg("Adding headers to sheet")

		_, err = s.sheetsService.Spreadsheets.Values.Update(
			s.spreadsheetID,
			headers,
			&sheets.ValueRange{Values: [][]interface{}{headerValues()}},
		).ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to add headers: %w", op, err)
		}

		if err := s.formatHeaders(ctx, sheetID); err != nil {
			s.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
		}
	}

	return nil
}

// formatHeaders makes the header row bold and resizes the columns
func (s *Service) formatHeaders(ctx context.Context, sheetID int64) error {
	const op = "formatHeaders"

	columns := int64(len(models.TableColumns))
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   columns,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{
							Red:   0.9,
							Green: 0.9,
							Blue:  0.9,
						},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        sheetID,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   columns,
				},
			},
		},
	}

	_, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to format headers: %w", op, err)
	}
	return nil
}

// ReadRange reads values from a specified range in the spreadsheet
func (s *Service) ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error) {
	const op = "ReadRange"

	s.log.Debug().
		Str("range", rangeSpec).
		Msg("Reading range from spreadsheet")

	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, rangeSpec).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read range %s: %w", op, rangeSpec, err)
	}

	s.log.Debug().
		Int("rows", len(resp.Values)).
		Str("range", rangeSpec).
		Msg("Successfully read range from spreadsheet")

	return resp.Values, nil
}

func headerValues() []interface{} {
	headers := make([]interface{}, len(models.TableColumns))
	for i, h := range models.TableColumns {
		headers[i] = h
	}
	return headers
}

// columnRange covers every table column, e.g. "Faturas!A:R"
func columnRange(sheetName string) string {
	return fmt.Sprintf("%s!A:%s", sheetName, columnName(len(models.TableColumns)))
}

// headerRange is the first row of the table, e.g. "Faturas!A1:R1"
func headerRange(sheetName string) string {
	return fmt.Sprintf("%s!A1:%s1", sheetName, columnName(len(models.TableColumns)))
}

// invoiceColumn is the 1-based position of FATURA
func invoiceColumn() int {
	for i, h := range models.TableColumns {
		if h == "FATURA" {
			return i + 1
		}
	}
	return 2
}

func columnName(n int) string {
	name, err := excelize.ColumnNumberToName(n)
	if err != nil {
		return "A"
	}
	return name
}
