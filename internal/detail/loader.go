// Package detail loads the vendor's itemized charge exports into one DetailLine table.
//
// Three export conventions exist, told apart by file name (see DispatchOrder). Each is mapped
// onto invoice number, origin, amount and description; text is trimmed, amounts are read as
// comma-decimal and rows are summed per (invoice, origin, description).
package detail

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"telbill/internal/logger"
	"telbill/internal/parsing"
	"telbill/pkg/models"
)

// Delimiter separates fields in the delimited exports.
const Delimiter = ';'

// Loader reads detail exports.
type Loader struct {
	// DropZero removes lines whose summed amount is zero, as the legacy tooling did.
	DropZero bool

	log zerolog.Logger
}

// NewLoader creates a loader that keeps zero-amount lines.
func NewLoader() *Loader {
	return &Loader{log: logger.WithComponent("detail-loader")}
}

// Result is the outcome of loading a directory.
type Result struct {
	Lines       []models.DetailLine
	Files       int // files loaded successfully
	SkippedRows int
	// Failures lists files that could not be loaded and rows skipped within loaded files.
	Failures []models.Failure
}

// row is one parsed record before aggregation.
type row struct {
	invoice     string
	origin      string
	description string
	amount      decimal.Decimal
	file        string
	path        string
}

// LoadDir loads every detail file directly under dir. Files that cannot be read and rows with
// an unreadable amount are collected as failures; the call fails only when the directory is
// empty or no file could be loaded.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*Result, error) {
	const op = "LoadDir"

	paths, err := FindFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(paths) == 0 {
		return nil, &NoDetailFilesError{Dir: dir}
	}

	l.log.Info().Str("dir", dir).Int("files", len(paths)).Msg("Loading detail files")

	result := &Result{}
	var rows []row
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		fileRows, rowFailures, err := l.readFile(path)
		if err != nil {
			fileLog := logger.WithFile(l.log, path)
			fileLog.Warn().Err(err).Msg("Detail file skipped")
			result.Failures = append(result.Failures, models.Failure{
				Path:   path,
				Stage:  "details",
				Reason: err.Error(),
				Err:    err,
			})
			continue
		}

		result.Files++
		result.SkippedRows += len(rowFailures)
		result.Failures = append(result.Failures, rowFailures...)
		rows = append(rows, fileRows...)
	}

	if result.Files == 0 {
		return nil, fmt.Errorf("%s: %s: %d files failed: %w", op, dir, len(result.Failures), ErrNoUsableDetails)
	}

	result.Lines = l.aggregate(rows)

	l.log.Info().
		Int("files", result.Files).
		Int("failed_files", len(result.Failures)-result.SkippedRows).
		Int("rows", len(rows)).
		Int("lines", len(result.Lines)).
		Int("skipped_rows", result.SkippedRows).
		Msg("Detail files loaded")

	return result, nil
}

// LoadFile loads and aggregates a single detail file.
func (l *Loader) LoadFile(path string) ([]models.DetailLine, error) {
	rows, _, err := l.readFile(path)
	if err != nil {
		return nil, err
	}
	return l.aggregate(rows), nil
}

// FindFiles lists candidate detail files directly under dir, sorted by name. Hidden entries and
// subdirectories are ignored.
func FindFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read detail directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if IsCandidate(path) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// readFile parses one file. Rows with an unreadable amount are skipped and returned as failures.
func (l *Loader) readFile(path string) ([]row, []models.Failure, error) {
	const op = "readFile"

	schema, err := SchemaFor(path)
	if err != nil {
		return nil, nil, err
	}

	content, err := readContent(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	var records [][]string
	fixedWidth := schema.FixedWidth && !strings.ContainsRune(firstLine(content), Delimiter)
	if fixedWidth {
		records, err = splitFixedWidth(content)
	} else {
		records, err = splitDelimited(content)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %s: %w", op, path, err)
	}
	if len(records) == 0 {
		return nil, nil, &MissingColumnError{Path: path, Schema: schema.Name, Column: schema.Invoice}
	}

	index, err := columnIndex(records[0], schema)
	if err != nil {
		var mc *MissingColumnError
		if errors.As(err, &mc) {
			mc.Path = path
		}
		return nil, nil, err
	}

	log := logger.WithFile(l.log, path)
	file := filepath.Base(path)

	var rows []row
	var failures []models.Failure
	for i, rec := range records[1:] {
		rowNum := i + 2
		if blank(rec) {
			continue
		}

		r := row{
			invoice:     field(rec, index[0]),
			origin:      field(rec, index[1]),
			description: field(rec, index[3]),
			file:        file,
			path:        path,
		}

		rawAmount := field(rec, index[2])
		if !models.IsPlaceholder(rawAmount) {
			amount, err := parsing.ParseMoney(rawAmount)
			if err == nil && fixedWidth && !parsing.IsMoney(rawAmount) {
				err = fmt.Errorf("not a complete amount: %w", parsing.ErrInvalidAmount)
			}
			if err != nil {
				rowErr := &InvalidRowError{Path: path, Row: rowNum, Value: rawAmount, Err: err}
				log.Warn().Err(err).Int("row", rowNum).Str("value", rawAmount).Msg("Skipping detail row with invalid amount")
				failures = append(failures, models.Failure{
					Path:   path,
					Stage:  "details",
					Reason: rowErr.Error(),
					Err:    rowErr,
				})
				continue
			}
			r.amount = amount
		}

		rows = append(rows, r)
	}

	log.Debug().Str("schema", schema.Name).Bool("fixed_width", fixedWidth).Int("rows", len(rows)).Int("skipped", len(failures)).Msg("Detail file read")
	return rows, failures, nil
}

// aggregate sums rows per (invoice, origin, description) across files.
func (l *Loader) aggregate(rows []row) []models.DetailLine {
	type entry struct {
		line  models.DetailLine
		files map[string]bool
		paths map[string]bool
	}

	groups := make(map[[3]string]*entry)
	for _, r := range rows {
		key := [3]string{r.invoice, r.origin, r.description}
		e, ok := groups[key]
		if !ok {
			e = &entry{
				line: models.DetailLine{
					InvoiceNumber: r.invoice,
					Origin:        r.origin,
					Description:   r.description,
					Amount:        decimal.Zero,
				},
				files: make(map[string]bool),
				paths: make(map[string]bool),
			}
			groups[key] = e
		}
		e.line.Amount = e.line.Amount.Add(r.amount)
		e.files[r.file] = true
		e.paths[r.path] = true
	}

	lines := make([]models.DetailLine, 0, len(groups))
	dropped := 0
	for _, e := range groups {
		if l.DropZero && e.line.Amount.IsZero() {
			dropped++
			continue
		}
		e.line.SourceFiles = sortedKeys(e.files)
		e.line.SourcePaths = sortedKeys(e.paths)
		lines = append(lines, e.line)
	}

	sort.Slice(lines, func(i, j int) bool {
		a, b := lines[i].Key(), lines[j].Key()
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})

	if dropped > 0 {
		l.log.Debug().Int("dropped", dropped).Msg("Dropped zero-amount detail lines")
	}
	return lines
}

// readContent returns the file as UTF-8. Files that are not valid UTF-8 are decoded as
// ISO-8859-1.
func readContent(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), nil
	}

	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), charmap.ISO8859_1.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("failed to decode ISO-8859-1: %w", err)
	}
	return string(decoded), nil
}

func splitDelimited(content string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(content))
	r.Comma = Delimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse delimited file: %w", err)
	}
	return records, nil
}

type span struct{ from, to int }

func (s span) overlaps(o span) bool { return s.from < o.to && o.from < s.to }

// splitFixedWidth cuts a fixed-width export into fields. Column boundaries are the blank
// positions shared by the header and every row, so right-aligned values wider than their label
// stay whole. When the header labels cannot be separated that way, rows are split on runs of two
// or more spaces and must yield one field per label.
func splitFixedWidth(content string) ([][]string, error) {
	var lines [][]rune
	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, []rune(strings.TrimRight(line, " \t\r")))
		}
	}
	if len(lines) == 0 {
		return nil, nil
	}

	labels := nonBlankSpans(lines[0])

	width := 0
	for _, line := range lines {
		width = max(width, len(line))
	}
	occupied := make([]rune, width)
	for i := range occupied {
		occupied[i] = ' '
	}
	for _, line := range lines {
		for i, r := range line {
			if !unicode.IsSpace(r) {
				occupied[i] = 'x'
			}
		}
	}

	columns, ok := alignColumns(labels, nonBlankSpans(occupied))
	if !ok {
		return splitOnGaps(lines, len(labels))
	}

	records := make([][]string, 0, len(lines))
	for _, line := range lines {
		rec := make([]string, len(columns))
		for i, c := range columns {
			to := min(c.to, len(line))
			if c.from < to {
				rec[i] = strings.TrimSpace(string(line[c.from:to]))
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// alignColumns maps each occupied span to the header label it overlaps. Spans right of the last
// label extend the last column. Any other span makes the layout ambiguous.
func alignColumns(labels, spans []span) ([]span, bool) {
	columns := make([]span, len(labels))
	assigned := make([]bool, len(labels))

	for _, sp := range spans {
		col := -1
		for i, label := range labels {
			if sp.overlaps(label) {
				if col >= 0 {
					return nil, false
				}
				col = i
			}
		}
		if col < 0 {
			last := len(labels) - 1
			if last < 0 || sp.from < labels[last].to || !assigned[last] {
				return nil, false
			}
			col = last
		}

		if !assigned[col] {
			columns[col] = sp
			assigned[col] = true
			continue
		}
		columns[col].from = min(columns[col].from, sp.from)
		columns[col].to = max(columns[col].to, sp.to)
	}
	return columns, true
}

var wideGap = regexp.MustCompile(`\s{2,}`)

func splitOnGaps(lines [][]rune, fields int) ([][]string, error) {
	records := make([][]string, 0, len(lines))
	records = append(records, strings.Fields(string(lines[0])))
	for i, line := range lines[1:] {
		rec := wideGap.Split(strings.TrimSpace(string(line)), -1)
		if len(rec) != fields {
			return nil, fmt.Errorf("line %d has %d fields for %d columns: %w", i+2, len(rec), fields, ErrUnalignedColumns)
		}
		records = append(records, rec)
	}
	return records, nil
}

func nonBlankSpans(line []rune) []span {
	var spans []span
	for i, r := range line {
		if unicode.IsSpace(r) {
			continue
		}
		if len(spans) > 0 && spans[len(spans)-1].to == i {
			spans[len(spans)-1].to = i + 1
			continue
		}
		spans = append(spans, span{from: i, to: i + 1})
	}
	return spans
}

// columnIndex locates the schema columns in DetailLine order. Header names are compared
// without case or accents.
func columnIndex(header []string, schema Schema) ([4]int, error) {
	var index [4]int
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := parsing.Fold(strings.TrimSpace(h))
		if _, seen := positions[key]; !seen {
			positions[key] = i
		}
	}

	for i, col := range schema.Columns() {
		pos, ok := positions[parsing.Fold(col)]
		if !ok {
			return index, &MissingColumnError{Schema: schema.Name, Column: col}
		}
		index[i] = pos
	}
	return index, nil
}

func firstLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return strings.TrimSpace(rec[i])
	}
	return ""
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
