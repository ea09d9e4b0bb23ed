package text

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"telbill/internal/logger"
	"telbill/internal/ocr"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither PDF nor text exports.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrUnreadable is returned when a PDF cannot be parsed.
	ErrUnreadable = errors.New("unreadable document")
)

// SupportedExtensions lists the invoice file types the normalizer reads.
var SupportedExtensions = []string{".pdf", ".txt"}

// IsSupported reports whether path has a readable invoice extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Normalizer reads invoice files into Documents.
type Normalizer struct {
	ocr ocr.OCRService
	log zerolog.Logger
}

// NewNormalizer creates a Normalizer. ocrService may be nil, in which case PDFs without a
// text layer produce an empty Document.
func NewNormalizer(ocrService ocr.OCRService) *Normalizer {
	return &Normalizer{
		ocr: ocrService,
		log: logger.WithComponent("text"),
	}
}

// Read loads and normalizes the document at path. The file is closed before Read returns.
func (n *Normalizer) Read(ctx context.Context, path string) (*Document, error) {
	const op = "Read"
	log := logger.WithFile(n.log, path)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &Document{
			Path:   path,
			Source: SourceText,
			Pages:  NormalizePages(SplitTextPages(data)),
		}, nil

	case ".pdf":
		raw, err := readPDFPages(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		doc := &Document{Path: path, Source: SourcePDF, Pages: NormalizePages(raw)}
		if !doc.Empty() {
			log.Debug().Int("pages", len(doc.Pages)).Msg("Read PDF text layer")
			return doc, nil
		}

		if n.ocr == nil {
			log.Warn().Msg("PDF has no text layer and OCR fallback is disabled")
			return doc, nil
		}

		log.Info().Msg("PDF has no text layer, falling back to OCR")
		return n.readWithOCR(ctx, path)

	default:
		return nil, fmt.Errorf("%s: %s: %w", op, filepath.Ext(path), ErrUnsupportedFormat)
	}
}

func (n *Normalizer) readWithOCR(ctx context.Context, path string) (*Document, error) {
	const op = "readWithOCR"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	result, err := n.ocr.ProcessPDF(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Document{
		Path:   path,
		Source: SourceOCR,
		Pages:  NormalizePages(result.Pages),
	}, nil
}

// readPDFPages extracts the text layer page by page. The pdf package panics on some
// malformed files, so panics are turned into ErrUnreadable.
func readPDFPages(path string) (pages []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", ErrUnreadable, rec)
		}
	}()

	// pdf.Open hands back the open file even when parsing fails
	f, r, err := pdf.Open(path)
	if f != nil {
		defer f.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		rows, err := p.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrUnreadable, i, err)
		}

		var b strings.Builder
		for _, row := range rows {
			b.WriteString(joinRow(row.Content))
			b.WriteByte('\n')
		}
		pages = append(pages, b.String())
	}

	return pages, nil
}

// joinRow concatenates the text runs of one row left to right, inserting a space where the
// horizontal gap between runs is wider than a fraction of the font size.
func joinRow(texts []pdf.Text) string {
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var b strings.Builder
	for i, t := range sorted {
		if i > 0 {
			prev := sorted[i-1]
			gap := t.X - (prev.X + prev.W)
			threshold := t.FontSize * 0.2
			if threshold <= 0 {
				threshold = 2.0
			}
			if gap > threshold && !strings.HasSuffix(b.String(), " ") && !strings.HasPrefix(t.S, " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
	}
	return b.String()
}
