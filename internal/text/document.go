// Package text turns raw invoice files into page-ordered, cleaned lines.
//
// PDFs are read through their embedded text layer. Text exports (.txt) are read as-is, with form
// feeds separating pages. Every line is NFC-normalized, non-breaking spaces become plain spaces,
// runs of blanks collapse to one and empty lines are dropped, so that the layout rules can match
// labels literally.
package text

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// Source tells how the document text was obtained.
type Source string

const (
	SourcePDF  Source = "pdf"
	SourceOCR  Source = "ocr"
	SourceText Source = "text"
)

// Document is the normalized text of one invoice file.
type Document struct {
	Path   string
	Source Source
	Pages  [][]string
}

// Lines returns all lines of all pages in reading order.
func (d *Document) Lines() []string {
	var lines []string
	for _, page := range d.Pages {
		lines = append(lines, page...)
	}
	return lines
}

// Text returns the lines joined by newlines.
func (d *Document) Text() string {
	return strings.Join(d.Lines(), "\n")
}

// Empty reports whether the document has no text at all.
func (d *Document) Empty() bool {
	for _, page := range d.Pages {
		if len(page) > 0 {
			return false
		}
	}
	return true
}

// NormalizePage splits raw page text into cleaned, non-empty lines.
func NormalizePage(raw string) []string {
	raw = norm.NFC.String(raw)
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.ReplaceAll(line, "\u00a0", " ")
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// NormalizePages applies NormalizePage to every page.
func NormalizePages(raw []string) [][]string {
	pages := make([][]string, 0, len(raw))
	for _, p := range raw {
		pages = append(pages, NormalizePage(p))
	}
	return pages
}

// SplitTextPages splits a text export on form feeds. Exports that are not valid UTF-8 are
// decoded as ISO-8859-1, the encoding of the vendor's legacy downloads.
func SplitTextPages(data []byte) []string {
	content := string(data)
	if !utf8.Valid(data) {
		if decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data); err == nil {
			content = string(decoded)
		}
	}
	content = strings.TrimPrefix(content, "\ufeff")
	return strings.Split(content, "\f")
}
