package text

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telbill/internal/ocr"
)

func TestNormalizePage(t *testing.T) {
	raw := "  FATURA N   000123 \r\n\r\n\tVALOR A PAGAR R$ 89,90\n   \nEmissão em 10/05/2024"

	lines := NormalizePage(raw)

	assert.Equal(t, []string{
		"FATURA N 000123",
		"VALOR A PAGAR R$ 89,90",
		"Emissão em 10/05/2024",
	}, lines)
}

func TestSplitTextPages(t *testing.T) {
	pages := SplitTextPages([]byte("page one\fpage two\f"))
	assert.Equal(t, []string{"page one", "page two", ""}, pages)
}

func TestSplitTextPagesLatin1(t *testing.T) {
	// "NÚMERO" in ISO-8859-1
	data := []byte{'N', 0xDA, 'M', 'E', 'R', 'O'}
	pages := SplitTextPages(data)
	require.Len(t, pages, 1)
	assert.Equal(t, "NÚMERO", pages[0])
}

func TestDocument(t *testing.T) {
	doc := &Document{Pages: [][]string{{"a", "b"}, {}, {"c"}}}
	assert.Equal(t, []string{"a", "b", "c"}, doc.Lines())
	assert.Equal(t, "a\nb\nc", doc.Text())
	assert.False(t, doc.Empty())
	assert.True(t, (&Document{Pages: [][]string{{}, {}}}).Empty())
}

func TestReadTextExport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fatura.TXT")
	require.NoError(t, os.WriteFile(path, []byte("CHEGOU SUA FATURA DA OI\n\fNÚMERO DA FATURA: 9\n"), 0o644))

	doc, err := NewNormalizer(nil).Read(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, SourceText, doc.Source)
	assert.Equal(t, [][]string{{"CHEGOU SUA FATURA DA OI"}, {"NÚMERO DA FATURA: 9"}}, doc.Pages)
}

func TestReadUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fatura.docx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := NewNormalizer(nil).Read(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadCorruptPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0o644))

	_, err := NewNormalizer(nil).Read(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("a/b/FATURA.PDF"))
	assert.True(t, IsSupported("export.txt"))
	assert.False(t, IsSupported("detalhe.csv"))
}

func TestJoinRow(t *testing.T) {
	row := []pdf.Text{
		{S: "PAGAR", X: 50, W: 30, FontSize: 10},
		{S: "VALOR", X: 0, W: 30, FontSize: 10},
		{S: "A", X: 35, W: 8, FontSize: 10},
		{S: "(R$)", X: 81, W: 20, FontSize: 10},
	}

	assert.Equal(t, "VALOR A PAGAR(R$)", joinRow(row))
}

type stubOCR struct {
	pages []string
}

func (s *stubOCR) ProcessPDF(ctx context.Context, r io.Reader) (*ocr.OCRResult, error) {
	_, _ = io.ReadAll(r)
	return &ocr.OCRResult{Pages: s.pages}, nil
}

func (s *stubOCR) Close() error { return nil }

func TestReadWithOCR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	n := NewNormalizer(&stubOCR{pages: []string{"Contrato Agrupador: 77\n", " Fatura: 5 "}})
	doc, err := n.readWithOCR(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, SourceOCR, doc.Source)
	assert.Equal(t, []string{"Contrato Agrupador: 77", "Fatura: 5"}, doc.Lines())
}
