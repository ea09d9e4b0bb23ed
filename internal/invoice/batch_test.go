package invoice

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDocs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestFindDocuments(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"b.txt":            "x",
		"a.PDF":            "x",
		"notes.csv":        "x",
		".hidden.txt":      "x",
		".cache/c.txt":     "x",
		"2024-05/oi_1.txt": "x",
	})

	paths, err := FindDocuments(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "2024-05", "oi_1.txt"),
		filepath.Join(dir, "a.PDF"),
		filepath.Join(dir, "b.txt"),
	}, paths)
}

func TestExtractAllContinuesPastFailures(t *testing.T) {
	for _, workers := range []int{1, 3} {
		dir := writeDocs(t, map[string]string{
			"a.txt": telephoneContractDoc,
			"b.txt": "BOLETO DE OUTRA OPERADORA\nTOTAL 1,00",
			"c.txt": businessDoc,
			"d.txt": groupContractDoc,
		})
		paths, err := FindDocuments(dir)
		require.NoError(t, err)

		var mu sync.Mutex
		var calls int
		progress := func(done, total int, path string, err error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			assert.Equal(t, 4, total)
		}

		result, err := newTestExtractor().ExtractAll(context.Background(), paths, workers, progress)
		require.NoError(t, err)

		assert.Equal(t, 4, calls)
		require.Len(t, result.Records, 3)
		assert.Equal(t, "000123", result.Records[0].InvoiceNumber)
		assert.Equal(t, "0789", result.Records[1].InvoiceNumber)
		assert.Equal(t, "000000456", result.Records[2].InvoiceNumber)

		require.Len(t, result.Failures, 1)
		assert.Equal(t, filepath.Join(dir, "b.txt"), result.Failures[0].Path)
		assert.Equal(t, "extract", result.Failures[0].Stage)
		assert.ErrorIs(t, result.Failures[0].Err, ErrUnrecognizedLayout)
	}
}

func TestExtractAllUnreadableFile(t *testing.T) {
	dir := writeDocs(t, map[string]string{"broken.pdf": "not a pdf"})

	result, err := newTestExtractor().ExtractAll(context.Background(), []string{filepath.Join(dir, "broken.pdf")}, 1, nil)
	require.NoError(t, err)

	assert.Empty(t, result.Records)
	require.Len(t, result.Failures, 1)

	var docErr *DocumentError
	assert.ErrorAs(t, result.Failures[0].Err, &docErr)
}

func TestExtractAllCancelled(t *testing.T) {
	dir := writeDocs(t, map[string]string{"a.txt": telephoneContractDoc})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestExtractor().ExtractAll(ctx, []string{filepath.Join(dir, "a.txt")}, 2, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractAllEmpty(t *testing.T) {
	result, err := newTestExtractor().ExtractAll(context.Background(), nil, 4, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Empty(t, result.Failures)
}
