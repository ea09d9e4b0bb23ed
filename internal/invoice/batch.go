package invoice

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"telbill/internal/text"
	"telbill/pkg/models"
)

// BatchResult holds the outcome of extracting a folder of documents. Records keep the order
// of the input paths; failed documents are listed in Failures and do not stop the batch.
type BatchResult struct {
	Records  []models.InvoiceRecord
	Failures []models.Failure
}

// ProgressFunc is called after each document, serialized across workers.
type ProgressFunc func(done, total int, path string, err error)

type workerJob struct {
	Path  string
	Index int
}

type jobResult struct {
	Record *models.InvoiceRecord
	Err    error
}

// FindDocuments lists the readable invoice files under dir, sorted by path.
// Hidden files and directories are skipped.
func FindDocuments(dir string) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && text.IsSupported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("FindDocuments: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}

// ExtractAll extracts every path using a pool of workers. With workers <= 1 documents are
// processed sequentially. A cancelled context stops the batch and returns the context error.
func (e *Extractor) ExtractAll(ctx context.Context, paths []string, workers int, progress ProgressFunc) (*BatchResult, error) {
	const op = "ExtractAll"

	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) && len(paths) > 0 {
		workers = len(paths)
	}

	jobs := make(chan workerJob, len(paths))
	results := make([]jobResult, len(paths))

	var processedCount int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for job := range jobs {
				if ctx.Err() != nil {
					results[job.Index] = jobResult{Err: ctx.Err()}
					continue
				}

				e.log.Debug().
					Int("worker", workerID).
					Str("file", job.Path).
					Int("index", job.Index+1).
					Msg("Worker processing document")

				rec, err := e.ExtractFile(ctx, job.Path)
				results[job.Index] = jobResult{Record: rec, Err: err}

				mu.Lock()
				processedCount++
				if progress != nil {
					progress(processedCount, len(paths), job.Path, err)
				}
				mu.Unlock()
			}
		}(w)
	}

	for i, path := range paths {
		jobs <- workerJob{Path: path, Index: i}
	}
	close(jobs)

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	batch := &BatchResult{}
	for i, r := range results {
		if r.Err != nil {
			e.log.Error().Err(r.Err).Str("file", paths[i]).Msg("Document extraction failed")
			batch.Failures = append(batch.Failures, models.Failure{
				Path:   paths[i],
				Stage:  "extract",
				Reason: r.Err.Error(),
				Err:    r.Err,
			})
			continue
		}
		batch.Records = append(batch.Records, *r.Record)
	}

	e.log.Info().
		Int("total", len(paths)).
		Int("extracted", len(batch.Records)).
		Int("failed", len(batch.Failures)).
		Msg("Invoice extraction completed")

	return batch, nil
}
