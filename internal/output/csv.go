package output

import (
	"context"
	"encoding/csv"
	"os"
	"sync"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
)

// csvWriter writes the header once when opened; every page appends rows.
type csvWriter struct {
	mu   sync.Mutex
	path string
	file *os.File
	enc  *csv.Writer
}

func newCSVWriter(path string, columns []string) (*csvWriter, error) {
	f, err := createTruncated(path)
	if err != nil {
		return nil, err
	}
	enc := csv.NewWriter(f)
	if err := enc.Write(columns); err != nil {
		_ = f.Close()
		return nil, &crawler.StorageError{Op: "write csv header", Path: path, Err: err}
	}
	enc.Flush()
	if err := enc.Error(); err != nil {
		_ = f.Close()
		return nil, &crawler.StorageError{Op: "write csv header", Path: path, Err: err}
	}
	return &csvWriter{path: path, file: f, enc: enc}, nil
}

func (w *csvWriter) WritePage(ctx context.Context, page crawler.PageResult) error {
	if err := ctx.Err(); err != nil {
		return &crawler.StorageError{Op: "write csv", Path: w.path, Err: err}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return &crawler.StorageError{Op: "write csv", Path: w.path, Err: errClosed}
	}
	for _, rec := range page.Records {
		if err := w.enc.Write([]string{rec.Primary, rec.Secondary}); err != nil {
			return &crawler.StorageError{Op: "write csv", Path: w.path, Err: err}
		}
	}
	w.enc.Flush()
	if err := w.enc.Error(); err != nil {
		return &crawler.StorageError{Op: "write csv", Path: w.path, Err: err}
	}
	return nil
}

func (w *csvWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	w.enc.Flush()
	flushErr := w.enc.Error()
	closeErr := w.file.Close()
	w.file = nil
	if flushErr != nil {
		return &crawler.StorageError{Op: "close csv", Path: w.path, Err: flushErr}
	}
	if closeErr != nil {
		return &crawler.StorageError{Op: "close csv", Path: w.path, Err: closeErr}
	}
	return nil
}
