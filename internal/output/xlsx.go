package output

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
)

const defaultSheet = "Sheet1"

// xlsxWriter builds one workbook in memory with a sheet per page and saves
// it on Close.
type xlsxWriter struct {
	mu      sync.Mutex
	path    string
	columns []string
	book    *excelize.File
	sheets  int
}

func newXLSXWriter(path string, columns []string) (*xlsxWriter, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, &crawler.StorageError{Op: "open output", Path: path, Err: err}
	}
	return &xlsxWriter{path: path, columns: columns, book: excelize.NewFile()}, nil
}

// SheetName returns the worksheet name for a page.
func SheetName(page int) string {
	return fmt.Sprintf("page %d", page)
}

func (w *xlsxWriter) WritePage(ctx context.Context, page crawler.PageResult) error {
	if err := ctx.Err(); err != nil {
		return &crawler.StorageError{Op: "write xlsx", Path: w.path, Err: err}
	}
	name := SheetName(page.PageNumber)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.book == nil {
		return &crawler.StorageError{Op: "write xlsx", Path: w.path, Err: errClosed}
	}
	if idx, err := w.book.GetSheetIndex(name); err == nil && idx >= 0 {
		return &crawler.StorageError{Op: "write xlsx", Path: w.path, Err: fmt.Errorf("sheet %q already written", name)}
	}
	if _, err := w.book.NewSheet(name); err != nil {
		return &crawler.StorageError{Op: "create sheet", Path: w.path, Err: err}
	}
	header := []interface{}{w.columns[0], w.columns[1]}
	if err := w.book.SetSheetRow(name, "A1", &header); err != nil {
		return &crawler.StorageError{Op: "write xlsx header", Path: w.path, Err: err}
	}
	for i, rec := range page.Records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return &crawler.StorageError{Op: "write xlsx", Path: w.path, Err: err}
		}
		row := []interface{}{rec.Primary, rec.Secondary}
		if err := w.book.SetSheetRow(name, cell, &row); err != nil {
			return &crawler.StorageError{Op: "write xlsx", Path: w.path, Err: err}
		}
	}
	w.sheets++
	return nil
}

// Close drops the placeholder sheet when pages were written and saves the
// workbook.
func (w *xlsxWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.book == nil {
		return nil
	}
	book := w.book
	w.book = nil
	defer book.Close() //nolint:errcheck // temp files only

	if w.sheets > 0 {
		if err := book.DeleteSheet(defaultSheet); err != nil {
			return &crawler.StorageError{Op: "close xlsx", Path: w.path, Err: err}
		}
		book.SetActiveSheet(0)
	}
	if err := book.SaveAs(w.path); err != nil {
		return &crawler.StorageError{Op: "save xlsx", Path: w.path, Err: err}
	}
	return nil
}
