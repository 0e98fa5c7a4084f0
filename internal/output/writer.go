package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
)

// DefaultColumns is the header used by the tabular formats.
var DefaultColumns = []string{"primary", "secondary"}

// Config locates the output file.
type Config struct {
	Dir      string
	Filename string
	Columns  []string
}

// Path returns {Dir}/{Filename}{ext} for the format.
func (c Config) Path(f Format) string {
	return filepath.Join(c.Dir, c.Filename+f.Ext())
}

func (c Config) columns() []string {
	if len(c.Columns) != 2 {
		return DefaultColumns
	}
	return c.Columns
}

// New opens a writer for the format. Any existing output file is truncated.
func New(format Format, cfg Config) (crawler.RecordWriter, error) {
	if strings.TrimSpace(cfg.Filename) == "" {
		return nil, &crawler.ConfigError{Field: "filename", Reason: "is required"}
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, &crawler.StorageError{Op: "create output dir", Path: cfg.Dir, Err: err}
	}
	var (
		w   crawler.RecordWriter
		err error
	)
	switch format {
	case FormatJSON:
		w, err = newJSONWriter(cfg.Path(format))
	case FormatCSV:
		w, err = newCSVWriter(cfg.Path(format), cfg.columns())
	case FormatXLSX:
		w, err = newXLSXWriter(cfg.Path(format), cfg.columns())
	default:
		return nil, &crawler.ConfigError{Field: "format", Reason: fmt.Sprintf("unsupported format %s", format)}
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func createTruncated(path string) (*os.File, error) {
	// #nosec G304 -- path is built from configured output dir and filename.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, &crawler.StorageError{Op: "open output", Path: path, Err: err}
	}
	return f, nil
}

var errClosed = errors.New("writer closed")
