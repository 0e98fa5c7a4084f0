package output

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
)

const jsonIndent = "    "

// jsonWriter appends one object per page, mapping primary to secondary in
// record order. Objects are separated by a newline, so the file is a JSON
// stream rather than a single document.
type jsonWriter struct {
	mu   sync.Mutex
	path string
	file *os.File
}

func newJSONWriter(path string) (*jsonWriter, error) {
	f, err := createTruncated(path)
	if err != nil {
		return nil, err
	}
	return &jsonWriter{path: path, file: f}, nil
}

func (w *jsonWriter) WritePage(ctx context.Context, page crawler.PageResult) error {
	if err := ctx.Err(); err != nil {
		return &crawler.StorageError{Op: "write json", Path: w.path, Err: err}
	}
	doc, err := encodePage(page.Records)
	if err != nil {
		return &crawler.StorageError{Op: "encode json", Path: w.path, Err: err}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return &crawler.StorageError{Op: "write json", Path: w.path, Err: errClosed}
	}
	if _, err := w.file.Write(doc); err != nil {
		return &crawler.StorageError{Op: "write json", Path: w.path, Err: err}
	}
	return nil
}

func (w *jsonWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return &crawler.StorageError{Op: "close json", Path: w.path, Err: err}
	}
	return nil
}

// encodePage renders records as an indented object whose key order follows
// the records. encoding/json sorts map keys, so the object is assembled here.
func encodePage(records []crawler.Record) ([]byte, error) {
	if len(records) == 0 {
		return []byte("{}\n"), nil
	}
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, rec := range records {
		key, err := encodeString(rec.Primary)
		if err != nil {
			return nil, err
		}
		value, err := encodeString(rec.Secondary)
		if err != nil {
			return nil, err
		}
		buf.WriteString(jsonIndent)
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(value)
		if i < len(records)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func encodeString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
