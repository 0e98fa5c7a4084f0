package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError reports a failed fetch: either a connection level failure
// (StatusCode == 0) or a non-2xx response.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
	// Permanent marks failures that retrying cannot fix, such as a URL
	// disallowed by robots.txt.
	Permanent bool
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StorageError reports a cache or output write/read failure. Always fatal.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ExtractionError reports markup that does not have the expected shape.
type ExtractionError struct {
	Page   int
	Reason string
}

func (e *ExtractionError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("extract page %d: %s", e.Page, e.Reason)
	}
	return fmt.Sprintf("extract: %s", e.Reason)
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// IsFatal reports whether err must abort the run. Extraction errors are
// recovered per page; everything else is fatal once it reaches a worker.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var extractErr *ExtractionError
	return !errors.As(err, &extractErr)
}
