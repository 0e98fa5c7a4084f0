package crawler

import (
	"context"
	"time"
)

// Fetcher performs a single HTTP GET.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// PageCache persists raw page bodies keyed by page number.
type PageCache interface {
	Put(ctx context.Context, page int, body []byte) (CachedPage, error)
	Get(ctx context.Context, page CachedPage) ([]byte, error)
}

// Extractor turns raw markup into ordered records. Implementations must be
// pure functions of their input.
type Extractor interface {
	Extract(markup []byte) ([]Record, error)
}

// RecordWriter appends one page worth of records to an output sink.
// Implementations must be safe for concurrent use.
type RecordWriter interface {
	WritePage(ctx context.Context, result PageResult) error
	Close() error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
