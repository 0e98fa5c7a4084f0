package crawler

import "time"

// PageRequest asks the fetch pool to download one listing page.
type PageRequest struct {
	URL        string
	PageNumber int
}

// CachedPage references a response body persisted by the page cache.
type CachedPage struct {
	PageNumber int
	Location   string
	Digest     string
}

// Record is one extracted item. Order matters within a page only.
type Record struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// PageResult holds the records extracted from a single page, in page order.
type PageResult struct {
	PageNumber int
	Records    []Record
}

// FetchResponse is what a Fetcher returns for a completed round trip.
// Non-2xx responses are returned without an error; the caller decides.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the status code is in the 2xx range.
func (r FetchResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RunSummary captures the metadata written once at the end of a crawl.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	PagesRequested int       `json:"pages_requested"`
	RecordsWritten int64     `json:"records_written"`
}

// Duration returns the elapsed wall time of the run.
func (s RunSummary) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}
