// Package crawler defines the domain types shared by the paginated crawl
// pipeline: page requests, cached pages, extracted records, the collaborator
// interfaces (fetcher, page cache, extractor, record writer) and the error
// taxonomy used to decide between retrying, skipping and aborting a run.
package crawler
