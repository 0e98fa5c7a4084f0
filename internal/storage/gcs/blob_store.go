// Package gcs provides a PageCache backed by Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
	"github.com/JakeFAU/pagecrawl/internal/hash/sha256"
)

const contentTypeHTML = "text/html; charset=utf-8"

// Config captures the parameters required to address cached pages.
type Config struct {
	Bucket   string
	Prefix   string
	Filename string
}

// objectStore is the subset of the GCS client used by the cache.
type objectStore interface {
	NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

type clientStore struct {
	client *storage.Client
}

func (s clientStore) NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

func (s clientStore) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	return r, nil
}

// PageCache writes raw page bodies to gs://{Bucket}/{Prefix}/{Filename}{n}.html.
type PageCache struct {
	store    objectStore
	bucket   string
	prefix   string
	filename string
	hasher   *sha256.Hasher
}

// New creates a GCS-backed page cache.
func New(client *storage.Client, cfg Config) (*PageCache, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	return newWithStore(clientStore{client: client}, cfg)
}

func newWithStore(store objectStore, cfg Config) (*PageCache, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if strings.TrimSpace(cfg.Filename) == "" {
		return nil, fmt.Errorf("filename is required")
	}
	return &PageCache{
		store:    store,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		filename: cfg.Filename,
		hasher:   sha256.New(),
	}, nil
}

// ObjectName returns the object key for page n.
func (c *PageCache) ObjectName(page int) string {
	name := c.filename + strconv.Itoa(page) + ".html"
	if c.prefix == "" {
		return name
	}
	return path.Join(c.prefix, name)
}

// Put uploads the body for page and returns its cache entry.
func (c *PageCache) Put(ctx context.Context, page int, body []byte) (crawler.CachedPage, error) {
	object := c.ObjectName(page)
	uri := fmt.Sprintf("gs://%s/%s", c.bucket, object)
	if page < 1 {
		return crawler.CachedPage{}, &crawler.StorageError{
			Op:   "cache put",
			Path: uri,
			Err:  fmt.Errorf("invalid page number %d", page),
		}
	}

	writer := c.store.NewWriter(ctx, c.bucket, object, contentTypeHTML)
	if _, err := writer.Write(body); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			err = fmt.Errorf("%w (close writer: %v)", err, closeErr)
		}
		return crawler.CachedPage{}, &crawler.StorageError{Op: "cache put", Path: uri, Err: err}
	}
	if err := writer.Close(); err != nil {
		return crawler.CachedPage{}, &crawler.StorageError{Op: "cache put", Path: uri, Err: fmt.Errorf("close writer: %w", err)}
	}

	digest, err := c.hasher.Hash(body)
	if err != nil {
		return crawler.CachedPage{}, &crawler.StorageError{Op: "cache digest", Path: uri, Err: err}
	}
	return crawler.CachedPage{PageNumber: page, Location: uri, Digest: digest}, nil
}

// Get downloads the cached body for page.
func (c *PageCache) Get(ctx context.Context, page crawler.CachedPage) ([]byte, error) {
	object := c.ObjectName(page.PageNumber)
	uri := fmt.Sprintf("gs://%s/%s", c.bucket, object)
	reader, err := c.store.NewReader(ctx, c.bucket, object)
	if err != nil {
		return nil, &crawler.StorageError{Op: "cache get", Path: uri, Err: err}
	}
	defer reader.Close() //nolint:errcheck // read-only handle

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &crawler.StorageError{Op: "cache get", Path: uri, Err: err}
	}
	if err := c.hasher.Verify(data, page.Digest); err != nil {
		return nil, &crawler.StorageError{Op: "cache verify", Path: uri, Err: err}
	}
	return data, nil
}
