// Package local implements a filesystem-backed page cache.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
	"github.com/JakeFAU/pagecrawl/internal/hash/sha256"
)

// Config captures the parameters for the local page cache.
type Config struct {
	// BaseDir is the directory holding cached pages.
	BaseDir string
	// Filename is the prefix of every cached page file.
	Filename string
}

// PageCache writes raw page bodies to {BaseDir}/{Filename}{n}.html.
type PageCache struct {
	baseDir  string
	filename string
	hasher   *sha256.Hasher
}

// New creates the cache directory if needed and verifies it is writable.
func New(cfg Config) (*PageCache, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if strings.TrimSpace(cfg.Filename) == "" {
		return nil, fmt.Errorf("filename is required")
	}
	if strings.ContainsAny(cfg.Filename, `/\`) {
		return nil, fmt.Errorf("filename %q must not contain path separators", cfg.Filename)
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	probe := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &PageCache{
		baseDir:  cfg.BaseDir,
		filename: cfg.Filename,
		hasher:   sha256.New(),
	}, nil
}

// Path returns the file location for page n.
func (c *PageCache) Path(page int) string {
	return filepath.Join(c.baseDir, c.filename+strconv.Itoa(page)+".html")
}

// Put writes the body for page and returns its cache entry.
func (c *PageCache) Put(ctx context.Context, page int, body []byte) (crawler.CachedPage, error) {
	path := c.Path(page)
	if err := ctx.Err(); err != nil {
		return crawler.CachedPage{}, &crawler.StorageError{Op: "cache put", Path: path, Err: err}
	}
	if page < 1 {
		return crawler.CachedPage{}, &crawler.StorageError{
			Op:   "cache put",
			Path: path,
			Err:  fmt.Errorf("invalid page number %d", page),
		}
	}
	if err := c.contained(path); err != nil {
		return crawler.CachedPage{}, &crawler.StorageError{Op: "cache put", Path: path, Err: err}
	}
	if err := os.WriteFile(path, body, 0o600); err != nil {
		return crawler.CachedPage{}, &crawler.StorageError{Op: "cache put", Path: path, Err: err}
	}
	digest, err := c.hasher.Hash(body)
	if err != nil {
		return crawler.CachedPage{}, &crawler.StorageError{Op: "cache digest", Path: path, Err: err}
	}
	return crawler.CachedPage{PageNumber: page, Location: path, Digest: digest}, nil
}

// Get reads the cached body back.
func (c *PageCache) Get(ctx context.Context, page crawler.CachedPage) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &crawler.StorageError{Op: "cache get", Path: page.Location, Err: err}
	}
	if err := c.contained(page.Location); err != nil {
		return nil, &crawler.StorageError{Op: "cache get", Path: page.Location, Err: err}
	}
	// #nosec G304 -- location is verified to sit inside the cache directory.
	data, err := os.ReadFile(page.Location)
	if err != nil {
		return nil, &crawler.StorageError{Op: "cache get", Path: page.Location, Err: err}
	}
	if err := c.hasher.Verify(data, page.Digest); err != nil {
		return nil, &crawler.StorageError{Op: "cache verify", Path: page.Location, Err: err}
	}
	return data, nil
}

func (c *PageCache) contained(path string) error {
	cleanBase := filepath.Clean(c.baseDir)
	cleanPath := filepath.Clean(path)
	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected")
	}
	return nil
}
