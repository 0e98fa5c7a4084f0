// Package memory keeps cached pages in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
	"github.com/JakeFAU/pagecrawl/internal/hash/sha256"
)

// PageCache stores page bodies in memory. Each page number may be written
// once; a second Put for the same page is a StorageError.
type PageCache struct {
	mu     sync.RWMutex
	pages  map[int][]byte
	hasher *sha256.Hasher
}

// NewPageCache creates an empty in-memory cache.
func NewPageCache() *PageCache {
	return &PageCache{
		pages:  make(map[int][]byte),
		hasher: sha256.New(),
	}
}

// Put stores a copy of body for page.
func (s *PageCache) Put(_ context.Context, page int, body []byte) (crawler.CachedPage, error) {
	uri := fmt.Sprintf("memory://%d", page)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pages[page]; exists {
		return crawler.CachedPage{}, &crawler.StorageError{Op: "cache put", Path: uri, Err: fmt.Errorf("page %d already cached", page)}
	}
	s.pages[page] = append([]byte(nil), body...)

	digest, err := s.hasher.Hash(body)
	if err != nil {
		return crawler.CachedPage{}, &crawler.StorageError{Op: "cache digest", Path: uri, Err: err}
	}
	return crawler.CachedPage{PageNumber: page, Location: uri, Digest: digest}, nil
}

// Get returns the stored body for page.
func (s *PageCache) Get(_ context.Context, page crawler.CachedPage) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.pages[page.PageNumber]
	s.mu.RUnlock()
	if !ok {
		return nil, &crawler.StorageError{Op: "cache get", Path: page.Location, Err: fmt.Errorf("page %d not cached", page.PageNumber)}
	}
	if err := s.hasher.Verify(data, page.Digest); err != nil {
		return nil, &crawler.StorageError{Op: "cache verify", Path: page.Location, Err: err}
	}
	return data, nil
}

// Len reports how many pages are cached.
func (s *PageCache) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}
