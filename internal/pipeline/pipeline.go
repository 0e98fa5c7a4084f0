package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
	"github.com/JakeFAU/pagecrawl/internal/metrics"
	"github.com/JakeFAU/pagecrawl/internal/policy/ratelimit"
	"github.com/JakeFAU/pagecrawl/internal/queue/memory"
)

const (
	poolGenerate = "generate"
	poolFetch    = "fetch"
	poolExtract  = "extract"

	queueURLs  = "urls"
	queuePages = "pages"
)

// Config sizes the pools and paces the stages.
type Config struct {
	BaseURL         string
	NumPages        int
	GenerateWorkers int
	FetchWorkers    int
	ExtractWorkers  int
	QueueCapacity   int
	GenerateDelay   time.Duration
	FetchDelay      time.Duration
	Retry           crawler.RetryPolicy
}

// Validate checks the pool sizes and page count. Zero pages is a valid,
// empty crawl.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return &crawler.ConfigError{Field: "url", Reason: "is required"}
	}
	if c.NumPages < 0 {
		return &crawler.ConfigError{Field: "num_pages", Reason: fmt.Sprintf("must not be negative, got %d", c.NumPages)}
	}
	checks := []struct {
		field string
		value int
	}{
		{"workers.put", c.GenerateWorkers},
		{"workers.save", c.FetchWorkers},
		{"workers.parse", c.ExtractWorkers},
		{"queue.capacity", c.QueueCapacity},
	}
	for _, chk := range checks {
		if chk.value < 1 {
			return &crawler.ConfigError{Field: chk.field, Reason: fmt.Sprintf("must be at least 1, got %d", chk.value)}
		}
	}
	if c.GenerateDelay < 0 || c.FetchDelay < 0 {
		return &crawler.ConfigError{Field: "throttle", Reason: "delays must not be negative"}
	}
	return nil
}

// Deps bundles the collaborators a Coordinator drives.
type Deps struct {
	Fetcher   crawler.Fetcher
	Cache     crawler.PageCache
	Extractor crawler.Extractor
	Writer    crawler.RecordWriter
	Logger    *zap.Logger
}

// Coordinator runs a crawl either concurrently or page by page.
// A Coordinator is single use.
type Coordinator struct {
	cfg       Config
	fetcher   crawler.Fetcher
	cache     crawler.PageCache
	extractor crawler.Extractor
	writer    crawler.RecordWriter
	logger    *zap.Logger
	throttle  *ratelimit.Limiter

	records atomic.Int64
}

// New validates cfg and wires the collaborators.
func New(cfg Config, deps Deps) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case deps.Cache == nil:
		return nil, errors.New("page cache is required")
	case deps.Extractor == nil:
		return nil, errors.New("extractor is required")
	case deps.Writer == nil:
		return nil, errors.New("record writer is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Coordinator{
		cfg:       cfg,
		fetcher:   deps.Fetcher,
		cache:     deps.Cache,
		extractor: deps.Extractor,
		writer:    deps.Writer,
		logger:    logger.Named("pipeline"),
		throttle:  ratelimit.New(poolGenerate, cfg.GenerateDelay),
	}, nil
}

// RecordsWritten returns the number of records handed to the writer so far.
func (c *Coordinator) RecordsWritten() int64 {
	return c.records.Load()
}

// Run executes the concurrent pipeline and returns the final record count.
// The first fatal error stops every pool and is returned.
func (c *Coordinator) Run(ctx context.Context) (int64, error) {
	urls := memory.NewQueue[crawler.PageRequest](c.cfg.QueueCapacity)
	pages := memory.NewQueue[crawler.CachedPage](c.cfg.QueueCapacity)

	c.logger.Info("Starting concurrent crawl",
		zap.String("base_url", c.cfg.BaseURL),
		zap.Int("num_pages", c.cfg.NumPages),
		zap.Int("generate_workers", c.cfg.GenerateWorkers),
		zap.Int("fetch_workers", c.cfg.FetchWorkers),
		zap.Int("extract_workers", c.cfg.ExtractWorkers),
		zap.Int("queue_capacity", c.cfg.QueueCapacity),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.runPool(gctx, poolGenerate, c.cfg.GenerateWorkers, func(ctx context.Context, worker int) error {
			return c.generate(ctx, worker, urls)
		}); err != nil {
			return err
		}
		return urls.Stop(gctx)
	})
	g.Go(func() error {
		if err := c.runPool(gctx, poolFetch, c.cfg.FetchWorkers, func(ctx context.Context, worker int) error {
			return c.fetchLoop(ctx, worker, urls, pages)
		}); err != nil {
			return err
		}
		return pages.Stop(gctx)
	})
	g.Go(func() error {
		return c.runPool(gctx, poolExtract, c.cfg.ExtractWorkers, func(ctx context.Context, worker int) error {
			return c.extractLoop(ctx, worker, pages)
		})
	})

	if err := g.Wait(); err != nil {
		c.logger.Error("Crawl aborted", zap.Error(err), zap.Int64("records_written", c.records.Load()))
		return c.records.Load(), err
	}
	c.logger.Info("Crawl finished", zap.Int64("records_written", c.records.Load()))
	return c.records.Load(), nil
}

// RunSequential fetches, caches, extracts and writes pages 1..N in order.
func (c *Coordinator) RunSequential(ctx context.Context) (int64, error) {
	c.logger.Info("Starting sequential crawl",
		zap.String("base_url", c.cfg.BaseURL),
		zap.Int("num_pages", c.cfg.NumPages),
	)
	for n := 1; n <= c.cfg.NumPages; n++ {
		req := crawler.PageRequest{URL: crawler.PageURL(c.cfg.BaseURL, n), PageNumber: n}
		cached, err := c.fetchPage(ctx, req)
		if err != nil {
			return c.records.Load(), err
		}
		if err := c.processPage(ctx, cached); err != nil {
			return c.records.Load(), err
		}
	}
	c.logger.Info("Crawl finished", zap.Int64("records_written", c.records.Load()))
	return c.records.Load(), nil
}

// runPool starts size workers and waits for all of them. A failing worker
// cancels its siblings so the pool returns promptly.
func (c *Coordinator) runPool(ctx context.Context, pool string, size int, work func(ctx context.Context, worker int) error) error {
	workers, wctx := errgroup.WithContext(ctx)
	for i := 0; i < size; i++ {
		worker := i
		workers.Go(func() error {
			metrics.IncActiveWorkers(pool)
			defer metrics.DecActiveWorkers(pool)
			return work(wctx, worker)
		})
	}
	if err := workers.Wait(); err != nil {
		return fmt.Errorf("%s pool: %w", pool, err)
	}
	c.logger.Debug("Pool drained", zap.String("pool", pool))
	return nil
}
