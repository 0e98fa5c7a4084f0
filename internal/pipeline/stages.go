package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
	"github.com/JakeFAU/pagecrawl/internal/metrics"
	"github.com/JakeFAU/pagecrawl/internal/policy/ratelimit"
	"github.com/JakeFAU/pagecrawl/internal/queue/memory"
)

// generate emits the pages n with (n-1) % GenerateWorkers == worker. All
// generators share one limiter, so the URL queue is fed at most once per
// GenerateDelay regardless of pool size.
func (c *Coordinator) generate(ctx context.Context, worker int, urls *memory.Queue[crawler.PageRequest]) error {
	for n := worker + 1; n <= c.cfg.NumPages; n += c.cfg.GenerateWorkers {
		if err := c.throttle.Wait(ctx); err != nil {
			return err
		}
		req := crawler.PageRequest{URL: crawler.PageURL(c.cfg.BaseURL, n), PageNumber: n}
		if err := urls.Enqueue(ctx, req); err != nil {
			return err
		}
		metrics.SetQueueDepth(queueURLs, urls.Len())
		c.logger.Debug("Queued page", zap.Int("worker", worker), zap.Int("page", n))
	}
	return nil
}

func (c *Coordinator) fetchLoop(
	ctx context.Context,
	worker int,
	urls *memory.Queue[crawler.PageRequest],
	pages *memory.Queue[crawler.CachedPage],
) error {
	for {
		req, err := urls.Dequeue(ctx)
		if errors.Is(err, memory.ErrStopped) {
			c.logger.Debug("Fetch worker done", zap.Int("worker", worker))
			return nil
		}
		if err != nil {
			return err
		}
		cached, err := c.fetchPage(ctx, req)
		if err != nil {
			return err
		}
		if err := pages.Enqueue(ctx, cached); err != nil {
			return err
		}
		metrics.SetQueueDepth(queuePages, pages.Len())
	}
}

func (c *Coordinator) extractLoop(ctx context.Context, worker int, pages *memory.Queue[crawler.CachedPage]) error {
	for {
		cached, err := pages.Dequeue(ctx)
		if errors.Is(err, memory.ErrStopped) {
			c.logger.Debug("Extract worker done", zap.Int("worker", worker))
			return nil
		}
		if err != nil {
			return err
		}
		if err := c.processPage(ctx, cached); err != nil {
			return err
		}
	}
}

// fetchPage downloads one page under the retry policy and caches the body.
func (c *Coordinator) fetchPage(ctx context.Context, req crawler.PageRequest) (crawler.CachedPage, error) {
	logger := c.logger.With(zap.Int("page", req.PageNumber), zap.String("url", req.URL))

	var resp crawler.FetchResponse
	attempt := 0
	op := func() error {
		attempt++
		if err := ratelimit.Pause(ctx, poolFetch, c.cfg.FetchDelay); err != nil {
			return err
		}
		r, err := c.fetcher.Fetch(ctx, req.URL)
		if err != nil {
			metrics.ObserveFetchAttempt(metrics.OutcomeTransportError)
			return err
		}
		if !r.OK() {
			metrics.ObserveFetchAttempt(metrics.OutcomeHTTPError)
			return &crawler.TransportError{URL: req.URL, StatusCode: r.StatusCode}
		}
		metrics.ObserveFetchAttempt(metrics.OutcomeOK)
		resp = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("Fetch failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	if err := c.cfg.Retry.Do(ctx, op, notify); err != nil {
		logger.Error("Giving up on page", zap.Int("attempts", attempt), zap.Error(err))
		return crawler.CachedPage{}, err
	}

	cached, err := c.cache.Put(ctx, req.PageNumber, resp.Body)
	if err != nil {
		return crawler.CachedPage{}, err
	}
	metrics.ObservePageCached(len(resp.Body))
	logger.Debug("Cached page",
		zap.String("location", cached.Location),
		zap.Int("bytes", len(resp.Body)),
		zap.Duration("fetch_duration", resp.Duration),
	)
	return cached, nil
}

// processPage extracts a cached page and hands the records to the writer.
// Markup that cannot be extracted still produces an empty page.
func (c *Coordinator) processPage(ctx context.Context, cached crawler.CachedPage) error {
	body, err := c.cache.Get(ctx, cached)
	if err != nil {
		return err
	}
	records, err := c.extractor.Extract(body)
	if err != nil {
		if crawler.IsFatal(err) {
			return err
		}
		var extractErr *crawler.ExtractionError
		errors.As(err, &extractErr)
		extractErr.Page = cached.PageNumber
		metrics.ObserveExtractionFailure()
		c.logger.Warn("Page yielded no records", zap.Int("page", cached.PageNumber), zap.Error(extractErr))
		records = nil
	}

	result := crawler.PageResult{PageNumber: cached.PageNumber, Records: records}
	if err := c.writer.WritePage(ctx, result); err != nil {
		return err
	}
	total := c.records.Add(int64(len(records)))
	metrics.AddRecordsWritten(len(records))
	c.logger.Debug("Wrote page",
		zap.Int("page", cached.PageNumber),
		zap.Int("records", len(records)),
		zap.Int64("records_written", total),
	)
	return nil
}
