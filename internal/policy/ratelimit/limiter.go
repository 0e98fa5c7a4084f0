// Package ratelimit spaces out pipeline work at fixed intervals.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/pagecrawl/internal/metrics"
)

// Limiter admits one event per interval across every caller sharing it.
type Limiter struct {
	stage   string
	limiter *rate.Limiter
}

// New creates a Limiter for stage. A non-positive interval never blocks.
func New(stage string, interval time.Duration) *Limiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Limiter{
		stage:   stage,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Wait blocks until the next slot is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveThrottleDelay(l.stage, waited)
	}
	return nil
}

// Pause sleeps for delay unless ctx ends first. Each caller pauses
// independently.
func Pause(ctx context.Context, stage string, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("pause canceled: %w", ctx.Err())
	case <-timer.C:
		metrics.ObserveThrottleDelay(stage, delay)
		return nil
	}
}
