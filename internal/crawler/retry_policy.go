package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy decides how often a failed fetch is attempted again.
//
// With MaxAttempts == 0 the page is retried forever at a constant interval,
// which mirrors a crawler that must never drop a page. Any positive value caps
// the attempts and grows the wait exponentially up to MaxInterval.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

const (
	defaultMaxAttempts     = 5
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 10 * time.Second
)

// NewExponentialRetryPolicy builds the default capped policy. Config defaults
// are taken from it.
func NewExponentialRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     defaultMaxAttempts,
		InitialInterval: defaultInitialInterval,
		MaxInterval:     defaultMaxInterval,
	}
}

// Unbounded reports whether the policy retries forever.
func (p RetryPolicy) Unbounded() bool {
	return p.MaxAttempts <= 0
}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	initial := p.InitialInterval
	if initial <= 0 {
		initial = defaultInitialInterval
	}
	if p.Unbounded() {
		return backoff.WithContext(backoff.NewConstantBackOff(initial), ctx)
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initial
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
}

// Do runs op until it succeeds, the context ends or the attempts run out.
// notify, when set, is called before every wait with the error that caused
// it. The last error is returned when attempts are exhausted; a permanent
// TransportError is returned immediately.
func (p RetryPolicy) Do(ctx context.Context, op func() error, notify func(err error, wait time.Duration)) error {
	var n backoff.Notify
	if notify != nil {
		n = backoff.Notify(notify)
	}
	guarded := func() error {
		err := op()
		var te *TransportError
		if errors.As(err, &te) && te.Permanent {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(guarded, p.newBackOff(ctx), n)
}
