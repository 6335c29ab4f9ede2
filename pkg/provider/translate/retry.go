package translate

import (
	"context"
	"time"
)

// Default retry schedule.
const (
	DefaultRetryBase   = 1 * time.Second
	DefaultRetryFactor = 2.0
	DefaultRetryCap    = 8 * time.Second
	DefaultMaxRetries  = 3
)

// RetryPolicy is an exponential backoff schedule for retryable failures.
type RetryPolicy struct {
	// Base is the delay before the first retry. Default: 1s.
	Base time.Duration

	// Factor multiplies the delay after every retry. Default: 2.
	Factor float64

	// Cap bounds any single delay. Default: 8s.
	Cap time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Default: 3. Negative disables retries.
	MaxRetries int
}

// DefaultRetryPolicy returns base 1s, factor 2, cap 8s, 3 retries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Base:       DefaultRetryBase,
		Factor:     DefaultRetryFactor,
		Cap:        DefaultRetryCap,
		MaxRetries: DefaultMaxRetries,
	}
}

// withDefaults fills zero fields from [DefaultRetryPolicy].
func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.Base <= 0 {
		p.Base = d.Base
	}
	if p.Factor < 1 {
		p.Factor = d.Factor
	}
	if p.Cap <= 0 {
		p.Cap = d.Cap
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = d.MaxRetries
	}
	return p
}

// Delay returns the wait before retry number retry (0-based).
func (p RetryPolicy) Delay(retry int) time.Duration {
	p = p.withDefaults()
	d := float64(p.Base)
	for range retry {
		d *= p.Factor
		if d >= float64(p.Cap) {
			return p.Cap
		}
	}
	return min(time.Duration(d), p.Cap)
}

// Retries returns the effective number of retries.
func (p RetryPolicy) Retries() int {
	p = p.withDefaults()
	return max(p.MaxRetries, 0)
}

// Do calls fn until it succeeds, fails with a non-retryable [ErrorKind], or
// the retry budget is spent. onRetry, when non-nil, is called before each
// wait with the retry number and the error that caused it.
//
// When ctx ends during a wait, Do returns an [*Error] of kind [ErrCancelled].
func Do[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error), onRetry func(retry int, err error)) (T, error) {
	retries := p.Retries()
	for retry := 0; ; retry++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !KindOf(err).Retryable() || retry >= retries {
			return v, err
		}

		if onRetry != nil {
			onRetry(retry, err)
		}
		t := time.NewTimer(p.Delay(retry))
		select {
		case <-ctx.Done():
			t.Stop()
			var zero T
			return zero, &Error{Kind: ErrCancelled, Err: ctx.Err()}
		case <-t.C:
		}
	}
}
