package navigator

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/3leaps/nimbusview/pkg/provider"
)

// RetryPolicy bounds retries of transient listing failures.
type RetryPolicy struct {
	MaxAttempts  int           // total attempts, including the first
	InitialDelay time.Duration // wait before the second attempt
	MaxDelay     time.Duration // cap on any single wait
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  4,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

// backoff returns the wait after the given failed attempt (1-based): the
// doubled delay capped at MaxDelay, with up to 20% jitter either way.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	wait := p.InitialDelay << (attempt - 1)
	if wait <= 0 || (p.MaxDelay > 0 && wait > p.MaxDelay) {
		wait = p.MaxDelay
	}
	if wait <= 0 {
		return 0
	}
	jitter := time.Duration(float64(wait) * 0.2 * (rand.Float64()*2 - 1))
	return wait + jitter
}

// do runs fn until it succeeds, fails with a non-retryable error, exhausts
// MaxAttempts or ctx ends. onRetry is called before each wait.
func (p RetryPolicy) do(ctx context.Context, fn func() error, onRetry func(attempt int, wait time.Duration, err error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !provider.IsRetryable(err) || attempt == attempts {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := p.backoff(attempt)
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
