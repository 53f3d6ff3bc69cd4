package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/relaycrm/sync-engine/pkg/apperrors"
)

// Policy defines bounded exponential-backoff retry behavior. There is no
// jitter: the remote API rate limit is per-token, so a single serialized
// caller gains nothing from spreading retries.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
}

// DefaultPolicy returns the defaults used against the Pipedrive API:
// 3 attempts, 2s initial delay, doubling each retry.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		Multiplier:   2.0,
	}
}

// Do executes fn up to p.MaxAttempts times, sleeping between attempts while
// shouldRetry reports the error as transient. A non-transient error is
// surfaced immediately without further attempts. When all attempts fail the
// last error is wrapped in apperrors.ErrExhaustedRetries.
// Backoff waits respect context cancellation.
func Do(ctx context.Context, p *Policy, shouldRetry func(error) bool, fn func() error) error {
	if p == nil {
		p = DefaultPolicy()
	}

	var lastErr error
	delay := p.InitialDelay

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return err
		}

		if attempt < p.MaxAttempts-1 {
			select {
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * p.Multiplier)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", apperrors.ErrExhaustedRetries, p.MaxAttempts, lastErr)
}

// DoWithResult is Do for functions that return a value.
func DoWithResult[T any](ctx context.Context, p *Policy, shouldRetry func(error) bool, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, p, shouldRetry, func() error {
		r, err := fn()
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}
