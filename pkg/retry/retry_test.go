package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/sync-engine/pkg/apperrors"
)

var errRateLimited = errors.New("rate limited")

func alwaysRetry(error) bool { return true }

func isRateLimited(err error) bool { return errors.Is(err, errRateLimited) }

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultPolicy(), alwaysRetry, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesThenSucceeds_WithDoublingDelay(t *testing.T) {
	p := &Policy{MaxAttempts: 3, InitialDelay: 20 * time.Millisecond, Multiplier: 2.0}

	calls := 0
	var attemptTimes []time.Time
	err := Do(context.Background(), p, isRateLimited, func() error {
		attemptTimes = append(attemptTimes, time.Now())
		calls++
		if calls <= 2 {
			return errRateLimited
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	// Two delayed retries, the second delay double the first.
	first := attemptTimes[1].Sub(attemptTimes[0])
	second := attemptTimes[2].Sub(attemptTimes[1])
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)
	assert.GreaterOrEqual(t, second, 40*time.Millisecond)
}

func TestDo_NonRetryableSurfacedImmediately(t *testing.T) {
	terminal := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), DefaultPolicy(), isRateLimited, func() error {
		calls++
		return terminal
	})
	require.Error(t, err)
	assert.Equal(t, terminal, err)
	assert.Equal(t, 1, calls)
	assert.False(t, errors.Is(err, apperrors.ErrExhaustedRetries))
}

func TestDo_ExhaustedRetries(t *testing.T) {
	p := &Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2.0}

	calls := 0
	err := Do(context.Background(), p, isRateLimited, func() error {
		calls++
		return errRateLimited
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, apperrors.ErrExhaustedRetries)
	assert.ErrorIs(t, err, errRateLimited)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	p := &Policy{MaxAttempts: 3, InitialDelay: 5 * time.Second, Multiplier: 2.0}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	calls := 0
	err := Do(ctx, p, isRateLimited, func() error {
		calls++
		return errRateLimited
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_NilPolicyUsesDefaults(t *testing.T) {
	err := Do(context.Background(), nil, alwaysRetry, func() error { return nil })
	require.NoError(t, err)
}

func TestDoWithResult(t *testing.T) {
	p := &Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, Multiplier: 2.0}

	calls := 0
	got, err := DoWithResult(context.Background(), p, isRateLimited, func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errRateLimited
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}
