package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Immediate(5), isTransient, func(attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if attempt < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad input")
	calls := 0
	err := Do(context.Background(), Immediate(5), isTransient, func(int) error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Immediate(10), isTransient, func(int) error {
		calls++
		return errTransient
	})
	require.ErrorIs(t, err, ErrExhausted)
	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 10, calls)
}

func TestImmediateCountsTotalAttempts(t *testing.T) {
	for _, n := range []int{1, 3} {
		calls := 0
		err := Do(context.Background(), Immediate(n), isTransient, func(int) error {
			calls++
			return errTransient
		})
		require.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, n, calls, "Immediate(%d)", n)
	}
}

func TestDoWithBackoffInterval(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
	calls := 0
	err := Do(context.Background(), p, isTransient, func(int) error {
		calls++
		return errTransient
	})
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, calls)
}

func TestDoHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 50, InitialInterval: 10 * time.Millisecond, MaxInterval: 10 * time.Millisecond}
	calls := 0
	err := Do(ctx, p, isTransient, func(int) error {
		calls++
		cancel()
		return errTransient
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoNilRetryableNeverRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Immediate(4), nil, func(int) error {
		calls++
		return errTransient
	})
	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}
