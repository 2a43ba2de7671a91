// Package retry runs an operation under a bounded backoff policy. It is used for
// transaction conflicts and for unique-code generation, where the caller decides
// which failures are worth another attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var ErrExhausted = errors.New("retry attempts exhausted")

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Jitter is the randomization factor applied to each interval (0..1).
	Jitter float64
}

// TxConflict mirrors the serialization-failure loop used for ledger writes:
// 75ms doubling up to 1.2s, eight tries.
var TxConflict = Policy{
	MaxAttempts:     8,
	InitialInterval: 75 * time.Millisecond,
	MaxInterval:     1200 * time.Millisecond,
	Jitter:          0.2,
}

// Immediate makes at most n attempts with no delay in between.
func Immediate(n int) Policy {
	return Policy{MaxAttempts: n}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if p.InitialInterval > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.InitialInterval
		eb.MaxInterval = p.MaxInterval
		if eb.MaxInterval < eb.InitialInterval {
			eb.MaxInterval = eb.InitialInterval
		}
		eb.Multiplier = 2.0
		eb.RandomizationFactor = p.Jitter
		eb.MaxElapsedTime = 0
		b = eb
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do calls op until it succeeds, returns an error retryable rejects, the
// context ends, or the policy runs out of attempts. In the last case the
// returned error wraps both ErrExhausted and op's final error.
func Do(ctx context.Context, p Policy, retryable func(error) bool, op func(attempt int) error) error {
	attempt := 0
	lastRetryable := false
	operation := func() error {
		attempt++
		err := op(attempt)
		if err == nil {
			return nil
		}
		if retryable == nil || !retryable(err) {
			lastRetryable = false
			return backoff.Permanent(err)
		}
		lastRetryable = true
		return err
	}

	err := backoff.Retry(operation, p.backOff(ctx))
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	if lastRetryable {
		return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
	}
	return err
}
