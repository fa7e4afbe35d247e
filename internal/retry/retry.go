// Package retry repeats a call until its result is acceptable or a wait
// budget runs out. Sleep intervals come from an exponential backoff capped
// by a ceiling.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrTimeout is returned when the wait budget is exhausted while the
// predicate still asks for another attempt.
var ErrTimeout = errors.New("retry: wait budget exhausted")

// Options controls the attempt cadence.
type Options struct {
	// Sleep is the interval before the second attempt.
	Sleep time.Duration
	// Ceiling caps the interval between attempts.
	Ceiling time.Duration
	// Multiplier grows the interval after each attempt. Values below 1 are
	// treated as 1 (constant interval).
	Multiplier float64
	// MaxWait is the overall budget measured from the first attempt. Zero
	// means no budget.
	MaxWait time.Duration

	// clock replaces the wall clock in tests.
	clock backoff.Clock
}

func (o Options) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.Sleep
	b.MaxInterval = o.Ceiling
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.Multiplier = o.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	b.RandomizationFactor = 0
	b.MaxElapsedTime = o.MaxWait
	if o.clock != nil {
		b.Clock = o.clock
	}
	b.Reset()
	return b
}

// OnResult calls fn until shouldRetry reports false for its result, and
// returns that result. If the budget in opts runs out first, OnResult stops
// without calling fn again and returns the last result with ErrTimeout. If
// ctx is done, it returns the last result with the context's error.
func OnResult[T any](ctx context.Context, fn func(context.Context) (T, error), shouldRetry func(T, error) bool, opts Options) (T, error) {
	b := backoff.WithContext(opts.backOff(), ctx)

	for {
		result, err := fn(ctx)
		if !shouldRetry(result, err) {
			return result, err
		}

		next := b.NextBackOff()
		if next == backoff.Stop {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			return result, ErrTimeout
		}

		timer := time.NewTimer(next)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}
}
