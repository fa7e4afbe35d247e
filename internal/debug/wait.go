package debug

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/ctagard/cdbg/internal/retry"
	"github.com/ctagard/cdbg/pkg/types"
)

// Default poll cadence of WaitForCompletion.
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultPollCeiling  = time.Second
)

// WaitOptions controls WaitForCompletion.
type WaitOptions struct {
	// Timeout bounds the wait, measured from the first poll. Zero waits
	// until the breakpoint completes or ctx is done.
	Timeout time.Duration
	// PollInterval is the sleep after the first poll. Defaults to
	// DefaultPollInterval.
	PollInterval time.Duration
	// Ceiling caps the sleep between polls. Defaults to DefaultPollCeiling.
	Ceiling time.Duration
}

// WaitForCompletion polls a breakpoint until it reaches its final state and
// returns it. When opts.Timeout elapses first it returns (nil, nil); the
// caller decides how to report a breakpoint that is still pending. Remote
// errors end the wait immediately.
func (t *Target) WaitForCompletion(ctx context.Context, id string, opts WaitOptions) (*Record, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Ceiling <= 0 {
		opts.Ceiling = DefaultPollCeiling
	}

	polls := 0
	bp, err := retry.OnResult(ctx,
		func(ctx context.Context) (*types.Breakpoint, error) {
			polls++
			return t.get(ctx, id)
		},
		func(bp *types.Breakpoint, err error) bool {
			return err == nil && !bp.IsFinalState
		},
		retry.Options{
			Sleep:   opts.PollInterval,
			Ceiling: opts.Ceiling,
			MaxWait: opts.Timeout,
		})
	if stderrors.Is(err, retry.ErrTimeout) {
		t.logger.Debug("breakpoint still pending", "id", id, "polls", polls, "timeout", opts.Timeout)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t.decorate(bp), nil
}
