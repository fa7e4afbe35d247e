package retry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func notDone(n int, err error) bool { return err == nil && n < 3 }

func TestOnResult_ReturnsFirstAcceptableResult(t *testing.T) {
	calls := 0
	got, err := OnResult(context.Background(), func(context.Context) (int, error) {
		calls++
		return calls, nil
	}, notDone, Options{Sleep: time.Millisecond, Ceiling: 2 * time.Millisecond})

	require.NoError(t, err)
	assert.Equal(t, 3, got)
	assert.Equal(t, 3, calls)
}

func TestOnResult_ErrorStopsWhenPredicateSaysSo(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := OnResult(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, boom
	}, notDone, Options{Sleep: time.Millisecond})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestOnResult_TimeoutStopsBeforeNextCall(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	calls := 0
	got, err := OnResult(context.Background(), func(context.Context) (int, error) {
		calls++
		clock.advance(time.Second)
		return 0, nil
	}, notDone, Options{
		Sleep:   time.Millisecond,
		Ceiling: time.Millisecond,
		MaxWait: 2500 * time.Millisecond,
		clock:   clock,
	})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 0, got)
	assert.Equal(t, 3, calls)
}

func TestOnResult_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := OnResult(ctx, func(context.Context) (int, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return 0, nil
	}, notDone, Options{Sleep: time.Millisecond})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls)
}

func TestOptions_BackOffGrowsToCeiling(t *testing.T) {
	b := Options{Sleep: 500 * time.Millisecond, Ceiling: time.Second, Multiplier: 1.5}.backOff()

	assert.Equal(t, 500*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 750*time.Millisecond, b.NextBackOff())
	assert.Equal(t, time.Second, b.NextBackOff())
	assert.Equal(t, time.Second, b.NextBackOff())
}

func TestOptions_ConstantWhenMultiplierUnset(t *testing.T) {
	b := Options{Sleep: 200 * time.Millisecond, Ceiling: time.Second}.backOff()

	for i := 0; i < 4; i++ {
		assert.Equal(t, 200*time.Millisecond, b.NextBackOff())
	}
}
