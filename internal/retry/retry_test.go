// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances virtual time on Sleep and records every wait.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func TestBackoff(t *testing.T) {
	old := BaseDelay
	BaseDelay = time.Second
	defer func() { BaseDelay = old }()

	assert.Equal(t, 1*time.Second, Backoff(0))
	assert.Equal(t, 2*time.Second, Backoff(1))
	assert.Equal(t, 4*time.Second, Backoff(2))
	assert.Equal(t, 8*time.Second, Backoff(3))
	assert.Equal(t, 1*time.Second, Backoff(-1))
}

func TestPoll_ImmediateSuccess(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	ok, err := Poll(context.Background(), clock, time.Second, 10*time.Second, func(context.Context) (bool, error) {
		return true, nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, clock.sleeps)
}

func TestPoll_SucceedsAfterSeveralChecks(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	calls := 0
	ok, err := Poll(context.Background(), clock, time.Second, 10*time.Second, func(context.Context) (bool, error) {
		calls++
		return calls == 4, nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, clock.sleeps)
}

func TestPoll_TimesOut(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	calls := 0
	ok, err := Poll(context.Background(), clock, 2*time.Second, 5*time.Second, func(context.Context) (bool, error) {
		calls++
		return false, nil
	})
	require.NoError(t, err)
	assert.False(t, ok)
	// Checks at t=0, 2, 4, 5; the last wait is clipped to the deadline.
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, time.Second}, clock.sleeps)
}

func TestPoll_ConditionError(t *testing.T) {
	boom := errors.New("boom")
	ok, err := Poll(context.Background(), &fakeClock{}, time.Second, time.Minute, func(context.Context) (bool, error) {
		return false, boom
	})
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestPoll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok, err := Poll(ctx, &fakeClock{}, time.Second, time.Minute, func(context.Context) (bool, error) {
		return false, nil
	})
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRealClockSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := RealClock.Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRealClockSleep_Elapses(t *testing.T) {
	start := time.Now()
	require.NoError(t, RealClock.Sleep(context.Background(), 5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}
