// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry provides the backoff schedule, a cancellable clock, and a
// poll-until-true primitive shared by the session manager, the CAPTCHA
// gate, the download resolver, and the orchestrator.
package retry

import (
	"context"
	"math"
	"time"
)

// BaseDelay controls the base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var BaseDelay = 1 * time.Second

// Backoff returns the wait before retry number attempt: BaseDelay * 2^attempt.
// With the default base that is 2s, 4s, 8s for attempts 1, 2, 3.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return time.Duration(math.Pow(2, float64(attempt))) * BaseDelay
}

// Clock is the time source for every wait in the pipeline.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock is the wall clock.
var RealClock Clock = realClock{}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Condition is evaluated by Poll. A non-nil error aborts polling.
type Condition func(ctx context.Context) (bool, error)

// Poll evaluates cond every interval until it returns true, the timeout
// elapses, or ctx is done. It returns (true, nil) once cond holds and
// (false, nil) on timeout. cond is always evaluated at least once.
func Poll(ctx context.Context, clock Clock, interval, timeout time.Duration, cond Condition) (bool, error) {
	if clock == nil {
		clock = RealClock
	}
	deadline := clock.Now().Add(timeout)
	for {
		ok, err := cond(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if !clock.Now().Before(deadline) {
			return false, nil
		}
		wait := interval
		if remaining := deadline.Sub(clock.Now()); remaining < wait {
			wait = remaining
		}
		if err := clock.Sleep(ctx, wait); err != nil {
			return false, err
		}
	}
}
