// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrytest provides a virtual clock for tests of code that waits.
package retrytest

import (
	"context"
	"time"
)

// Clock is a retry.Clock whose Sleep advances virtual time instantly and
// records the requested duration.
type Clock struct {
	T      time.Time
	Sleeps []time.Duration
}

// NewClock returns a clock starting at a fixed instant.
func NewClock() *Clock {
	return &Clock{T: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time { return c.T }

func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Sleeps = append(c.Sleeps, d)
	c.T = c.T.Add(d)
	return nil
}

// Total returns the sum of all recorded sleeps.
func (c *Clock) Total() time.Duration {
	var sum time.Duration
	for _, d := range c.Sleeps {
		sum += d
	}
	return sum
}
