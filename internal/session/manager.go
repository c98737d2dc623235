// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session owns the lifecycle of the single browser session used by a
// run: start with bounded retries, liveness probe, and best-effort teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pdiddy/citefetch/internal/faults"
	"github.com/pdiddy/citefetch/internal/page"
	"github.com/pdiddy/citefetch/internal/retry"
)

// DefaultMaxAttempts is the number of launch attempts before giving up.
const DefaultMaxAttempts = 3

// probeURL is loaded to prove a fresh session responds.
const probeURL = "about:blank"

// ErrUnavailable is wrapped by Acquire when every attempt failed.
var ErrUnavailable = errors.New("browser session unavailable")

// Launcher starts a new browser session.
type Launcher interface {
	Launch(ctx context.Context) (page.Session, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context) (page.Session, error)

func (f LauncherFunc) Launch(ctx context.Context) (page.Session, error) { return f(ctx) }

// Manager starts and stops browser sessions.
type Manager struct {
	launcher    Launcher
	maxAttempts int
	clock       retry.Clock
	log         *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxAttempts sets the launch attempt budget.
func WithMaxAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// WithClock replaces the clock used for backoff waits.
func WithClock(c retry.Clock) Option { return func(m *Manager) { m.clock = c } }

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.log = l } }

// NewManager returns a Manager launching sessions with l.
func NewManager(l Launcher, opts ...Option) *Manager {
	m := &Manager{
		launcher:    l,
		maxAttempts: DefaultMaxAttempts,
		clock:       retry.RealClock,
		log:         slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Acquire starts a session and verifies it with a liveness probe. On a
// connectivity-class failure it waits 2^attempt seconds and tries again, up
// to the attempt budget; any other failure is returned immediately. When the
// budget is spent it returns a KindSessionUnavailable fault.
func (m *Manager) Acquire(ctx context.Context) (page.Session, error) {
	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		sess, err := m.start(ctx)
		if err == nil {
			return sess, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !faults.IsConnectivity(err) {
			m.log.Error("browser session failed to start", "attempt", attempt, "error", err)
			return nil, fmt.Errorf("starting browser session: %w", err)
		}

		lastErr = err
		m.log.Warn("browser session start failed", "attempt", attempt, "max", m.maxAttempts, "error", err)
		if attempt < m.maxAttempts {
			if err := m.clock.Sleep(ctx, retry.Backoff(attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, faults.New(faults.KindSessionUnavailable, "acquire session",
		fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, m.maxAttempts, lastErr))
}

func (m *Manager) start(ctx context.Context) (page.Session, error) {
	sess, err := m.launcher.Launch(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.Navigate(ctx, probeURL); err != nil {
		m.Release(sess)
		return nil, fmt.Errorf("liveness probe: %w", err)
	}
	return sess, nil
}

// Release closes sess. Errors are logged and swallowed so that cleanup never
// masks the caller's own error. A nil session is ignored.
func (m *Manager) Release(sess page.Session) {
	if sess == nil {
		return
	}
	// Teardown must run even when the run context was cancelled.
	if err := sess.Close(context.Background()); err != nil {
		m.log.Debug("closing browser session", "error", err)
	}
}
