// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citefetch/internal/faults"
	"github.com/pdiddy/citefetch/internal/page"
	"github.com/pdiddy/citefetch/internal/page/pagetest"
	"github.com/pdiddy/citefetch/internal/retry"
	"github.com/pdiddy/citefetch/internal/retry/retrytest"
)

func init() {
	retry.BaseDelay = time.Second
}

// scriptedLauncher fails with errs in order, then hands out fresh sessions.
type scriptedLauncher struct {
	errs     []error
	launches int
	sessions []*pagetest.Session
}

func (l *scriptedLauncher) Launch(context.Context) (page.Session, error) {
	l.launches++
	if len(l.errs) > 0 {
		err := l.errs[0]
		l.errs = l.errs[1:]
		return nil, err
	}
	s := pagetest.NewSession("")
	s.ID = l.launches
	l.sessions = append(l.sessions, s)
	return s, nil
}

var refused = fmt.Errorf("dial tcp 127.0.0.1:9222: %w", syscall.ECONNREFUSED)

func TestAcquire_FirstTry(t *testing.T) {
	l := &scriptedLauncher{}
	clock := retrytest.NewClock()
	m := NewManager(l, WithClock(clock))

	sess, err := m.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, 1, l.launches)
	assert.Empty(t, clock.Sleeps)
	assert.Equal(t, []string{"about:blank"}, l.sessions[0].Visited)
}

func TestAcquire_TwoTransportFaultsThenSuccess(t *testing.T) {
	l := &scriptedLauncher{errs: []error{refused, refused}}
	clock := retrytest.NewClock()
	m := NewManager(l, WithClock(clock))

	sess, err := m.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, 3, l.launches)
	require.Len(t, clock.Sleeps, 2)
	assert.Equal(t, 2*time.Second, clock.Sleeps[0])
	assert.Equal(t, 4*time.Second, clock.Sleeps[1])
	assert.Less(t, clock.Sleeps[0], clock.Sleeps[1])
}

func TestAcquire_ExhaustedIsSessionUnavailable(t *testing.T) {
	l := &scriptedLauncher{errs: []error{refused, refused, refused, refused}}
	clock := retrytest.NewClock()
	m := NewManager(l, WithClock(clock))

	_, err := m.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, faults.KindSessionUnavailable, faults.KindOf(err))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, DefaultMaxAttempts, l.launches, "never a fourth launch")
	assert.Len(t, clock.Sleeps, 2)
}

func TestAcquire_NonConnectivityFailsImmediately(t *testing.T) {
	l := &scriptedLauncher{errs: []error{errors.New(`exec: "google-chrome": executable file not found in $PATH`)}}
	clock := retrytest.NewClock()
	m := NewManager(l, WithClock(clock))

	_, err := m.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, l.launches)
	assert.Empty(t, clock.Sleeps)
	assert.NotEqual(t, faults.KindSessionUnavailable, faults.KindOf(err))
}

func TestAcquire_ProbeFailureClosesSession(t *testing.T) {
	var probed []*pagetest.Session
	calls := 0
	l := LauncherFunc(func(context.Context) (page.Session, error) {
		calls++
		s := pagetest.NewSession("")
		if calls == 1 {
			s.OnNavigate = func(*pagetest.Session, string) error { return refused }
		}
		probed = append(probed, s)
		return s, nil
	})
	clock := retrytest.NewClock()
	m := NewManager(l, WithClock(clock))

	sess, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, probed[1], sess)
	assert.True(t, probed[0].Closed, "failed probe must close the session")
	assert.Equal(t, []time.Duration{2 * time.Second}, clock.Sleeps)
}

func TestAcquire_CustomAttempts(t *testing.T) {
	l := &scriptedLauncher{errs: []error{refused, refused, refused, refused, refused}}
	m := NewManager(l, WithClock(retrytest.NewClock()), WithMaxAttempts(5))
	_, err := m.Acquire(context.Background())
	assert.Equal(t, faults.KindSessionUnavailable, faults.KindOf(err))
	assert.Equal(t, 5, l.launches)
}

func TestAcquire_ContextCancelledDuringBackoff(t *testing.T) {
	l := &scriptedLauncher{errs: []error{refused, refused}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewManager(l, WithClock(retrytest.NewClock()))
	_, err := m.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRelease_SwallowsErrors(t *testing.T) {
	m := NewManager(&scriptedLauncher{})
	s := pagetest.NewSession("")
	s.CloseErr = errors.New("chrome already gone")
	assert.NotPanics(t, func() { m.Release(s) })
	assert.True(t, s.Closed)
	assert.NotPanics(t, func() { m.Release(nil) })
}
