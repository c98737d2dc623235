// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download picks up exported citation files from the browser's
// download directory and moves them into place under a name derived from
// their content.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/citefetch/internal/faults"
	"github.com/pdiddy/citefetch/internal/retry"
	"github.com/pdiddy/citefetch/pkg/types"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
	DefaultSettle       = 1 * time.Second
)

// ErrDownloadTimeout is returned when no export file appears in time.
var ErrDownloadTimeout = errors.New("export file did not appear")

// Resolver polls a directory for export files.
type Resolver struct {
	Timeout  time.Duration
	Interval time.Duration
	Settle   time.Duration
	Clock    retry.Clock

	// Since, when set, ignores files last modified before it.
	Since time.Time
}

// NewResolver returns a Resolver configured from cfg with defaults for
// zero values.
func NewResolver(cfg types.DownloadConfig, clock retry.Clock) *Resolver {
	r := &Resolver{Timeout: cfg.Timeout, Interval: cfg.PollInterval, Settle: cfg.Settle, Clock: clock}
	if r.Timeout <= 0 {
		r.Timeout = DefaultTimeout
	}
	if r.Interval <= 0 {
		r.Interval = DefaultPollInterval
	}
	if r.Settle < 0 {
		r.Settle = 0
	} else if r.Settle == 0 {
		r.Settle = DefaultSettle
	}
	if r.Clock == nil {
		r.Clock = retry.RealClock
	}
	return r
}

// Resolve waits for an export file in dir and returns the most recently
// modified one after the settle interval. It returns a content fault
// wrapping ErrDownloadTimeout when nothing appears before the timeout.
func (r *Resolver) Resolve(ctx context.Context, dir string) (string, error) {
	var found string
	ok, err := retry.Poll(ctx, r.Clock, r.Interval, r.Timeout, func(context.Context) (bool, error) {
		path, err := r.Latest(dir)
		if err != nil {
			return false, err
		}
		found = path
		return path != "", nil
	})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", faults.Content("resolving download", fmt.Errorf("%w in %s after %s", ErrDownloadTimeout, dir, r.Timeout))
	}
	if err := r.Clock.Sleep(ctx, r.Settle); err != nil {
		return "", err
	}
	return found, nil
}

// Latest returns the most recently modified export file in dir that is not
// older than Since, or "" when there is none.
func (r *Resolver) Latest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+types.EndNoteExt))
	if err != nil {
		return "", fmt.Errorf("listing %s: %w", dir, err)
	}
	var best string
	var bestMod time.Time
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		mod := info.ModTime()
		if !r.Since.IsZero() && mod.Before(r.Since) {
			continue
		}
		if best == "" || mod.After(bestMod) {
			best, bestMod = m, mod
		}
	}
	return best, nil
}
