// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gate detects anti-bot challenge pages and blocks until a human
// operator clears them in the browser window. It never tries to solve a
// challenge itself.
package gate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pdiddy/citefetch/internal/faults"
	"github.com/pdiddy/citefetch/internal/page"
	"github.com/pdiddy/citefetch/internal/retry"
	"github.com/pdiddy/citefetch/pkg/types"
)

const (
	DefaultTimeout      = 300 * time.Second
	DefaultPollInterval = 1 * time.Second
)

var (
	recaptchaWidget = page.Widget("recaptcha")
	captchaWidget   = page.Widget("gs_captcha")
)

// DefaultMarkers are lowercase fragments of Google's challenge pages in
// English and Chinese. Only whole challenge sentences and widget tokens
// count: a result titled "reCAPTCHA ..." is not a challenge.
var DefaultMarkers = []string{
	"our systems have detected unusual traffic",
	"please show you're not a robot",
	captchaWidget,
	recaptchaWidget,
	"请证明您不是机器人",
	"请选择所有匹配的图片",
	"我们的系统检测到您的计算机网络中存在异常流量",
}

// hints maps a marker to a more specific operator instruction.
var hints = map[string]string{
	"please show you're not a robot": `Tick the "I'm not a robot" checkbox.`,
	"请证明您不是机器人":                      `Tick the "I'm not a robot" checkbox.`,
	"请选择所有匹配的图片":                     "Complete the image challenge.",
	recaptchaWidget:                  "Complete the reCAPTCHA challenge.",
}

// hintOrder fixes the order hints are looked up in; the image challenge is
// more specific than the checkbox.
var hintOrder = []string{"请选择所有匹配的图片", recaptchaWidget, "please show you're not a robot", "请证明您不是机器人"}

// Notifier receives operator guidance while the gate is blocked.
type Notifier interface {
	// ChallengeDetected is called once when the gate starts waiting.
	ChallengeDetected(timeout time.Duration)
	// ChallengeHint is called with a specific instruction when one applies.
	ChallengeHint(hint string)
	// ChallengeResolved is called when the gate stops waiting.
	ChallengeResolved(cleared bool)
}

// Gate blocks on challenge pages.
type Gate struct {
	markers  []string
	timeout  time.Duration
	interval time.Duration
	clock    retry.Clock
	notify   Notifier
	log      *slog.Logger
}

// New returns a Gate configured from cfg. Zero values fall back to defaults.
func New(cfg types.GateConfig, clock retry.Clock, notify Notifier, log *slog.Logger) *Gate {
	g := &Gate{
		markers:  DefaultMarkers,
		timeout:  cfg.Timeout,
		interval: cfg.PollInterval,
		clock:    clock,
		notify:   notify,
		log:      log,
	}
	if len(cfg.Markers) > 0 {
		g.markers = make([]string, len(cfg.Markers))
		for i, m := range cfg.Markers {
			g.markers[i] = strings.ToLower(m)
		}
	}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	if g.interval <= 0 {
		g.interval = DefaultPollInterval
	}
	if g.clock == nil {
		g.clock = retry.RealClock
	}
	if g.notify == nil {
		g.notify = nopNotifier{}
	}
	if g.log == nil {
		g.log = slog.New(slog.DiscardHandler)
	}
	return g
}

// Blocked reports whether the current page is a challenge page and, if so,
// which marker matched.
func (g *Gate) Blocked(ctx context.Context, sess page.Session) (bool, string, error) {
	marker, _, err := g.inspect(ctx, sess)
	return marker != "", marker, err
}

// inspect returns the first matching marker and the operator hint that
// applies to the page, if any.
func (g *Gate) inspect(ctx context.Context, sess page.Session) (marker, hint string, err error) {
	text, err := sess.PageText(ctx)
	if err != nil {
		return "", "", err
	}
	text = strings.ToLower(text)
	for _, m := range g.markers {
		if strings.Contains(text, m) {
			marker = m
			break
		}
	}
	if marker == "" {
		return "", "", nil
	}
	for _, key := range hintOrder {
		if strings.Contains(text, key) {
			return marker, hints[key], nil
		}
	}
	return marker, "", nil
}

// Wait returns immediately with true when the page is not a challenge.
// Otherwise it notifies the operator and polls until the markers disappear
// (true) or the timeout elapses (false). Errors reading the page while
// waiting are logged and polling continues; transport faults and context
// cancellation end the wait with an error.
func (g *Gate) Wait(ctx context.Context, sess page.Session) (bool, error) {
	marker, hint, err := g.inspect(ctx, sess)
	if err != nil {
		return false, err
	}
	if marker == "" {
		return true, nil
	}

	g.log.Warn("challenge page detected", "marker", marker)
	g.notify.ChallengeDetected(g.timeout)
	lastHint := ""
	if hint != "" {
		g.notify.ChallengeHint(hint)
		lastHint = hint
	}

	cleared, err := retry.Poll(ctx, g.clock, g.interval, g.timeout, func(ctx context.Context) (bool, error) {
		marker, hint, err := g.inspect(ctx, sess)
		if err != nil {
			if ctx.Err() != nil || faults.IsConnectivity(err) {
				return false, err
			}
			g.log.Debug("checking challenge state", "error", err)
			return false, nil
		}
		if marker == "" {
			return true, nil
		}
		if hint != "" && hint != lastHint {
			g.notify.ChallengeHint(hint)
			lastHint = hint
		}
		return false, nil
	})
	if err != nil {
		return false, err
	}
	g.notify.ChallengeResolved(cleared)
	if !cleared {
		g.log.Warn("challenge not cleared before timeout", "timeout", g.timeout)
	}
	return cleared, nil
}

type nopNotifier struct{}

func (nopNotifier) ChallengeDetected(time.Duration) {}
func (nopNotifier) ChallengeHint(string)            {}
func (nopNotifier) ChallengeResolved(bool)          {}
