// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package browser implements page.Session on top of Chrome through the
// DevTools protocol.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"

	"github.com/pdiddy/citefetch/internal/page"
	"github.com/pdiddy/citefetch/pkg/types"
)

const (
	DefaultNavigationTimeout = 60 * time.Second
	defaultQueryPoll         = 250 * time.Millisecond
)

// DefaultUserAgents is the pool a session's User-Agent is drawn from.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
}

// ErrClosed is returned by operations on a session whose browser is gone.
var ErrClosed = errors.New("browser session closed")

// Launcher starts Chrome processes.
type Launcher struct {
	cfg types.BrowserConfig
	log *slog.Logger
}

// NewLauncher returns a Launcher for cfg.
func NewLauncher(cfg types.BrowserConfig, log *slog.Logger) *Launcher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultNavigationTimeout
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = DefaultUserAgents
	}
	return &Launcher{cfg: cfg, log: log}
}

// allocatorOptions returns the Chrome flags for one session.
func (l *Launcher) allocatorOptions(userAgent string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("start-maximized", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.UserAgent(userAgent),
	)
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	return opts
}

// Launch starts a browser with downloads routed to the configured
// directory. The browser outlives ctx; only Close stops it.
func (l *Launcher) Launch(ctx context.Context) (page.Session, error) {
	dir, err := filepath.Abs(l.cfg.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("resolving download directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating download directory %s: %w", dir, err)
	}

	ua := l.cfg.UserAgents[rand.IntN(len(l.cfg.UserAgents))]
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), l.allocatorOptions(ua)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(l.logf(slog.LevelDebug)),
		chromedp.WithErrorf(l.logf(slog.LevelWarn)),
	)
	s := &Session{
		ctx:        tabCtx,
		dir:        dir,
		navTimeout: l.cfg.NavigationTimeout,
		poll:       defaultQueryPoll,
		log:        l.log,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}

	// The first Run allocates the browser, so it must use the tab context
	// itself rather than a derived one with a deadline.
	stop := context.AfterFunc(ctx, s.cancel)
	err = chromedp.Run(tabCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
	)
	stop()
	if err != nil {
		s.cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("launching chrome: %w", err)
	}
	l.log.Info("browser started", "headless", l.cfg.Headless, "download_dir", dir)
	return s, nil
}

func (l *Launcher) logf(level slog.Level) func(string, ...any) {
	return func(format string, args ...any) {
		l.log.Log(context.Background(), level, fmt.Sprintf(format, args...), "component", "chromedp")
	}
}
