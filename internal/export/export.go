// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export opens the citation panel of a matched result and triggers
// the EndNote download.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdiddy/citefetch/internal/faults"
	"github.com/pdiddy/citefetch/internal/match"
	"github.com/pdiddy/citefetch/internal/page"
	"github.com/pdiddy/citefetch/pkg/types"
)

const (
	DefaultPanelTimeout = 10 * time.Second
	DefaultLinkAttempts = 3
	DefaultLinkTimeout  = 5 * time.Second
)

// CiteLocators find the cite control inside a result block.
var CiteLocators = []page.Locator{
	page.Class("gs_or_cit"),
	page.CSS("a.gs_or_cit"),
	page.XPath(".//a[contains(@onclick,'gs_ocit')]"),
	page.LinkText("Cite"),
}

// PanelLocator finds the citation popup.
var PanelLocator = page.CSS("#gs_cit-pop")

// LinkLocators find the EndNote export link inside the panel.
var LinkLocators = []page.Locator{
	page.CSS("a[href*='citation?format=enw']"),
	page.XPath("//a[contains(@href,'citation?format=enw')]"),
	page.LinkText("EndNote"),
}

// Failure modes. All are content faults.
var (
	ErrNoCiteControl = errors.New("no cite control on result")
	ErrPanelMissing  = errors.New("citation panel did not appear")
	ErrNoExportLink  = errors.New("no EndNote link in citation panel")
	ErrClickFailed   = errors.New("click failed")
)

// Exporter drives the cite control and export link.
type Exporter struct {
	cfg types.ExportConfig
	log *slog.Logger
}

// New returns an Exporter. Zero config values fall back to defaults.
func New(cfg types.ExportConfig, log *slog.Logger) *Exporter {
	if cfg.PanelTimeout <= 0 {
		cfg.PanelTimeout = DefaultPanelTimeout
	}
	if cfg.LinkAttempts <= 0 {
		cfg.LinkAttempts = DefaultLinkAttempts
	}
	if cfg.LinkTimeout <= 0 {
		cfg.LinkTimeout = DefaultLinkTimeout
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Exporter{cfg: cfg, log: log}
}

// Export opens the citation panel for m and clicks the EndNote link. A nil
// return means the download was triggered; the file itself is picked up by
// the download resolver.
func (e *Exporter) Export(ctx context.Context, sess page.Session, m match.Result) error {
	if !m.Found || m.Candidate.Element == nil {
		return faults.Content("export", ErrNoCiteControl)
	}

	cites, loc, err := page.FindFirst(ctx, sess, m.Candidate.Element, CiteLocators)
	if err != nil {
		return classify("finding cite control", err, ErrNoCiteControl)
	}
	e.log.Debug("cite control", "locator", loc.String())
	if err := e.click(ctx, sess, cites[0]); err != nil {
		return classify("opening citation panel", err, ErrClickFailed)
	}

	if _, err := sess.WaitFor(ctx, PanelLocator, e.cfg.PanelTimeout); err != nil {
		return classify("waiting for citation panel", err, ErrPanelMissing)
	}

	link, loc, err := page.TryInOrder(ctx, LinkLocators, e.waitLink(sess))
	if err != nil {
		return classify("finding export link", err, ErrNoExportLink)
	}
	e.log.Debug("export link", "locator", loc.String())
	if err := e.click(ctx, sess, link); err != nil {
		return classify("clicking export link", err, ErrClickFailed)
	}
	return nil
}

// waitLink waits for one link locator up to LinkAttempts times.
func (e *Exporter) waitLink(sess page.Session) page.TryFunc[page.Element] {
	return func(ctx context.Context, loc page.Locator) (page.Element, bool, error) {
		var lastErr error
		for i := 0; i < e.cfg.LinkAttempts; i++ {
			el, err := sess.WaitFor(ctx, loc, e.cfg.LinkTimeout)
			if err == nil {
				return el, true, nil
			}
			if ctx.Err() != nil || faults.IsConnectivity(err) {
				return nil, false, err
			}
			lastErr = err
			e.log.Debug("export link not ready", "locator", loc.String(), "attempt", i+1)
		}
		if errors.Is(lastErr, page.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, lastErr
	}
}

// click tries a direct click and falls back to a simulated pointer click.
func (e *Exporter) click(ctx context.Context, sess page.Session, el page.Element) error {
	err := sess.Click(ctx, el, page.ClickDirect)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || faults.IsConnectivity(err) {
		return err
	}
	e.log.Debug("direct click failed, simulating pointer", "error", err)
	if err := sess.Click(ctx, el, page.ClickSimulated); err != nil {
		return fmt.Errorf("%w: %w", ErrClickFailed, err)
	}
	return nil
}

// classify passes transport faults and cancellation through and turns
// everything else into a content fault carrying sentinel.
func classify(op string, err, sentinel error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if faults.IsConnectivity(err) {
		return faults.Transport(op, err)
	}
	if errors.Is(err, sentinel) {
		return faults.Content(op, err)
	}
	return faults.Content(op, fmt.Errorf("%w: %w", sentinel, err))
}
