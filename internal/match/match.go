// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package match finds the search result that best matches a requested
// title. Result pages change layout often, so containers and titles are
// located through ordered fallback lists.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdiddy/citefetch/internal/faults"
	"github.com/pdiddy/citefetch/internal/page"
)

// ContainerLocators find result blocks, most specific first.
var ContainerLocators = []page.Locator{
	page.Class("gs_ri"),
	page.CSS("div.gs_r.gs_or.gs_scl"),
	page.CSS("div[data-aid]"),
	page.CSS("div.gs_or"),
}

// TitleLocators find the title inside one result block.
var TitleLocators = []page.Locator{
	page.Class("gs_rt"),
	page.CSS("h3.gs_rt"),
	page.CSS("a.gsc_a_at"),
	page.CSS("a"),
}

// Candidate is one search result with its display title.
type Candidate struct {
	DisplayTitle string
	Element      page.Element
}

// Result is the best candidate on a page. Found is false when the page had
// no usable candidates.
type Result struct {
	Candidate Candidate
	Score     float64
	Found     bool
}

// Matcher scores result pages against requested titles.
type Matcher struct {
	Containers []page.Locator
	Titles     []page.Locator
	Log        *slog.Logger
}

// New returns a Matcher with the default locator lists.
func New(log *slog.Logger) *Matcher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Matcher{Containers: ContainerLocators, Titles: TitleLocators, Log: log}
}

// FindBestMatch scores every result on the current page against
// originalTitle and returns the highest. Ties keep the first candidate seen.
// The error return is reserved for transport faults and cancellation; a page
// without results yields a Result with Found false.
func (m *Matcher) FindBestMatch(ctx context.Context, sess page.Session, query, originalTitle string) (Result, error) {
	candidates, err := m.Candidates(ctx, sess)
	if err != nil {
		return Result{}, err
	}
	m.Log.Debug("scoring candidates", "query", query, "count", len(candidates))
	return Best(candidates, originalTitle), nil
}

// Best returns the highest-scoring candidate for title.
func Best(candidates []Candidate, title string) Result {
	var best Result
	for _, c := range candidates {
		score := Similarity(StripTags(c.DisplayTitle), title)
		if !best.Found || score > best.Score {
			best = Result{Candidate: c, Score: score, Found: true}
		}
	}
	return best
}

// Candidates extracts every result block with a readable title.
func (m *Matcher) Candidates(ctx context.Context, sess page.Session) ([]Candidate, error) {
	containers, loc, err := page.FindFirst(ctx, sess, nil, m.Containers)
	if err != nil {
		if errors.Is(err, page.ErrExhausted) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding results: %w", err)
	}
	m.Log.Debug("result containers", "locator", loc.String(), "count", len(containers))

	var out []Candidate
	for _, el := range containers {
		title, err := m.title(ctx, el)
		if err != nil {
			if ctx.Err() != nil || faults.IsConnectivity(err) {
				return nil, fmt.Errorf("reading result title: %w", err)
			}
			m.Log.Debug("skipping result", "error", err)
			continue
		}
		if title == "" {
			continue
		}
		out = append(out, Candidate{DisplayTitle: title, Element: el})
	}
	return out, nil
}

// title returns the first non-empty title text inside el.
func (m *Matcher) title(ctx context.Context, el page.Element) (string, error) {
	text, _, err := page.TryInOrder(ctx, m.Titles, func(ctx context.Context, loc page.Locator) (string, bool, error) {
		found, err := el.FindAll(ctx, loc)
		if err != nil {
			return "", false, err
		}
		for _, f := range found {
			t, err := f.Text(ctx)
			if err != nil {
				return "", false, err
			}
			if t = strings.TrimSpace(t); t != "" {
				return t, true, nil
			}
		}
		return "", false, nil
	})
	if errors.Is(err, page.ErrExhausted) {
		return "", nil
	}
	return text, err
}
