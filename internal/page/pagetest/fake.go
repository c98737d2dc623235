// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pagetest provides a scripted, in-memory page.Session for tests.
package pagetest

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/citefetch/internal/page"
)

// Element is a fake DOM node. Children are keyed by the exact locator a
// caller will search with.
type Element struct {
	Name     string
	TextVal  string
	TextErr  error
	Children map[page.Locator][]*Element

	// ClickErr makes Click fail for the given strategy.
	ClickErr map[page.ClickStrategy]error
	// OnClick runs after a successful click.
	OnClick func() error

	Clicks []page.ClickStrategy
}

// NewElement returns an element with the given text.
func NewElement(name, text string) *Element {
	return &Element{Name: name, TextVal: text, Children: map[page.Locator][]*Element{}}
}

// Add registers children under loc and returns e for chaining.
func (e *Element) Add(loc page.Locator, children ...*Element) *Element {
	if e.Children == nil {
		e.Children = map[page.Locator][]*Element{}
	}
	e.Children[loc] = append(e.Children[loc], children...)
	return e
}

func (e *Element) Text(context.Context) (string, error) {
	if e.TextErr != nil {
		return "", e.TextErr
	}
	return e.TextVal, nil
}

func (e *Element) FindAll(_ context.Context, loc page.Locator) ([]page.Element, error) {
	return toElements(e.Children[loc]), nil
}

func (e *Element) String() string { return e.Name }

func toElements(in []*Element) []page.Element {
	out := make([]page.Element, len(in))
	for i, el := range in {
		out[i] = el
	}
	return out
}

// Session is a fake browser session. Doc is the current page; tests swap
// it from OnNavigate to model page loads.
type Session struct {
	ID       int
	Doc      *Element
	Text     string
	Dir      string
	CloseErr error

	// OnNavigate runs on every Navigate; its error is returned to the caller.
	OnNavigate func(s *Session, url string) error
	// TextErr makes PageText fail.
	TextErr error
	// OnPageText runs before PageText returns, letting tests change the
	// page between gate polls.
	OnPageText func(s *Session)

	Visited []string
	Waited  []page.Locator
	Closed  bool
}

// NewSession returns a session with an empty document.
func NewSession(dir string) *Session {
	return &Session{Doc: NewElement("document", ""), Dir: dir}
}

func (s *Session) Navigate(_ context.Context, url string) error {
	s.Visited = append(s.Visited, url)
	if s.OnNavigate != nil {
		return s.OnNavigate(s, url)
	}
	return nil
}

func (s *Session) WaitFor(ctx context.Context, loc page.Locator, _ time.Duration) (page.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.Waited = append(s.Waited, loc)
	if els := s.Doc.Children[loc]; len(els) > 0 {
		return els[0], nil
	}
	return nil, fmt.Errorf("waiting for %s: %w", loc, page.ErrNotFound)
}

func (s *Session) FindAll(ctx context.Context, loc page.Locator) ([]page.Element, error) {
	return s.Doc.FindAll(ctx, loc)
}

func (s *Session) Click(_ context.Context, el page.Element, how page.ClickStrategy) error {
	fe, ok := el.(*Element)
	if !ok {
		return fmt.Errorf("pagetest: foreign element %T", el)
	}
	fe.Clicks = append(fe.Clicks, how)
	if err := fe.ClickErr[how]; err != nil {
		return err
	}
	if fe.OnClick != nil {
		return fe.OnClick()
	}
	return nil
}

func (s *Session) PageText(context.Context) (string, error) {
	if s.OnPageText != nil {
		s.OnPageText(s)
	}
	if s.TextErr != nil {
		return "", s.TextErr
	}
	return s.Text, nil
}

func (s *Session) DownloadDir() string { return s.Dir }

func (s *Session) Close(context.Context) error {
	s.Closed = true
	return s.CloseErr
}
