// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package page defines the browser collaborator the pipeline drives and the
// locator vocabulary used to find elements on unstable page layouts.
//
// The core packages only see these interfaces; internal/browser provides the
// chromedp implementation and internal/page/pagetest a scripted fake.
package page

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/citefetch/internal/faults"
)

// Strategy selects how a Locator value is interpreted.
type Strategy string

const (
	ByClass    Strategy = "class"
	ByCSS      Strategy = "css"
	ByXPath    Strategy = "xpath"
	ByLinkText Strategy = "link-text"
)

// Locator is one (strategy, value) pair in a priority list.
type Locator struct {
	Strategy Strategy
	Value    string
}

// Class locates elements carrying the given class name.
func Class(name string) Locator { return Locator{Strategy: ByClass, Value: name} }

// CSS locates elements matching a CSS selector.
func CSS(sel string) Locator { return Locator{Strategy: ByCSS, Value: sel} }

// XPath locates elements matching an XPath expression. Expressions starting
// with "." are evaluated relative to the element searched from.
func XPath(expr string) Locator { return Locator{Strategy: ByXPath, Value: expr} }

// LinkText locates anchors whose text contains s.
func LinkText(s string) Locator { return Locator{Strategy: ByLinkText, Value: s} }

func (l Locator) String() string {
	return string(l.Strategy) + "=" + l.Value
}

// CSSSelector returns the CSS form of a class or css locator.
func (l Locator) CSSSelector() (string, bool) {
	switch l.Strategy {
	case ByClass:
		return "." + l.Value, true
	case ByCSS:
		return l.Value, true
	default:
		return "", false
	}
}

// XPathExpr returns the XPath form of an xpath or link-text locator.
func (l Locator) XPathExpr() (string, bool) {
	switch l.Strategy {
	case ByXPath:
		return l.Value, true
	case ByLinkText:
		return ".//a[contains(text(), " + xpathLiteral(l.Value) + ")]", true
	default:
		return "", false
	}
}

// xpathLiteral quotes s for use inside an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}

// ClickStrategy selects how Click triggers an element.
type ClickStrategy int

const (
	// ClickDirect invokes the element's click handler from script.
	ClickDirect ClickStrategy = iota
	// ClickSimulated dispatches a pointer move/press/release sequence.
	ClickSimulated
)

func (c ClickStrategy) String() string {
	if c == ClickSimulated {
		return "simulated"
	}
	return "direct"
}

// Element is a handle to a node on the current page load. Handles are only
// valid until the next navigation.
type Element interface {
	Text(ctx context.Context) (string, error)
	FindAll(ctx context.Context, loc Locator) ([]Element, error)
}

// Session is one live browser session.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until loc matches an element or timeout elapses.
	// A timeout is reported as ErrNotFound.
	WaitFor(ctx context.Context, loc Locator, timeout time.Duration) (Element, error)
	FindAll(ctx context.Context, loc Locator) ([]Element, error)
	Click(ctx context.Context, el Element, how ClickStrategy) error
	// PageText returns the visible text of the current page.
	PageText(ctx context.Context) (string, error)
	// DownloadDir is where the browser saves downloaded files.
	DownloadDir() string
	Close(ctx context.Context) error
}

// Widget returns the token PageText appends for a challenge widget that
// has no visible text, such as a reCAPTCHA iframe. The bracketed form keeps
// it distinct from words in the page itself.
func Widget(name string) string { return "[widget:" + name + "]" }

// ErrNotFound is returned when a locator matches nothing in time.
var ErrNotFound = errors.New("element not found")

// ErrExhausted is returned by TryInOrder when no locator succeeded.
var ErrExhausted = errors.New("no locator matched")

// TryFunc attempts one locator. It reports ok=false (with a nil error) when
// the locator simply did not match.
type TryFunc[T any] func(ctx context.Context, loc Locator) (T, bool, error)

// TryInOrder evaluates locs in priority order and returns the first success
// along with the locator that produced it. Errors from a single locator are
// skipped unless they are transport faults or the context is done, in which
// case they abort the search.
func TryInOrder[T any](ctx context.Context, locs []Locator, try TryFunc[T]) (T, Locator, error) {
	var zero T
	var lastErr error
	for _, loc := range locs {
		if err := ctx.Err(); err != nil {
			return zero, Locator{}, err
		}
		v, ok, err := try(ctx, loc)
		if err != nil {
			if ctx.Err() != nil {
				return zero, loc, ctx.Err()
			}
			if faults.IsConnectivity(err) {
				return zero, loc, err
			}
			lastErr = err
			continue
		}
		if ok {
			return v, loc, nil
		}
	}
	if lastErr != nil {
		return zero, Locator{}, fmt.Errorf("%w (last error: %v)", ErrExhausted, lastErr)
	}
	return zero, Locator{}, ErrExhausted
}

// FindFirst returns the first non-empty FindAll result across locs, searching
// within root when it is non-nil and across the whole page otherwise.
func FindFirst(ctx context.Context, sess Session, root Element, locs []Locator) ([]Element, Locator, error) {
	return TryInOrder(ctx, locs, func(ctx context.Context, loc Locator) ([]Element, bool, error) {
		var els []Element
		var err error
		if root != nil {
			els, err = root.FindAll(ctx, loc)
		} else {
			els, err = sess.FindAll(ctx, loc)
		}
		if err != nil {
			return nil, false, err
		}
		return els, len(els) > 0, nil
	})
}
