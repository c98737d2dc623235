// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"github.com/pdiddy/citefetch/internal/faults"
	"github.com/pdiddy/citefetch/internal/page"
	"github.com/pdiddy/citefetch/internal/retry"
)

// refAttr tags nodes matched by an XPath query so they can be fetched
// through a CSS query.
const refAttr = "data-citefetch-ref"

const tagXPathJS = `function(expr, token) {
	const res = document.evaluate(expr, this, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	let n = 0;
	for (let i = 0; i < res.snapshotLength; i++) {
		const el = res.snapshotItem(i);
		if (el.nodeType === Node.ELEMENT_NODE) {
			el.setAttribute("` + refAttr + `", token);
			n++;
		}
	}
	return n;
}`

const textJS = `function() { return (this.innerText || this.textContent || "").trim(); }`

const clickJS = `function() { this.click(); return true; }`

// Session is one Chrome tab.
type Session struct {
	ctx        context.Context
	cancel     context.CancelFunc
	dir        string
	navTimeout time.Duration
	poll       time.Duration
	log        *slog.Logger
}

// Element is a node on the current page.
type Element struct {
	s    *Session
	node *cdp.Node
}

// run executes actions on the tab, stopping early when ctx is done.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.ctx.Err() != nil {
		return faults.Transport("browser", ErrClosed)
	}
	rctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return s.classify(ctx, chromedp.Run(rctx, actions...))
}

// classify maps driver errors onto the fault taxonomy: caller cancellation
// passes through and a dead browser is a transport fault.
func (s *Session) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if s.ctx.Err() != nil {
		return faults.Transport("browser", fmt.Errorf("%w: %w", ErrClosed, err))
	}
	if faults.IsConnectivity(err) {
		return faults.Transport("browser", err)
	}
	return err
}

// Navigate loads url and waits for the document to be ready. A page load
// that does not finish in time is treated as a transport fault.
func (s *Session) Navigate(ctx context.Context, url string) error {
	nctx, cancel := context.WithTimeout(ctx, s.navTimeout)
	defer cancel()
	err := s.run(nctx, chromedp.Navigate(url))
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return faults.Transport("navigate", fmt.Errorf("loading %s: page load timed out after %s", url, s.navTimeout))
	}
	if err != nil {
		return fmt.Errorf("loading %s: %w", url, err)
	}
	return nil
}

// WaitFor polls for loc until it matches or timeout elapses.
func (s *Session) WaitFor(ctx context.Context, loc page.Locator, timeout time.Duration) (page.Element, error) {
	var found page.Element
	ok, err := retry.Poll(ctx, retry.RealClock, s.poll, timeout, func(ctx context.Context) (bool, error) {
		els, err := s.FindAll(ctx, loc)
		if err != nil {
			if ctx.Err() != nil || faults.IsConnectivity(err) {
				return false, err
			}
			s.log.Debug("query failed while waiting", "locator", loc.String(), "error", err)
			return false, nil
		}
		if len(els) == 0 {
			return false, nil
		}
		found = els[0]
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("waiting for %s: %w", loc, page.ErrNotFound)
	}
	return found, nil
}

// FindAll returns every element on the page matching loc.
func (s *Session) FindAll(ctx context.Context, loc page.Locator) ([]page.Element, error) {
	return s.query(ctx, nil, loc)
}

func (s *Session) query(ctx context.Context, from *cdp.Node, loc page.Locator) ([]page.Element, error) {
	var nodes []*cdp.Node
	var err error
	if sel, ok := loc.CSSSelector(); ok {
		nodes, err = s.queryCSS(ctx, from, sel)
	} else if expr, ok := loc.XPathExpr(); ok {
		nodes, err = s.queryXPath(ctx, from, expr)
	} else {
		return nil, fmt.Errorf("unsupported locator %s", loc)
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", loc, err)
	}
	out := make([]page.Element, len(nodes))
	for i, n := range nodes {
		out[i] = &Element{s: s, node: n}
	}
	return out, nil
}

func (s *Session) queryCSS(ctx context.Context, from *cdp.Node, sel string) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if from != nil {
		opts = append(opts, chromedp.FromNode(from))
	}
	if err := s.run(ctx, chromedp.Nodes(sel, &nodes, opts...)); err != nil {
		return nil, err
	}
	return nodes, nil
}

// queryXPath evaluates expr in the page with from (or the document) as the
// context node, tags the matches and fetches them with a CSS query.
func (s *Session) queryXPath(ctx context.Context, from *cdp.Node, expr string) ([]*cdp.Node, error) {
	token := uuid.NewString()
	var matched int
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		root := from
		if root == nil {
			doc, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			root = doc
		}
		return callOnNode(ctx, root, tagXPathJS, &matched, expr, token)
	}))
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		return nil, nil
	}
	return s.queryCSS(ctx, from, fmt.Sprintf(`[%s="%s"]`, refAttr, token))
}

// callOnNode runs fn in the page with node as this, passing args by value,
// and decodes the return value into res when res is non-nil.
func callOnNode(ctx context.Context, node *cdp.Node, fn string, res any, args ...any) error {
	callArgs, err := callArguments(args...)
	if err != nil {
		return err
	}
	obj, err := dom.ResolveNode().WithNodeID(node.NodeID).Do(ctx)
	if err != nil {
		return fmt.Errorf("resolving node %d: %w", node.NodeID, err)
	}
	defer runtime.ReleaseObject(obj.ObjectID).Do(ctx)

	v, exc, err := runtime.CallFunctionOn(fn).
		WithObjectID(obj.ObjectID).
		WithArguments(callArgs).
		WithReturnByValue(true).
		Do(ctx)
	if err != nil {
		return err
	}
	if exc != nil {
		return exc
	}
	if res == nil || v == nil || len(v.Value) == 0 {
		return nil
	}
	return json.Unmarshal(v.Value, res)
}

// callArguments encodes Go values as by-value call arguments.
func callArguments(args ...any) ([]*runtime.CallArgument, error) {
	out := make([]*runtime.CallArgument, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encoding argument %d: %w", i, err)
		}
		out[i] = &runtime.CallArgument{Value: b}
	}
	return out, nil
}

// Click triggers el directly from script or with a simulated pointer.
func (s *Session) Click(ctx context.Context, el page.Element, how page.ClickStrategy) error {
	e, ok := el.(*Element)
	if !ok || e.s != s {
		return fmt.Errorf("element %T does not belong to this session", el)
	}
	if how == page.ClickSimulated {
		return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			if err := dom.ScrollIntoViewIfNeeded().WithNodeID(e.node.NodeID).Do(ctx); err != nil {
				return fmt.Errorf("scrolling into view: %w", err)
			}
			return humanClickElement(ctx, e.node.NodeID)
		}))
	}
	var clicked bool
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return callOnNode(ctx, e.node, clickJS, &clicked)
	}))
}

// PageText returns the visible text of the current page along with the
// names of challenge widgets that carry no text.
func (s *Session) PageText(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page: %w", err)
	}
	return VisibleText(html)
}

func (s *Session) DownloadDir() string { return s.dir }

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close(context.Context) error {
	if s.ctx.Err() != nil {
		s.cancel()
		return nil
	}
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return callOnNode(ctx, e.node, textJS, &text)
	}))
	return text, err
}

func (e *Element) FindAll(ctx context.Context, loc page.Locator) ([]page.Element, error) {
	return e.s.query(ctx, e.node, loc)
}
