// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
)

type point struct{ X, Y float64 }

// mousePath returns a jittered cubic bezier path from one point to another
// with between 5 and 30 steps depending on the distance.
func mousePath(r *rand.Rand, from, to point) []point {
	distance := math.Hypot(to.X-from.X, to.Y-from.Y)
	duration := 100 + (distance/2000)*200 + float64(r.IntN(100))
	steps := min(max(int(duration/20), 5), 30)

	cp1 := point{
		X: from.X + (to.X-from.X)*0.25 + (r.Float64()-0.5)*50,
		Y: from.Y + (to.Y-from.Y)*0.25 + (r.Float64()-0.5)*50,
	}
	cp2 := point{
		X: from.X + (to.X-from.X)*0.75 + (r.Float64()-0.5)*50,
		Y: from.Y + (to.Y-from.Y)*0.75 + (r.Float64()-0.5)*50,
	}

	path := make([]point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		u := 1 - t
		x := u*u*u*from.X + 3*u*u*t*cp1.X + 3*u*t*t*cp2.X + t*t*t*to.X
		y := u*u*u*from.Y + 3*u*u*t*cp1.Y + 3*u*t*t*cp2.Y + t*t*t*to.Y
		if i > 0 && i < steps {
			x += (r.Float64() - 0.5) * 2
			y += (r.Float64() - 0.5) * 2
		}
		path = append(path, point{x, y})
	}
	return path
}

// boxCenter returns the center of a content quad.
func boxCenter(quad []float64) (point, error) {
	if len(quad) < 8 {
		return point{}, fmt.Errorf("invalid box model")
	}
	return point{X: (quad[0] + quad[2]) / 2, Y: (quad[1] + quad[5]) / 2}, nil
}

// humanClickElement moves the pointer to a node along a natural path and
// clicks it. ctx must carry a chromedp executor.
func humanClickElement(ctx context.Context, nodeID cdp.NodeID) error {
	box, err := dom.GetBoxModel().WithNodeID(nodeID).Do(ctx)
	if err != nil {
		return fmt.Errorf("reading box model: %w", err)
	}
	center, err := boxCenter(box.Content)
	if err != nil {
		return err
	}
	r := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	target := point{X: center.X + (r.Float64()-0.5)*10, Y: center.Y + (r.Float64()-0.5)*10}
	return humanClick(ctx, r, target)
}

// humanClick performs a click with natural mouse movement and timing.
func humanClick(ctx context.Context, r *rand.Rand, at point) error {
	start := point{X: at.X + (r.Float64()-0.5)*200 + 50, Y: at.Y + (r.Float64()-0.5)*200 + 50}
	if math.Hypot(start.X-at.X, start.Y-at.Y) > 30 {
		for _, p := range mousePath(r, start, at) {
			if err := input.DispatchMouseEvent(input.MouseMoved, p.X, p.Y).Do(ctx); err != nil {
				return err
			}
			if err := sleep(ctx, time.Duration(16+r.IntN(8))*time.Millisecond); err != nil {
				return err
			}
		}
	}

	if err := sleep(ctx, time.Duration(50+r.IntN(150))*time.Millisecond); err != nil {
		return err
	}
	if err := input.DispatchMouseEvent(input.MousePressed, at.X, at.Y).
		WithButton(input.Left).
		WithClickCount(1).
		Do(ctx); err != nil {
		return err
	}
	if err := sleep(ctx, time.Duration(30+r.IntN(90))*time.Millisecond); err != nil {
		return err
	}
	return input.DispatchMouseEvent(input.MouseReleased, at.X+(r.Float64()-0.5)*2, at.Y+(r.Float64()-0.5)*2).
		WithButton(input.Left).
		WithClickCount(1).
		Do(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
