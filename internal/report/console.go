// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders batch progress for the operator and writes the
// per-run YAML report.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pdiddy/citefetch/internal/acquire"
	"github.com/pdiddy/citefetch/pkg/types"
)

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorGreen   = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}
	colorRed     = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF5F5F"}
	colorAmber   = lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFB454"}
)

// Console writes styled progress lines. It implements acquire.Reporter and
// the gate's operator notifier.
type Console struct {
	w io.Writer

	header  lipgloss.Style
	dim     lipgloss.Style
	ok      lipgloss.Style
	bad     lipgloss.Style
	warn    lipgloss.Style
	banner  lipgloss.Style
	summary lipgloss.Style
}

// NewConsole returns a Console writing to w. Colors are chosen for w, so
// redirected output stays plain.
func NewConsole(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:      w,
		header: r.NewStyle().Bold(true).Foreground(colorPrimary),
		dim:    r.NewStyle().Foreground(colorDim),
		ok:     r.NewStyle().Foreground(colorGreen),
		bad:    r.NewStyle().Foreground(colorRed),
		warn:   r.NewStyle().Foreground(colorAmber),
		banner: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAmber).
			Padding(0, 1),
		summary: r.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(colorDim).
			Bold(true),
	}
}

func (c *Console) TitleStarted(index, total int, title, query string) {
	fmt.Fprintf(c.w, "%s %s\n", c.header.Render(fmt.Sprintf("[%d/%d]", index, total)), title)
	fmt.Fprintf(c.w, "  %s\n", c.dim.Render("query: "+query))
}

func (c *Console) TitleRetrying(title string, attempt int, wait time.Duration, err error) {
	fmt.Fprintf(c.w, "  %s\n", c.warn.Render(fmt.Sprintf("retry %d in %s: %v", attempt, wait, err)))
}

func (c *Console) TitleFinished(o types.TitleOutcome) {
	switch o.Status {
	case types.StatusSucceeded:
		fmt.Fprintf(c.w, "  %s %s %s\n", c.ok.Render("saved"), o.Record.Path,
			c.dim.Render(fmt.Sprintf("(score %.2f)", o.Score)))
	case types.StatusSkipped:
		fmt.Fprintf(c.w, "%s %s\n", c.dim.Render("skipped"), o.Title)
	default:
		fmt.Fprintf(c.w, "  %s %s\n", c.bad.Render("failed"), o.Error)
		if o.LeftoverPath != "" {
			fmt.Fprintf(c.w, "  %s\n", c.dim.Render("export left at "+o.LeftoverPath))
		}
	}
}

func (c *Console) Pacing(d time.Duration) {
	fmt.Fprintf(c.w, "  %s\n", c.dim.Render(fmt.Sprintf("waiting %s", d.Round(100*time.Millisecond))))
}

func (c *Console) BatchFinished(r acquire.BatchResult) {
	line := fmt.Sprintf("%d succeeded, %d skipped, %d failed (total %d)",
		r.Succeeded, r.Skipped, r.Failed, r.Total())
	fmt.Fprintln(c.w)
	fmt.Fprintln(c.w, c.summary.Render(line))
	for _, o := range r.Outcomes {
		if o.Status == types.StatusFailed {
			fmt.Fprintf(c.w, "  %s %s\n", c.bad.Render("✗"), o.Title)
		}
	}
}

func (c *Console) ChallengeDetected(timeout time.Duration) {
	msg := fmt.Sprintf("Verification challenge detected.\nSolve it in the browser window; waiting up to %s.", timeout)
	fmt.Fprintln(c.w, c.banner.Render(msg))
}

func (c *Console) ChallengeHint(hint string) {
	fmt.Fprintf(c.w, "  %s\n", c.warn.Render(hint))
}

func (c *Console) ChallengeResolved(cleared bool) {
	if cleared {
		fmt.Fprintf(c.w, "  %s\n", c.ok.Render("challenge cleared, continuing"))
		return
	}
	fmt.Fprintf(c.w, "  %s\n", c.bad.Render("challenge not cleared"))
}
