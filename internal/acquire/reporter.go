// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/citefetch/pkg/types"
)

// Reporter receives progress events from a batch run.
type Reporter interface {
	TitleStarted(index, total int, title, query string)
	TitleRetrying(title string, attempt int, wait time.Duration, err error)
	TitleFinished(o types.TitleOutcome)
	Pacing(d time.Duration)
	BatchFinished(r BatchResult)
}

// NopReporter discards every event.
type NopReporter struct{}

func (NopReporter) TitleStarted(int, int, string, string)           {}
func (NopReporter) TitleRetrying(string, int, time.Duration, error) {}
func (NopReporter) TitleFinished(types.TitleOutcome)                {}
func (NopReporter) Pacing(time.Duration)                            {}
func (NopReporter) BatchFinished(BatchResult)                       {}

// TextReporter writes one plain line per event.
type TextReporter struct {
	W io.Writer
}

func (r TextReporter) TitleStarted(index, total int, title, query string) {
	fmt.Fprintf(r.W, "[%d/%d] searching: %s\n", index, total, title)
}

func (r TextReporter) TitleRetrying(title string, attempt int, wait time.Duration, err error) {
	fmt.Fprintf(r.W, "  retry %d in %s (%v)\n", attempt, wait, err)
}

func (r TextReporter) TitleFinished(o types.TitleOutcome) {
	switch o.Status {
	case types.StatusSucceeded:
		fmt.Fprintf(r.W, "saved:   %s (score %.2f)\n", o.Record.Path, o.Score)
	case types.StatusSkipped:
		fmt.Fprintf(r.W, "skipped: %s (already saved)\n", o.Title)
	default:
		fmt.Fprintf(r.W, "failed:  %s (%s)\n", o.Title, o.Error)
	}
}

func (r TextReporter) Pacing(d time.Duration) {
	fmt.Fprintf(r.W, "  waiting %s\n", d.Round(100*time.Millisecond))
}

func (r TextReporter) BatchFinished(res BatchResult) {
	fmt.Fprintf(r.W, "\nBatch summary: %d succeeded, %d skipped, %d failed (total: %d)\n",
		res.Succeeded, res.Skipped, res.Failed, res.Total())
}
