// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire runs the citation acquisition pipeline over a list of
// titles: normalize, search, clear challenges, match, export, resolve and
// persist, retrying transport faults with a fresh browser session.
package acquire

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/pdiddy/citefetch/internal/download"
	"github.com/pdiddy/citefetch/internal/export"
	"github.com/pdiddy/citefetch/internal/faults"
	"github.com/pdiddy/citefetch/internal/gate"
	"github.com/pdiddy/citefetch/internal/match"
	"github.com/pdiddy/citefetch/internal/page"
	"github.com/pdiddy/citefetch/internal/query"
	"github.com/pdiddy/citefetch/internal/retry"
	"github.com/pdiddy/citefetch/internal/session"
	"github.com/pdiddy/citefetch/pkg/types"
)

const (
	DefaultBaseURL    = "https://scholar.google.com"
	DefaultMaxRetries = 3
)

// BatchResult holds the outcome of a batch acquisition run.
type BatchResult struct {
	Succeeded int
	Failed    int
	Skipped   int
	Outcomes  []types.TitleOutcome
}

// Total returns the total number of titles processed.
func (r BatchResult) Total() int {
	return r.Succeeded + r.Failed + r.Skipped
}

// HasFailures reports whether any title failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

func (r *BatchResult) add(o types.TitleOutcome) {
	switch o.Status {
	case types.StatusSucceeded:
		r.Succeeded++
	case types.StatusSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Ledger remembers outcomes across runs. Lookup reports the last recorded
// outcome for a title.
type Ledger interface {
	Lookup(ctx context.Context, title string) (types.TitleOutcome, bool, error)
	Record(ctx context.Context, o types.TitleOutcome) error
}

// Pipeline acquires citations one title at a time over a single browser
// session. It is not safe for concurrent use.
type Pipeline struct {
	cfg        types.AcquisitionConfig
	downloads  types.DownloadConfig
	sessions   *session.Manager
	normalizer *query.Normalizer
	gate       *gate.Gate
	matcher    *match.Matcher
	exporter   *export.Exporter
	persister  *download.Persister
	ledger     Ledger
	reporter   Reporter
	clock      retry.Clock
	log        *slog.Logger
	jitter     func(min, max time.Duration) time.Duration

	sess page.Session
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the clock used for every wait in the pipeline.
func WithClock(c retry.Clock) Option { return func(p *Pipeline) { p.clock = c } }

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.log = l } }

// WithReporter sets the progress reporter. A reporter that also implements
// gate.Notifier receives challenge notifications.
func WithReporter(r Reporter) Option { return func(p *Pipeline) { p.reporter = r } }

// WithLedger enables skipping titles a previous run already acquired.
func WithLedger(l Ledger) Option { return func(p *Pipeline) { p.ledger = l } }

// WithJitter replaces the pacing delay source.
func WithJitter(f func(min, max time.Duration) time.Duration) Option {
	return func(p *Pipeline) { p.jitter = f }
}

// New assembles a pipeline from cfg. Sessions are started with launcher.
func New(cfg types.PipelineConfig, launcher session.Launcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:       cfg.Acquisition,
		downloads: cfg.Download,
		clock:     retry.RealClock,
		log:       slog.New(slog.DiscardHandler),
		jitter:    uniform,
	}
	for _, o := range opts {
		o(p)
	}
	if p.reporter == nil {
		p.reporter = NopReporter{}
	}
	if p.cfg.BaseURL == "" {
		p.cfg.BaseURL = DefaultBaseURL
	}
	p.cfg.BaseURL = strings.TrimRight(p.cfg.BaseURL, "/")
	if p.cfg.MaxRetries <= 0 {
		p.cfg.MaxRetries = DefaultMaxRetries
	}
	if p.cfg.MinDelay < 0 {
		p.cfg.MinDelay = 0
	}
	if p.cfg.MaxDelay < p.cfg.MinDelay {
		p.cfg.MaxDelay = p.cfg.MinDelay
	}
	terms := p.cfg.ProtectedTerms
	if terms == nil {
		terms = query.DefaultProtectedTerms
	}

	notifier, _ := p.reporter.(gate.Notifier)
	p.sessions = session.NewManager(launcher,
		session.WithMaxAttempts(cfg.Session.MaxAttempts),
		session.WithClock(p.clock),
		session.WithLogger(p.log.With("component", "session")))
	p.normalizer = query.NewNormalizer(terms)
	p.gate = gate.New(cfg.Gate, p.clock, notifier, p.log.With("component", "gate"))
	p.matcher = match.New(p.log.With("component", "match"))
	p.exporter = export.New(cfg.Export, p.log.With("component", "export"))
	p.persister = download.NewPersister(cfg.Download.OutputDir)
	return p
}

// AcquireBatch processes titles in order, pausing a random pacing delay
// between titles that reach the browser. Individual failures never stop the
// batch; an unavailable browser session or a cancelled context does, and is
// returned alongside the outcomes gathered so far. The session is released
// on every exit path.
func (p *Pipeline) AcquireBatch(ctx context.Context, titles []string) (BatchResult, error) {
	var result BatchResult
	defer p.release()

	browsed := false
	for i, title := range titles {
		if prev, ok := p.previous(ctx, title); ok {
			p.reporter.TitleStarted(i+1, len(titles), title, "")
			p.reporter.TitleFinished(prev)
			result.add(prev)
			continue
		}
		if browsed {
			if err := p.pace(ctx); err != nil {
				p.reporter.BatchFinished(result)
				return result, err
			}
		}
		browsed = true

		p.reporter.TitleStarted(i+1, len(titles), title, p.normalizer.Normalize(title))
		outcome, err := p.AcquireTitle(ctx, title)
		if err != nil {
			p.log.Error("aborting batch", "title", title, "error", err)
			p.reporter.TitleFinished(outcome)
			result.add(outcome)
			p.reporter.BatchFinished(result)
			return result, err
		}
		p.reporter.TitleFinished(outcome)
		p.record(ctx, outcome)
		result.add(outcome)
	}
	p.reporter.BatchFinished(result)
	return result, nil
}

// AcquireTitle runs attempts for one title until it succeeds, fails with a
// non-transport fault, or exhausts the transport retry budget. The returned
// error is non-nil only when the batch must stop: the browser session could
// not be started or ctx is done.
func (p *Pipeline) AcquireTitle(ctx context.Context, title string) (types.TitleOutcome, error) {
	start := p.clock.Now()
	outcome := types.TitleOutcome{Title: title, Status: types.StatusAttempting}
	finish := func(err error) types.TitleOutcome {
		outcome.Duration = p.clock.Now().Sub(start)
		if err == nil {
			outcome.Status = types.StatusSucceeded
			return outcome
		}
		outcome.Status = types.StatusFailed
		outcome.ErrorKind = faults.KindOf(err).String()
		outcome.Error = err.Error()
		return outcome
	}

	q := p.normalizer.Normalize(title)
	transportFaults := 0
	for {
		if p.sess == nil {
			sess, err := p.sessions.Acquire(ctx)
			if err != nil {
				return finish(err), err
			}
			p.sess = sess
		}

		outcome.Attempts++
		err := p.attempt(ctx, title, q, &outcome)
		if err == nil {
			return finish(nil), nil
		}
		if ctx.Err() != nil {
			return finish(ctx.Err()), ctx.Err()
		}

		kind := faults.KindOf(err)
		p.log.Warn("attempt failed", "title", title, "attempt", outcome.Attempts, "kind", kind.String(), "error", err)
		if kind != faults.KindTransport {
			return finish(err), nil
		}

		// The session is presumed dead after a transport fault.
		p.release()
		transportFaults++
		if transportFaults >= p.cfg.MaxRetries {
			return finish(err), nil
		}
		wait := retry.Backoff(transportFaults)
		p.reporter.TitleRetrying(title, transportFaults, wait, err)
		if err := p.clock.Sleep(ctx, wait); err != nil {
			return finish(err), err
		}
	}
}

// previous returns a skipped outcome when the ledger holds a succeeded
// record for title whose file is still on disk.
func (p *Pipeline) previous(ctx context.Context, title string) (types.TitleOutcome, bool) {
	if p.ledger == nil || p.cfg.Force {
		return types.TitleOutcome{}, false
	}
	prev, ok, err := p.ledger.Lookup(ctx, title)
	if err != nil {
		p.log.Warn("ledger lookup failed", "title", title, "error", err)
		return types.TitleOutcome{}, false
	}
	if !ok || prev.Status != types.StatusSucceeded || prev.Record == nil {
		return types.TitleOutcome{}, false
	}
	if _, err := os.Stat(prev.Record.Path); err != nil {
		return types.TitleOutcome{}, false
	}
	return types.TitleOutcome{
		Title:  title,
		Status: types.StatusSkipped,
		Score:  prev.Score,
		Record: prev.Record,
	}, true
}

func (p *Pipeline) record(ctx context.Context, o types.TitleOutcome) {
	if p.ledger == nil {
		return
	}
	if err := p.ledger.Record(context.WithoutCancel(ctx), o); err != nil {
		p.log.Warn("ledger record failed", "title", o.Title, "error", err)
	}
}

// pace waits a random delay in [MinDelay, MaxDelay].
func (p *Pipeline) pace(ctx context.Context) error {
	d := p.jitter(p.cfg.MinDelay, p.cfg.MaxDelay)
	if d <= 0 {
		return ctx.Err()
	}
	p.reporter.Pacing(d)
	return p.clock.Sleep(ctx, d)
}

func (p *Pipeline) release() {
	if p.sess == nil {
		return
	}
	p.sessions.Release(p.sess)
	p.sess = nil
}

func uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min+1)
}
