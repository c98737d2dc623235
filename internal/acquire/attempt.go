// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/pdiddy/citefetch/internal/download"
	"github.com/pdiddy/citefetch/internal/faults"
	"github.com/pdiddy/citefetch/internal/match"
	"github.com/pdiddy/citefetch/pkg/types"
)

// Content faults raised by the orchestrator itself.
var (
	ErrChallengeTimeout = errors.New("challenge page not cleared in time")
	ErrNoMatch          = errors.New("no search results")
	ErrLowScore         = errors.New("best match below minimum score")
)

// mtimeSlack tolerates coarse file system timestamps when deciding whether
// an export appeared during the current attempt.
const mtimeSlack = time.Second

// SearchURL returns the results page URL for a normalized query.
func SearchURL(base, q string) string {
	return base + "/scholar?hl=en&q=" + url.QueryEscape(q)
}

// attempt runs every stage once against the current session.
func (p *Pipeline) attempt(ctx context.Context, title, q string, outcome *types.TitleOutcome) error {
	since := time.Now().Add(-mtimeSlack)
	sess := p.sess

	if err := sess.Navigate(ctx, SearchURL(p.cfg.BaseURL, q)); err != nil {
		return stageError("searching", err)
	}

	cleared, err := p.gate.Wait(ctx, sess)
	if err != nil {
		return stageError("waiting for challenge", err)
	}
	if !cleared {
		return faults.Content("waiting for challenge", ErrChallengeTimeout)
	}

	best, err := p.matcher.FindBestMatch(ctx, sess, q, title)
	if err != nil {
		return stageError("matching results", err)
	}
	if !best.Found {
		return faults.Content("matching results", ErrNoMatch)
	}
	outcome.Score = best.Score
	p.log.Info("best match", "title", title, "candidate", best.Candidate.DisplayTitle, "score", best.Score)
	if p.cfg.MinScore > 0 && best.Score < p.cfg.MinScore {
		return faults.Content("matching results", fmt.Errorf("%w: %.2f < %.2f", ErrLowScore, best.Score, p.cfg.MinScore))
	}

	if err := p.exporter.Export(ctx, sess, best); err != nil {
		return err
	}

	resolver := download.NewResolver(p.downloads, p.clock)
	resolver.Since = since
	path, err := resolver.Resolve(ctx, sess.DownloadDir())
	if err != nil {
		return err
	}

	rec, err := p.persister.Persist(path, match.StripTags(best.Candidate.DisplayTitle), title)
	if err != nil {
		outcome.LeftoverPath = path
		return err
	}
	outcome.Record = &rec
	return nil
}

// stageError classifies an untyped collaborator error at a step boundary.
// Cancellation passes through unchanged.
func stageError(op string, err error) error {
	var fe *faults.Error
	switch {
	case errors.As(err, &fe):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case faults.IsConnectivity(err):
		return faults.Transport(op, err)
	default:
		return faults.Content(op, err)
	}
}
