// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citefetch/internal/faults"
	"github.com/pdiddy/citefetch/internal/match"
	"github.com/pdiddy/citefetch/internal/page"
	"github.com/pdiddy/citefetch/internal/page/pagetest"
	"github.com/pdiddy/citefetch/pkg/types"
)

// fixture is a result page where clicking the cite control opens the panel.
type fixture struct {
	sess   *pagetest.Session
	result *pagetest.Element
	cite   *pagetest.Element
	link   *pagetest.Element
}

func newFixture(citeLoc, linkLoc page.Locator) *fixture {
	f := &fixture{
		sess:   pagetest.NewSession(""),
		result: pagetest.NewElement("result", ""),
		cite:   pagetest.NewElement("cite", "Cite"),
		link:   pagetest.NewElement("endnote", "EndNote"),
	}
	f.result.Add(citeLoc, f.cite)
	f.cite.OnClick = func() error {
		f.sess.Doc.Add(PanelLocator, pagetest.NewElement("panel", ""))
		f.sess.Doc.Add(linkLoc, f.link)
		return nil
	}
	return f
}

func (f *fixture) match() match.Result {
	return match.Result{Candidate: match.Candidate{DisplayTitle: "t", Element: f.result}, Score: 1, Found: true}
}

func fastConfig() types.ExportConfig {
	return types.ExportConfig{LinkAttempts: 3}
}

func TestExport_HappyPath(t *testing.T) {
	f := newFixture(page.Class("gs_or_cit"), LinkLocators[0])
	err := New(fastConfig(), nil).Export(context.Background(), f.sess, f.match())
	require.NoError(t, err)
	assert.Equal(t, []page.ClickStrategy{page.ClickDirect}, f.cite.Clicks)
	assert.Equal(t, []page.ClickStrategy{page.ClickDirect}, f.link.Clicks)
}

func TestExport_FallbackLocators(t *testing.T) {
	f := newFixture(page.LinkText("Cite"), page.LinkText("EndNote"))
	err := New(fastConfig(), nil).Export(context.Background(), f.sess, f.match())
	require.NoError(t, err)
	assert.Len(t, f.link.Clicks, 1)

	// Each earlier link locator was waited on LinkAttempts times.
	waits := map[page.Locator]int{}
	for _, loc := range f.sess.Waited {
		waits[loc]++
	}
	assert.Equal(t, 3, waits[LinkLocators[0]])
	assert.Equal(t, 3, waits[LinkLocators[1]])
	assert.Equal(t, 1, waits[LinkLocators[2]])
}

func TestExport_SimulatedClickFallback(t *testing.T) {
	f := newFixture(page.Class("gs_or_cit"), LinkLocators[0])
	f.cite.ClickErr = map[page.ClickStrategy]error{page.ClickDirect: errors.New("element not interactable")}

	err := New(fastConfig(), nil).Export(context.Background(), f.sess, f.match())
	require.NoError(t, err)
	assert.Equal(t, []page.ClickStrategy{page.ClickDirect, page.ClickSimulated}, f.cite.Clicks)
}

func TestExport_NoCiteControl(t *testing.T) {
	sess := pagetest.NewSession("")
	m := match.Result{Candidate: match.Candidate{Element: pagetest.NewElement("result", "")}, Found: true}

	err := New(fastConfig(), nil).Export(context.Background(), sess, m)
	assert.ErrorIs(t, err, ErrNoCiteControl)
	assert.Equal(t, faults.KindContent, faults.KindOf(err))
}

func TestExport_MatchLess(t *testing.T) {
	err := New(fastConfig(), nil).Export(context.Background(), pagetest.NewSession(""), match.Result{})
	assert.ErrorIs(t, err, ErrNoCiteControl)
}

func TestExport_PanelMissing(t *testing.T) {
	f := newFixture(page.Class("gs_or_cit"), LinkLocators[0])
	f.cite.OnClick = nil

	err := New(fastConfig(), nil).Export(context.Background(), f.sess, f.match())
	assert.ErrorIs(t, err, ErrPanelMissing)
	assert.ErrorIs(t, err, page.ErrNotFound)
	assert.True(t, faults.Is(err, faults.KindContent))
}

func TestExport_NoExportLink(t *testing.T) {
	f := newFixture(page.Class("gs_or_cit"), LinkLocators[0])
	f.cite.OnClick = func() error {
		f.sess.Doc.Add(PanelLocator, pagetest.NewElement("panel", ""))
		return nil
	}

	err := New(fastConfig(), nil).Export(context.Background(), f.sess, f.match())
	assert.ErrorIs(t, err, ErrNoExportLink)
	assert.True(t, faults.Is(err, faults.KindContent))
}

func TestExport_ClickFailed(t *testing.T) {
	f := newFixture(page.Class("gs_or_cit"), LinkLocators[0])
	f.link.ClickErr = map[page.ClickStrategy]error{
		page.ClickDirect:    errors.New("intercepted"),
		page.ClickSimulated: errors.New("no box model"),
	}

	err := New(fastConfig(), nil).Export(context.Background(), f.sess, f.match())
	assert.ErrorIs(t, err, ErrClickFailed)
	assert.True(t, faults.Is(err, faults.KindContent))
}

func TestExport_TransportFault(t *testing.T) {
	f := newFixture(page.Class("gs_or_cit"), LinkLocators[0])
	f.cite.ClickErr = map[page.ClickStrategy]error{
		page.ClickDirect: fmt.Errorf("dispatch: %w", syscall.ECONNRESET),
	}

	err := New(fastConfig(), nil).Export(context.Background(), f.sess, f.match())
	assert.True(t, faults.Is(err, faults.KindTransport))
	assert.Equal(t, []page.ClickStrategy{page.ClickDirect}, f.cite.Clicks)
}
