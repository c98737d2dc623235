// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citefetch/internal/faults"
	"github.com/pdiddy/citefetch/internal/page"
	"github.com/pdiddy/citefetch/pkg/types"
)

func TestVisibleText(t *testing.T) {
	html := `<html><head><title>Google Scholar</title><style>.x{}</style></head>
<body>
  <script>var unusual = "our systems have detected unusual traffic";</script>
  <div class="gs_ri"><h3 class="gs_rt">Attention   is all
  you need</h3></div>
</body></html>`

	got, err := VisibleText(html)
	require.NoError(t, err)
	assert.Equal(t, "Google Scholar Attention is all you need", got)
	assert.NotContains(t, got, "unusual traffic")
}

func TestVisibleText_ReportsWidgets(t *testing.T) {
	html := `<html><body>
<form id="gs_captcha_f"><div class="g-recaptcha" data-sitekey="k"></div></form>
</body></html>`

	got, err := VisibleText(html)
	require.NoError(t, err)
	assert.Contains(t, got, page.Widget("gs_captcha"))
	assert.Contains(t, got, page.Widget("recaptcha"))
}

func TestVisibleText_ResultMentioningRecaptchaHasNoWidget(t *testing.T) {
	html := `<html><body><div class="gs_ri">
<h3 class="gs_rt">reCAPTCHA: Human-based character recognition via web security measures</h3>
</div></body></html>`

	got, err := VisibleText(html)
	require.NoError(t, err)
	assert.Contains(t, got, "reCAPTCHA")
	assert.NotContains(t, got, page.Widget("recaptcha"))
}

func TestMousePath(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	from, to := point{X: 10, Y: 20}, point{X: 400, Y: 300}

	path := mousePath(r, from, to)
	require.GreaterOrEqual(t, len(path), 6)
	require.LessOrEqual(t, len(path), 31)
	assert.InDelta(t, from.X, path[0].X, 1e-9)
	assert.InDelta(t, from.Y, path[0].Y, 1e-9)
	assert.InDelta(t, to.X, path[len(path)-1].X, 1e-9)
	assert.InDelta(t, to.Y, path[len(path)-1].Y, 1e-9)

	// No step jumps further than the whole distance.
	total := math.Hypot(to.X-from.X, to.Y-from.Y)
	for i := 1; i < len(path); i++ {
		assert.Less(t, math.Hypot(path[i].X-path[i-1].X, path[i].Y-path[i-1].Y), total)
	}
}

func TestBoxCenter(t *testing.T) {
	c, err := boxCenter([]float64{10, 20, 110, 20, 110, 60, 10, 60})
	require.NoError(t, err)
	assert.Equal(t, point{X: 60, Y: 40}, c)

	_, err = boxCenter([]float64{1, 2})
	assert.Error(t, err)
}

func TestNewLauncherDefaults(t *testing.T) {
	l := NewLauncher(types.BrowserConfig{}, nil)
	assert.Equal(t, DefaultNavigationTimeout, l.cfg.NavigationTimeout)
	assert.Equal(t, DefaultUserAgents, l.cfg.UserAgents)
	assert.NotEmpty(t, l.allocatorOptions(DefaultUserAgents[0]))
}

func closedSession() *Session {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return &Session{ctx: ctx, cancel: cancel}
}

func TestSession_ClosedIsTransportFault(t *testing.T) {
	s := closedSession()

	_, err := s.FindAll(context.Background(), page.CSS("div"))
	assert.True(t, faults.Is(err, faults.KindTransport))
	assert.ErrorIs(t, err, ErrClosed)

	assert.NoError(t, s.Close(context.Background()))
}

func TestSession_Classify(t *testing.T) {
	s := &Session{ctx: context.Background()}

	assert.NoError(t, s.classify(context.Background(), nil))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.classify(cancelled, errors.New("boom")), context.Canceled)

	err := s.classify(context.Background(), fmt.Errorf("dial: %w", syscall.ECONNREFUSED))
	assert.True(t, faults.Is(err, faults.KindTransport))

	err = s.classify(context.Background(), errors.New("could not find node"))
	assert.Equal(t, faults.KindContent, faults.KindOf(err))

	dead := closedSession()
	err = dead.classify(context.Background(), errors.New("websocket gone"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSession_ForeignElement(t *testing.T) {
	s := &Session{ctx: context.Background()}
	err := s.Click(context.Background(), &Element{s: &Session{}}, page.ClickDirect)
	assert.Error(t, err)
}

func TestCallArguments(t *testing.T) {
	args, err := callArguments(`.//a[contains(@onclick,'gs_ocit')]`, "0b5c", 3)
	require.NoError(t, err)
	require.Len(t, args, 3)
	assert.JSONEq(t, `".//a[contains(@onclick,'gs_ocit')]"`, string(args[0].Value))
	assert.JSONEq(t, `"0b5c"`, string(args[1].Value))
	assert.JSONEq(t, `3`, string(args[2].Value))

	_, err = callArguments(make(chan int))
	assert.Error(t, err)
}
