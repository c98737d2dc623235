// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package match

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citefetch/internal/page"
	"github.com/pdiddy/citefetch/internal/page/pagetest"
)

// result builds a result block whose title is found by titleLoc.
func result(titleLoc page.Locator, title string) *pagetest.Element {
	return pagetest.NewElement("result", "").Add(titleLoc, pagetest.NewElement("title", title))
}

func TestStripTags(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"[PDF] Attention Is All You Need", "Attention Is All You Need"},
		{"[BOOK][B] Deep Learning", "Deep Learning"},
		{"No tags here", "No tags here"},
		{"Trailing [HTML]", "Trailing"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripTags(tt.in), tt.in)
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Attention Is All You Need", "attention is all you need"))
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
	assert.Equal(t, 1.0, Similarity("", ""))
	// "abcd" vs "bcde": 3 matched of 8 total characters.
	assert.InDelta(t, 0.75, Similarity("abcd", "bcde"), 1e-9)

	s := Similarity("Attention Is All You Need", "Attention is all you need for translation")
	assert.Greater(t, s, 0.5)
	assert.Less(t, s, 1.0)
}

func TestFindBestMatch_ExactTitleScoresOne(t *testing.T) {
	sess := pagetest.NewSession("")
	sess.Doc.Add(page.Class("gs_ri"),
		result(page.Class("gs_rt"), "Transformers in vision"),
		result(page.Class("gs_rt"), "Attention Is All You Need"),
	)

	got, err := New(nil).FindBestMatch(context.Background(), sess, `"Attention Is All You Need"`, "Attention Is All You Need")
	require.NoError(t, err)
	require.True(t, got.Found)
	assert.Equal(t, 1.0, got.Score)
	assert.Equal(t, "Attention Is All You Need", got.Candidate.DisplayTitle)
}

func TestFindBestMatch_TagDoesNotChangeScore(t *testing.T) {
	plain := pagetest.NewSession("")
	plain.Doc.Add(page.Class("gs_ri"), result(page.Class("gs_rt"), "Deep Residual Learning"))
	tagged := pagetest.NewSession("")
	tagged.Doc.Add(page.Class("gs_ri"), result(page.Class("gs_rt"), "[PDF] Deep Residual Learning"))

	m := New(nil)
	a, err := m.FindBestMatch(context.Background(), plain, "", "Deep residual learning for image recognition")
	require.NoError(t, err)
	b, err := m.FindBestMatch(context.Background(), tagged, "", "Deep residual learning for image recognition")
	require.NoError(t, err)
	assert.Equal(t, a.Score, b.Score)
}

func TestFindBestMatch_NoResults(t *testing.T) {
	sess := pagetest.NewSession("")
	got, err := New(nil).FindBestMatch(context.Background(), sess, "", "BERT: Pre-training")
	require.NoError(t, err)
	assert.False(t, got.Found)
}

func TestFindBestMatch_TiesKeepFirst(t *testing.T) {
	first := result(page.Class("gs_rt"), "Same Title")
	second := result(page.Class("gs_rt"), "Same Title")
	sess := pagetest.NewSession("")
	sess.Doc.Add(page.Class("gs_ri"), first, second)

	got, err := New(nil).FindBestMatch(context.Background(), sess, "", "Same Title")
	require.NoError(t, err)
	assert.Same(t, first, got.Candidate.Element)
}

func TestFindBestMatch_FallbackLocators(t *testing.T) {
	sess := pagetest.NewSession("")
	sess.Doc.Add(page.CSS("div[data-aid]"),
		result(page.CSS("a"), "Language Models are Few-Shot Learners"),
		pagetest.NewElement("empty", ""),
	)

	got, err := New(nil).FindBestMatch(context.Background(), sess, "", "Language Models are Few-Shot Learners")
	require.NoError(t, err)
	require.True(t, got.Found)
	assert.Equal(t, 1.0, got.Score)
}

func TestCandidates_SkipsUnreadableTitles(t *testing.T) {
	broken := pagetest.NewElement("title", "")
	broken.TextErr = errors.New("stale element")
	sess := pagetest.NewSession("")
	sess.Doc.Add(page.Class("gs_ri"),
		pagetest.NewElement("result", "").Add(page.Class("gs_rt"), broken),
		result(page.Class("gs_rt"), "Readable"),
	)

	got, err := New(nil).Candidates(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Readable", got[0].DisplayTitle)
}

func TestCandidates_TransportFaultPropagates(t *testing.T) {
	broken := pagetest.NewElement("title", "")
	broken.TextErr = fmt.Errorf("reading node: %w", syscall.ECONNREFUSED)
	sess := pagetest.NewSession("")
	sess.Doc.Add(page.Class("gs_ri"), pagetest.NewElement("result", "").Add(page.Class("gs_rt"), broken))

	_, err := New(nil).Candidates(context.Background(), sess)
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)
}

func TestBest_Empty(t *testing.T) {
	assert.False(t, Best(nil, "anything").Found)
}
