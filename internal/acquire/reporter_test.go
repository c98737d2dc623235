// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/citefetch/pkg/types"
)

func TestTextReporter(t *testing.T) {
	var buf bytes.Buffer
	r := TextReporter{W: &buf}

	r.TitleStarted(1, 2, "Attention Is All You Need", `"Attention Is All You Need"`)
	r.TitleRetrying("Attention Is All You Need", 1, 2*time.Second, errors.New("connection reset"))
	r.TitleFinished(types.TitleOutcome{
		Title:  "Attention Is All You Need",
		Status: types.StatusSucceeded,
		Score:  0.98,
		Record: &types.CitationRecord{Path: "downloads/Attention is all you need.enw"},
	})
	r.Pacing(6240 * time.Millisecond)
	r.TitleFinished(types.TitleOutcome{Title: "BERT", Status: types.StatusFailed, Error: "no results"})
	r.TitleFinished(types.TitleOutcome{Title: "GPT", Status: types.StatusSkipped})
	r.BatchFinished(BatchResult{Succeeded: 1, Failed: 1, Skipped: 1})

	want := []string{
		"[1/2] searching: Attention Is All You Need",
		"  retry 1 in 2s (connection reset)",
		"saved:   downloads/Attention is all you need.enw (score 0.98)",
		"  waiting 6.2s",
		"failed:  BERT (no results)",
		"skipped: GPT (already saved)",
		"",
		"Batch summary: 1 succeeded, 1 skipped, 1 failed (total: 3)",
	}
	got := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(got), len(want), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}
