// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pdiddy/citefetch/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func succeeded(title, path string) types.TitleOutcome {
	return types.TitleOutcome{
		Title:    title,
		Status:   types.StatusSucceeded,
		Attempts: 1,
		Score:    0.97,
		Record:   &types.CitationRecord{Title: title, CanonicalTitle: title, Path: path},
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open #%d: %v", i, err)
		}
		s.Close()
	}
}

func TestRunLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run, err := s.StartRun(ctx)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.ID == "" {
		t.Fatal("run ID is empty")
	}

	run.Succeeded, run.Failed, run.Skipped = 2, 1, 3
	if err := s.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := s.Runs(ctx, 0)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	got := runs[0]
	if got.ID != run.ID || got.Succeeded != 2 || got.Failed != 1 || got.Skipped != 3 {
		t.Errorf("run = %+v", got)
	}
	if got.FinishedAt.IsZero() {
		t.Error("FinishedAt not stored")
	}
}

func TestFinishUnknownRun(t *testing.T) {
	s := testStore(t)
	if err := s.FinishRun(context.Background(), Run{ID: "missing"}); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestRunsNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		s.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		run, err := s.StartRun(ctx)
		if err != nil {
			t.Fatalf("StartRun: %v", err)
		}
		ids = append(ids, run.ID)
	}

	runs, err := s.Runs(ctx, 2)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Errorf("order = %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestRecordAndLookup(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	run, _ := s.StartRun(ctx)

	if err := s.Record(ctx, run.ID, succeeded("Attention Is All You Need", "/out/Attention Is All You Need.enw")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	e, ok, err := s.Lookup(ctx, "Attention Is All You Need")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok {
		t.Fatal("entry not found")
	}
	if e.Status != types.StatusSucceeded || e.RunID != run.ID {
		t.Errorf("entry = %+v", e)
	}
	if e.Record == nil || e.Record.Path != "/out/Attention Is All You Need.enw" {
		t.Errorf("record = %+v", e.Record)
	}
	if e.Score != 0.97 {
		t.Errorf("score = %v, want 0.97", e.Score)
	}

	if _, ok, err := s.Lookup(ctx, "Unknown"); err != nil || ok {
		t.Errorf("Lookup(Unknown) = %v, %v", ok, err)
	}
}

func TestRecordOverwritesLatest(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	run, _ := s.StartRun(ctx)

	failed := types.TitleOutcome{Title: "BERT", Status: types.StatusFailed, Attempts: 3, ErrorKind: "transport", Error: "connection reset"}
	if err := s.Record(ctx, run.ID, failed); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := s.Record(ctx, run.ID, succeeded("BERT", "/out/BERT.enw")); err != nil {
		t.Fatalf("Record succeeded: %v", err)
	}

	e, _, _ := s.Lookup(ctx, "BERT")
	if e.Status != types.StatusSucceeded {
		t.Errorf("status = %s, want succeeded", e.Status)
	}
	if e.Error != "" || e.ErrorKind != "" {
		t.Errorf("stale error kept: %q %q", e.ErrorKind, e.Error)
	}
}

func TestRecordIgnoresSkipped(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	run, _ := s.StartRun(ctx)
	s.Record(ctx, run.ID, succeeded("BERT", "/out/BERT.enw"))

	if err := s.Record(ctx, "other", types.TitleOutcome{Title: "BERT", Status: types.StatusSkipped}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	e, _, _ := s.Lookup(ctx, "BERT")
	if e.Status != types.StatusSucceeded || e.RunID != run.ID {
		t.Errorf("skipped outcome overwrote entry: %+v", e)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	run, _ := s.StartRun(ctx)
	s.Record(ctx, run.ID, succeeded("b", "/out/b.enw"))
	s.Record(ctx, run.ID, succeeded("a", "/out/a.enw"))
	s.Record(ctx, run.ID, types.TitleOutcome{Title: "c", Status: types.StatusFailed, Attempts: 1})

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].Title != "a" || all[2].Title != "c" {
		t.Errorf("List() = %+v", all)
	}

	failed, err := s.List(ctx, types.StatusFailed)
	if err != nil {
		t.Fatalf("List(failed): %v", err)
	}
	if len(failed) != 1 || failed[0].Title != "c" || failed[0].Record != nil {
		t.Errorf("List(failed) = %+v", failed)
	}
}

func TestRecorderBindsRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	run, _ := s.StartRun(ctx)
	r := Recorder{Store: s, RunID: run.ID}

	if err := r.Record(ctx, succeeded("GPT", "/out/GPT.enw")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	o, ok, err := r.Lookup(ctx, "GPT")
	if err != nil || !ok {
		t.Fatalf("Lookup = %v, %v", ok, err)
	}
	if o.Status != types.StatusSucceeded || o.Record == nil {
		t.Errorf("outcome = %+v", o)
	}
	e, _, _ := s.Lookup(ctx, "GPT")
	if e.RunID != run.ID {
		t.Errorf("run id = %q, want %q", e.RunID, run.ID)
	}
}
