// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citefetch/internal/acquire"
	"github.com/pdiddy/citefetch/pkg/types"
)

// RunFile is the on-disk record of one batch: the configuration it ran
// with, every title outcome and the totals.
type RunFile struct {
	RunID      string               `yaml:"run_id"`
	Input      string               `yaml:"input"`
	StartedAt  time.Time            `yaml:"started_at"`
	FinishedAt time.Time            `yaml:"finished_at"`
	Config     types.PipelineConfig `yaml:"config"`
	Outcomes   []types.TitleOutcome `yaml:"outcomes"`
	Summary    RunSummary           `yaml:"summary"`
}

// RunSummary stores the batch totals.
type RunSummary struct {
	Total     int    `yaml:"total"`
	Succeeded int    `yaml:"succeeded"`
	Skipped   int    `yaml:"skipped"`
	Failed    int    `yaml:"failed"`
	Aborted   string `yaml:"aborted,omitempty"`
}

// NewRunFile assembles a RunFile from a finished batch. abortErr is the
// error that stopped the batch early, if any.
func NewRunFile(runID, input string, started time.Time, cfg types.PipelineConfig, res acquire.BatchResult, abortErr error) RunFile {
	rf := RunFile{
		RunID:      runID,
		Input:      input,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Config:     cfg,
		Outcomes:   res.Outcomes,
		Summary: RunSummary{
			Total:     res.Total(),
			Succeeded: res.Succeeded,
			Skipped:   res.Skipped,
			Failed:    res.Failed,
		},
	}
	if abortErr != nil {
		rf.Summary.Aborted = abortErr.Error()
	}
	return rf
}

// WriteRunFile saves rf as YAML at path.
func WriteRunFile(path string, rf RunFile) error {
	data, err := yaml.Marshal(&rf)
	if err != nil {
		return fmt.Errorf("marshaling run file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadRunFile loads a run file written by WriteRunFile.
func ReadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run file: %w", err)
	}
	var rf RunFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing run file: %w", err)
	}
	return &rf, nil
}
