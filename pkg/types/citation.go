// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the citefetch pipeline.
// Covers the citation record persisted per title, the per-title outcome
// produced by the orchestrator, and the stage configurations.
package types

import "time"

// EndNoteExt is the file extension of the citation export format.
const EndNoteExt = ".enw"

// TitleStatus is the state of a single title in the acquisition state machine.
type TitleStatus string

const (
	StatusPending    TitleStatus = "pending"
	StatusAttempting TitleStatus = "attempting"
	StatusSucceeded  TitleStatus = "succeeded"
	StatusFailed     TitleStatus = "failed"
	StatusSkipped    TitleStatus = "skipped"
)

// Terminal reports whether the status ends the state machine for a title.
func (s TitleStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// CitationRecord is the persisted citation file for one successfully
// acquired title. It is created once and never mutated.
type CitationRecord struct {
	// Title is the title as requested in the input list.
	Title string `json:"title" yaml:"title"`

	// CanonicalTitle is the %T field of the export, or the requested title
	// when the export carries none.
	CanonicalTitle string `json:"canonical_title" yaml:"canonical_title"`

	// Path is the final, collision-resolved location of the export file.
	Path string `json:"path" yaml:"path"`

	// CreatedAt is when the export was moved into place.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// TitleOutcome is the result of processing one title.
type TitleOutcome struct {
	Title    string          `json:"title" yaml:"title"`
	Status   TitleStatus     `json:"status" yaml:"status"`
	Attempts int             `json:"attempts" yaml:"attempts"`
	Score    float64         `json:"score,omitempty" yaml:"score,omitempty"`
	Record   *CitationRecord `json:"record,omitempty" yaml:"record,omitempty"`

	// ErrorKind is the fault classification of the final error, if any.
	ErrorKind string `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`

	// LeftoverPath is set when the export downloaded but could not be moved;
	// the artifact is left at this location.
	LeftoverPath string `json:"leftover_path,omitempty" yaml:"leftover_path,omitempty"`

	Duration time.Duration `json:"duration" yaml:"duration"`
}
