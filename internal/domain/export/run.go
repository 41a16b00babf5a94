// Package export contains the record of export runs: which course was
// exported when, what came out of it and whether every output was written.
// This is a pure domain layer with zero external dependencies.
package export

import (
	"errors"
	"time"
)

// Domain errors for export package.
var (
	ErrInvalidRunID    = errors.New("export: invalid run ID")
	ErrInvalidCourseID = errors.New("export: invalid course ID")
	ErrRunNotFound     = errors.New("export: run not found")
)

// Status is the outcome of an export run.
type Status string

const (
	// StatusSucceeded means every selected output was written.
	StatusSucceeded Status = "succeeded"

	// StatusPartial means the run completed but at least one output failed.
	StatusPartial Status = "partial"

	// StatusFailed means the run halted before writing outputs.
	StatusFailed Status = "failed"
)

// IsValid checks if the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusSucceeded, StatusPartial, StatusFailed:
		return true
	}
	return false
}

// Run is one invocation of the export pipeline.
type Run struct {
	ID         string
	CourseID   int64
	CourseName string
	Category   string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     Status

	// Counts
	Students   int
	Teams      int
	Groupless  int
	SmallGroup int

	// Outputs lists the paths that were written successfully.
	Outputs []string

	// ManifestDigest is the hex encoded hash of the manifest bytes, empty
	// when no manifest was written. Two runs over the same course state
	// have the same digest.
	ManifestDigest string

	// Error is the failure message for failed and partial runs.
	Error string
}

// NewRun starts a run record.
func NewRun(id string, courseID int64, startedAt time.Time) (*Run, error) {
	if id == "" {
		return nil, ErrInvalidRunID
	}
	if courseID <= 0 {
		return nil, ErrInvalidCourseID
	}
	return &Run{
		ID:        id,
		CourseID:  courseID,
		StartedAt: startedAt.UTC(),
	}, nil
}

// Finish records the outcome. A run with an error and written outputs is
// partial; with an error and nothing written it failed.
func (r *Run) Finish(at time.Time, err error) {
	r.FinishedAt = at.UTC()
	switch {
	case err == nil:
		r.Status = StatusSucceeded
	case len(r.Outputs) > 0:
		r.Status = StatusPartial
		r.Error = err.Error()
	default:
		r.Status = StatusFailed
		r.Error = err.Error()
	}
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// SameOutputAs reports whether both runs produced the same manifest.
func (r *Run) SameOutputAs(other *Run) bool {
	return other != nil && r.ManifestDigest != "" && r.ManifestDigest == other.ManifestDigest
}

// IsBaselineFor reports whether r is what next compares its manifest
// against: a succeeded run of the same course and group category.
func (r *Run) IsBaselineFor(next *Run) bool {
	return r.Status == StatusSucceeded && r.CourseID == next.CourseID && r.Category == next.Category
}
