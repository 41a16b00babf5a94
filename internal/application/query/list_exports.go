// Package query contains read operations. Queries never modify state.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/canvasinfo/canvasinfo/internal/domain/export"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST EXPORTS QUERY
// Reads the export history, most recent first.
// ══════════════════════════════════════════════════════════════════════════════

// ListExportsQuery contains the history filter.
type ListExportsQuery struct {
	// CourseID restricts the list to one course; 0 lists all courses.
	CourseID int64

	// Limit is the number of runs (default 20, maximum 200).
	Limit int
}

// Validate normalizes and checks the query.
func (q *ListExportsQuery) Validate() error {
	if q.CourseID < 0 {
		return errors.New("course id cannot be negative")
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Limit > 200 {
		q.Limit = 200
	}
	return nil
}

// ExportRunDTO is one history entry.
type ExportRunDTO struct {
	ID         string        `json:"id"`
	CourseID   int64         `json:"course_id"`
	CourseName string        `json:"course_name"`
	Category   string        `json:"category,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Status     string        `json:"status"`
	Students   int           `json:"students"`
	Teams      int           `json:"teams"`
	Groupless  int           `json:"groupless"`
	SmallGroup int           `json:"small_group"`
	Outputs    []string      `json:"outputs"`
	Digest     string        `json:"manifest_digest,omitempty"`
	Error      string        `json:"error,omitempty"`

	// ChangedSincePrevious is false when the previous succeeded run of the
	// same course and group category in this list wrote the same manifest.
	ChangedSincePrevious bool `json:"changed_since_previous"`
}

// ListExportsResult contains the history page.
type ListExportsResult struct {
	Runs []ExportRunDTO `json:"runs"`
}

// ListExportsHandler handles ListExportsQuery.
type ListExportsHandler struct {
	runs export.Repository
}

// NewListExportsHandler creates a new ListExportsHandler.
func NewListExportsHandler(runs export.Repository) *ListExportsHandler {
	return &ListExportsHandler{runs: runs}
}

// Handle executes the query.
func (h *ListExportsHandler) Handle(ctx context.Context, q ListExportsQuery) (*ListExportsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("list_exports: invalid query: %w", err)
	}

	runs, err := h.runs.List(ctx, q.CourseID, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("list_exports: %w", err)
	}

	result := &ListExportsResult{Runs: make([]ExportRunDTO, 0, len(runs))}
	for i, run := range runs {
		dto := toExportRunDTO(run)
		dto.ChangedSincePrevious = !run.SameOutputAs(previousOf(runs, i))
		result.Runs = append(result.Runs, dto)
	}

	return result, nil
}

// previousOf returns the next older succeeded run of the same course and
// group category in runs, which are ordered most recent first.
func previousOf(runs []*export.Run, i int) *export.Run {
	for _, r := range runs[i+1:] {
		if r.IsBaselineFor(runs[i]) {
			return r
		}
	}
	return nil
}

func toExportRunDTO(r *export.Run) ExportRunDTO {
	return ExportRunDTO{
		ID:         r.ID,
		CourseID:   r.CourseID,
		CourseName: r.CourseName,
		Category:   r.Category,
		StartedAt:  r.StartedAt,
		Duration:   r.Duration(),
		Status:     string(r.Status),
		Students:   r.Students,
		Teams:      r.Teams,
		Groupless:  r.Groupless,
		SmallGroup: r.SmallGroup,
		Outputs:    r.Outputs,
		Digest:     r.ManifestDigest,
		Error:      r.Error,
	}
}
