package export

import "context"

// Repository defines the interface for export run persistence.
// This interface is implemented by the infrastructure layer.
type Repository interface {
	// Save persists a run (create or update).
	Save(ctx context.Context, run *Run) error

	// LatestSucceeded returns the most recent succeeded run of a course
	// for a group category. Returns ErrRunNotFound when there is none.
	LatestSucceeded(ctx context.Context, courseID int64, category string) (*Run, error)

	// List returns runs, most recent first. courseID 0 lists all courses.
	List(ctx context.Context, courseID int64, limit int) ([]*Run, error)
}
