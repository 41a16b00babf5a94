package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/canvasinfo/canvasinfo/internal/domain/export"
)

// ExportRepository implements export.Repository for PostgreSQL.
type ExportRepository struct {
	conn *Connection
}

var _ export.Repository = (*ExportRepository)(nil)

// NewExportRepository creates a new ExportRepository.
func NewExportRepository(conn *Connection) *ExportRepository {
	return &ExportRepository{conn: conn}
}

const exportRunColumns = `
	id::text, course_id, course_name, category, started_at, finished_at, status,
	students, teams, groupless, small_group, outputs, manifest_digest, error
`

// Save inserts or updates a run.
func (r *ExportRepository) Save(ctx context.Context, run *export.Run) error {
	if _, err := uuid.Parse(run.ID); err != nil {
		return fmt.Errorf("%w: %v", export.ErrInvalidRunID, err)
	}

	query := `
		INSERT INTO export_runs (
			id, course_id, course_name, category, started_at, finished_at, status,
			students, teams, groupless, small_group, outputs, manifest_digest, error
		) VALUES ($1::text::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT(id) DO UPDATE SET
			course_name = EXCLUDED.course_name,
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			students = EXCLUDED.students,
			teams = EXCLUDED.teams,
			groupless = EXCLUDED.groupless,
			small_group = EXCLUDED.small_group,
			outputs = EXCLUDED.outputs,
			manifest_digest = EXCLUDED.manifest_digest,
			error = EXCLUDED.error
	`

	var finishedAt *time.Time
	if !run.FinishedAt.IsZero() {
		finishedAt = &run.FinishedAt
	}
	outputs := run.Outputs
	if outputs == nil {
		outputs = []string{}
	}
	status := run.Status
	if status == "" {
		status = export.StatusFailed
	}

	_, err := r.conn.Exec(ctx, query,
		run.ID,
		run.CourseID,
		run.CourseName,
		run.Category,
		run.StartedAt,
		finishedAt,
		string(status),
		run.Students,
		run.Teams,
		run.Groupless,
		run.SmallGroup,
		outputs,
		run.ManifestDigest,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save export run: %w", err)
	}

	return nil
}

// LatestSucceeded returns the most recent succeeded run of a course for a
// group category.
func (r *ExportRepository) LatestSucceeded(ctx context.Context, courseID int64, category string) (*export.Run, error) {
	query := `SELECT ` + exportRunColumns + `
		FROM export_runs
		WHERE course_id = $1 AND status = $2 AND category = $3
		ORDER BY started_at DESC
		LIMIT 1
	`

	run, err := scanRun(r.conn.QueryRow(ctx, query, courseID, string(export.StatusSucceeded), category))
	if err != nil {
		if IsNoRows(err) {
			return nil, export.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get latest export run: %w", err)
	}
	return run, nil
}

// List returns runs, most recent first.
func (r *ExportRepository) List(ctx context.Context, courseID int64, limit int) ([]*export.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + exportRunColumns + `
		FROM export_runs
		WHERE ($1::bigint = 0 OR course_id = $1::bigint)
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, courseID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query export runs: %w", err)
	}
	defer rows.Close()

	var runs []*export.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan export run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*export.Run, error) {
	var (
		run        export.Run
		finishedAt *time.Time
		status     string
	)

	err := row.Scan(
		&run.ID,
		&run.CourseID,
		&run.CourseName,
		&run.Category,
		&run.StartedAt,
		&finishedAt,
		&status,
		&run.Students,
		&run.Teams,
		&run.Groupless,
		&run.SmallGroup,
		&run.Outputs,
		&run.ManifestDigest,
		&run.Error,
	)
	if err != nil {
		return nil, err
	}

	run.Status = export.Status(status)
	if finishedAt != nil {
		run.FinishedAt = *finishedAt
	}
	return &run, nil
}
