package command

import (
	"context"
	"fmt"

	"github.com/canvasinfo/canvasinfo/config"
	"github.com/canvasinfo/canvasinfo/internal/domain/roster"
	"github.com/canvasinfo/canvasinfo/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT COURSE COMMAND
// Saves the fetched course data so exports can be rerun offline.
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotCourseCommand selects the course to snapshot.
type SnapshotCourseCommand struct {
	Course config.Course
}

// SnapshotCourseResult describes the saved snapshot.
type SnapshotCourseResult struct {
	Path        string
	Course      roster.Course
	Students    int
	Memberships int
}

// SnapshotStore persists snapshots. jsonfile.Provider implements it.
type SnapshotStore interface {
	Save(snap *roster.Snapshot) (string, error)
}

// SnapshotCourseHandler handles the SnapshotCourseCommand.
type SnapshotCourseHandler struct {
	source   roster.CourseSource
	store    SnapshotStore
	reporter Reporter
	logger   *logger.Logger
}

// NewSnapshotCourseHandler creates a new SnapshotCourseHandler.
func NewSnapshotCourseHandler(source roster.CourseSource, store SnapshotStore, reporter Reporter, log *logger.Logger) *SnapshotCourseHandler {
	if reporter == nil {
		reporter = NopReporter{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SnapshotCourseHandler{
		source:   source,
		store:    store,
		reporter: reporter,
		logger:   log.With(logger.Component("snapshot")),
	}
}

// Handle fetches the course and stores it.
func (h *SnapshotCourseHandler) Handle(ctx context.Context, cmd SnapshotCourseCommand) (*SnapshotCourseResult, error) {
	if err := cmd.Course.ValidateConnection(); err != nil {
		h.reporter.Error(err.Error())
		return nil, fmt.Errorf("snapshot_course: validation failed: %w", err)
	}
	courseID, _ := cmd.Course.ID()

	h.reporter.Info("Loading course...")
	snap, err := roster.FetchSnapshot(ctx, h.source, courseID, cmd.Course.GroupCategory, h.reporter.Progress)
	if err != nil {
		h.reporter.Error(err.Error())
		return nil, fmt.Errorf("snapshot_course: fetch failed: %w", err)
	}

	if snap.Categories, err = h.source.GroupCategories(ctx, snap.Course); err != nil {
		h.reporter.Error(err.Error())
		return nil, fmt.Errorf("snapshot_course: fetch failed: %w", err)
	}

	path, err := h.store.Save(snap)
	if err != nil {
		h.reporter.Error(err.Error())
		return nil, fmt.Errorf("snapshot_course: %w", err)
	}

	h.logger.Info("snapshot saved",
		logger.CourseID(courseID),
		logger.Path(path),
		logger.Int("students", len(snap.Students)),
	)
	h.reporter.Info("Saved course snapshot: " + path)

	return &SnapshotCourseResult{
		Path:        path,
		Course:      snap.Course,
		Students:    len(snap.Students),
		Memberships: len(snap.Memberships),
	}, nil
}
