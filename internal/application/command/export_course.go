// Package command contains the use cases that act on a course: exporting
// its roster, verifying the settings against Canvas and saving offline
// snapshots.
package command

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/canvasinfo/canvasinfo/config"
	"github.com/canvasinfo/canvasinfo/internal/domain/export"
	"github.com/canvasinfo/canvasinfo/internal/domain/roster"
	"github.com/canvasinfo/canvasinfo/internal/domain/shared"
	"github.com/canvasinfo/canvasinfo/internal/infrastructure/output"
	"github.com/canvasinfo/canvasinfo/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT COURSE COMMAND
// Fetches a course and writes the selected roster outputs:
// normalize → aggregate → filter → render → write.
// ══════════════════════════════════════════════════════════════════════════════

// Warning messages of non-fatal data conditions.
const (
	WarnNoStudents         = "No students found."
	WarnNoGroupSubmissions = "No group submissions found for this group assignment."
)

// ExportCourseCommand contains the settings of one export.
type ExportCourseCommand struct {
	Course config.Course

	// Offline marks a replay from a saved snapshot; no credentials needed.
	Offline bool

	// Refresh drops cached course data before fetching.
	Refresh bool
}

// Validate checks the settings before any data is fetched.
func (c ExportCourseCommand) Validate() error {
	if c.Offline {
		return c.Course.ValidateOffline()
	}
	return c.Course.Validate()
}

// WrittenFile is one output that was written.
type WrittenFile struct {
	Output string
	Path   string
}

// ExportCourseResult contains the outcome of an export.
type ExportCourseResult struct {
	// RunID identifies the run in export history.
	RunID string

	Course roster.Course

	// Students is the number of exported students.
	Students int

	// Rows is the students table, sorted by group.
	Rows []roster.StudentRecord

	// Teams are the manifest blocks, sorted by group name.
	Teams []roster.RenderedTeam

	// Groupless lists emails of students without a group.
	Groupless []string

	// SmallGroup lists emails of students dropped for being in an
	// undersized group.
	SmallGroup []string

	// MissingExternalIDs lists manifest members rendered without an id.
	MissingExternalIDs []string

	Written  []WrittenFile
	Warnings []string

	// ManifestDigest is the hex BLAKE2b-256 of the written manifest.
	ManifestDigest string

	// Unchanged is set when the previous run wrote the same manifest.
	Unchanged bool
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// Writers writes the export files. output.FileWriter implements it.
type Writers interface {
	WriteCSV(path string, records []roster.StudentRecord) error
	WriteXLSX(path string, records []roster.StudentRecord) error
	WriteTeammates(path string, records []roster.StudentRecord) error
	WriteManifest(path string, teams []roster.RenderedTeam) error
}

// Invalidator drops cached data of a course. Sources backed by a cache
// implement it.
type Invalidator interface {
	Invalidate(ctx context.Context, courseID int64) (int, error)
}

// Reporter displays export messages to the user.
type Reporter interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)

	// Progress forwards fetch progress unchanged.
	Progress(current, total int)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ExportCourseHandler handles the ExportCourseCommand.
type ExportCourseHandler struct {
	source   roster.CourseSource
	writers  Writers
	runs     export.Repository
	reporter Reporter
	logger   *logger.Logger
	now      func() time.Time
}

// NewExportCourseHandler creates a new ExportCourseHandler. runs may be nil
// to disable export history.
func NewExportCourseHandler(
	source roster.CourseSource,
	writers Writers,
	runs export.Repository,
	reporter Reporter,
	log *logger.Logger,
) *ExportCourseHandler {
	if reporter == nil {
		reporter = NopReporter{}
	}
	if log == nil {
		log = logger.Nop()
	}

	return &ExportCourseHandler{
		source:   source,
		writers:  writers,
		runs:     runs,
		reporter: reporter,
		logger:   log.With(logger.Component("export")),
		now:      time.Now,
	}
}

// Handle executes the export. Configuration, authentication, not-found and
// connectivity errors halt the run. IO failures of single files do not:
// the other outputs are still written and the IO errors are returned
// joined, together with the result. Other write errors stop the outputs
// that follow.
func (h *ExportCourseHandler) Handle(ctx context.Context, cmd ExportCourseCommand) (*ExportCourseResult, error) {
	if err := cmd.Validate(); err != nil {
		h.reporter.Error(err.Error())
		return nil, fmt.Errorf("export_course: validation failed: %w", err)
	}

	courseID, _ := cmd.Course.ID()
	rc, err := cmd.Course.RenderConfig()
	if err != nil {
		h.reporter.Error(err.Error())
		return nil, fmt.Errorf("export_course: %w", err)
	}

	run, err := export.NewRun(uuid.NewString(), courseID, h.now())
	if err != nil {
		return nil, fmt.Errorf("export_course: %w", err)
	}
	run.Category = cmd.Course.GroupCategory

	log := h.logger.With(logger.CourseID(courseID), logger.RunID(run.ID))
	log.Info("export started", logger.Strings("outputs", cmd.Course.Outputs()))

	if cmd.Refresh {
		h.refresh(ctx, courseID)
	}

	h.reporter.Info("Loading course...")
	snap, err := roster.FetchSnapshot(ctx, h.source, courseID, cmd.Course.GroupCategory, h.reporter.Progress)
	if err != nil {
		h.reporter.Error(err.Error())
		log.Error("fetch failed", logger.Err(err))
		h.record(ctx, run, err)
		return nil, fmt.Errorf("export_course: fetch failed: %w", err)
	}
	run.CourseName = snap.Course.Name

	result := Build(snap, rc)
	result.RunID = run.ID
	for _, w := range result.Warnings {
		h.reporter.Warn(w)
		log.Warn(w)
	}
	for _, email := range result.MissingExternalIDs {
		log.Warn("member without external id", logger.Email(email))
	}

	var writeErr error
	if result.Students > 0 {
		writeErr = h.write(cmd.Course, result, run)
	}

	run.Students = result.Students
	run.Teams = len(result.Teams)
	run.Groupless = len(result.Groupless)
	run.SmallGroup = len(result.SmallGroup)
	run.ManifestDigest = result.ManifestDigest

	if result.Students > 0 && cmd.Course.YAML {
		h.reportLists(result)
	}

	if prev := h.previous(ctx, run); run.SameOutputAs(prev) {
		result.Unchanged = true
		h.reporter.Info(fmt.Sprintf("Team manifest unchanged since the export of %s.",
			prev.StartedAt.Local().Format(time.DateTime)))
	}

	h.record(ctx, run, writeErr)
	log.Info("export finished",
		logger.String("status", string(run.Status)),
		logger.Int("students", run.Students),
		logger.Int("teams", run.Teams),
		logger.Latency(run.Duration()),
	)

	if writeErr != nil {
		return result, fmt.Errorf("export_course: %w", writeErr)
	}
	h.reporter.Info("Done.")
	return result, nil
}

// Build runs the pure part of the pipeline on fetched data.
func Build(snap *roster.Snapshot, rc roster.RenderConfig) *ExportCourseResult {
	result := &ExportCourseResult{Course: snap.Course}

	records := roster.Normalize(snap.Students, snap.Memberships, snap.Enrollments, rc.EmailDomain)
	result.Students = len(records)
	if len(records) == 0 {
		result.Warnings = append(result.Warnings, WarnNoStudents)
		return result
	}

	agg := roster.AggregateGroups(records, roster.GroupSizes(snap.Memberships))
	if agg.Empty() {
		result.Warnings = append(result.Warnings, WarnNoGroupSubmissions)
	}
	for _, r := range agg.Groupless {
		result.Groupless = append(result.Groupless, r.Email)
	}

	filtered := rc.Filter(agg.Teams)
	result.SmallGroup = filtered.SmallGroup
	result.Teams = rc.RenderAll(roster.SortedTeams(filtered.Teams))
	for _, t := range result.Teams {
		result.MissingExternalIDs = append(result.MissingExternalIDs, t.MissingExternalIDs...)
	}
	if n := len(result.MissingExternalIDs); n > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d students have no Git ID; their manifest entries are incomplete.", n))
	}

	result.Rows = roster.SortRecordsByGroup(records)
	return result
}

// Digest returns the hex BLAKE2b-256 of the manifest bytes of teams.
func Digest(teams []roster.RenderedTeam) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if err := output.EncodeManifest(h, teams); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// write writes every selected output, collecting IO errors. Any other
// write error stops the remaining outputs.
func (h *ExportCourseHandler) write(course config.Course, result *ExportCourseResult, run *export.Run) error {
	var (
		errs   []error
		halted bool
	)

	emit := func(name, path, message string, fn func() error) {
		if halted {
			return
		}
		if err := fn(); err != nil {
			h.reporter.Error(err.Error())
			h.logger.Error("write failed", logger.Path(path), logger.Err(err))
			errs = append(errs, err)
			halted = shared.IsFatal(err)
			return
		}
		result.Written = append(result.Written, WrittenFile{Output: name, Path: path})
		run.Outputs = append(run.Outputs, path)
		h.reporter.Info(message + path)
	}

	rows := result.Rows
	if course.CSV {
		path := course.CSVPath()
		emit(config.OutputCSV, path, "Created students info CSV file: ", func() error {
			return h.writers.WriteCSV(path, rows)
		})
	}
	if course.XLSX {
		path := course.XLSXPath()
		emit(config.OutputXLSX, path, "Created students info Excel file: ", func() error {
			return h.writers.WriteXLSX(path, rows)
		})
	}
	if course.YAML {
		path := course.ManifestPath()
		if !halted {
			h.reporter.Info("Create students YAML file...")
		}
		emit(config.OutputManifest, path, "Created students YAML file: ", func() error {
			if err := h.writers.WriteManifest(path, result.Teams); err != nil {
				return err
			}
			digest, err := Digest(result.Teams)
			if err != nil {
				h.logger.Warn("manifest digest failed", logger.Err(err))
				return nil
			}
			result.ManifestDigest = digest
			return nil
		})
	}
	if course.Teammates {
		path := course.TeammatesPath()
		emit(config.OutputTeammates, path, "Created students info Teammates Excel file: ", func() error {
			return h.writers.WriteTeammates(path, rows)
		})
	}

	return errors.Join(errs...)
}

func (h *ExportCourseHandler) reportLists(result *ExportCourseResult) {
	h.reporter.Info(fmt.Sprintf("The following %d students were not in a group:", len(result.Groupless)))
	for _, email := range result.Groupless {
		h.reporter.Info(email)
	}

	h.reporter.Info(fmt.Sprintf("The following %d students were in too small groups, no repository made for them:", len(result.SmallGroup)))
	for _, email := range result.SmallGroup {
		h.reporter.Info(email)
	}
}

// refresh drops the cached data of the course. Failures only warn.
func (h *ExportCourseHandler) refresh(ctx context.Context, courseID int64) {
	inv, ok := h.source.(Invalidator)
	if !ok {
		return
	}
	n, err := inv.Invalidate(ctx, courseID)
	if err != nil {
		h.reporter.Warn("Could not clear the course cache: " + err.Error())
		h.logger.Warn("cache invalidation failed", logger.CourseID(courseID), logger.Err(err))
		return
	}
	h.logger.Debug("course cache cleared", logger.CourseID(courseID), logger.Int("keys", n))
}

// previous returns the last succeeded run of the course and group category
// of run, or nil.
func (h *ExportCourseHandler) previous(ctx context.Context, run *export.Run) *export.Run {
	if h.runs == nil {
		return nil
	}
	prev, err := h.runs.LatestSucceeded(ctx, run.CourseID, run.Category)
	if err != nil {
		if !errors.Is(err, export.ErrRunNotFound) {
			h.logger.Warn("failed to load previous export", logger.Err(err))
		}
		return nil
	}
	return prev
}

// record finishes the run and stores it. History failures never fail the
// export.
func (h *ExportCourseHandler) record(ctx context.Context, run *export.Run, err error) {
	run.Finish(h.now(), err)
	if h.runs == nil {
		return
	}
	if err := h.runs.Save(ctx, run); err != nil {
		h.logger.Warn("failed to save export run", logger.RunID(run.ID), logger.Err(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REPORTERS
// ══════════════════════════════════════════════════════════════════════════════

// NopReporter discards all messages.
type NopReporter struct{}

func (NopReporter) Info(string)       {}
func (NopReporter) Warn(string)       {}
func (NopReporter) Error(string)      {}
func (NopReporter) Progress(int, int) {}
