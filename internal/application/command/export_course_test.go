package command

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvasinfo/canvasinfo/internal/domain/export"
	"github.com/canvasinfo/canvasinfo/internal/domain/roster"
	"github.com/canvasinfo/canvasinfo/internal/domain/shared"
	"github.com/canvasinfo/canvasinfo/internal/infrastructure/output"
)

func newHandler(src roster.CourseSource, runs export.Repository, rep Reporter) *ExportCourseHandler {
	h := NewExportCourseHandler(src, output.NewFileWriter(), runs, rep, nil)

	clock := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	h.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return h
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestExportCourse_FullGroupScenario(t *testing.T) {
	dir := t.TempDir()
	rep := &recorder{}
	h := newHandler(scenarioSource(2), nil, rep)

	result, err := h.Handle(context.Background(), ExportCourseCommand{Course: scenarioCourse(dir)})
	require.NoError(t, err)

	assert.Equal(t, "G1:\n\tmembers:[a@student.tue.nl, b@student.tue.nl]\n",
		readFile(t, filepath.Join(dir, "students.yaml")))
	assert.Equal(t, []string{"c@student.tue.nl"}, result.Groupless)
	assert.Empty(t, result.SmallGroup)
	assert.Equal(t, 3, result.Students)
	assert.Len(t, result.ManifestDigest, 64)

	assert.Contains(t, rep.infos, "The following 1 students were not in a group:")
	assert.Contains(t, rep.infos, "c@student.tue.nl")
	assert.Contains(t, rep.infos, "Done.")
	assert.Equal(t, [][2]int{{1, 1}}, rep.progress)
	assert.Empty(t, rep.errors)
}

func TestExportCourse_UndersizedGroupDropped(t *testing.T) {
	dir := t.TempDir()
	h := newHandler(scenarioSource(3), nil, nil)

	result, err := h.Handle(context.Background(), ExportCourseCommand{Course: scenarioCourse(dir)})
	require.NoError(t, err)

	assert.Equal(t, "", readFile(t, filepath.Join(dir, "students.yaml")))
	assert.Empty(t, result.Teams)
	assert.Equal(t, []string{"a@student.tue.nl", "b@student.tue.nl"}, result.SmallGroup)
	assert.Equal(t, []string{"c@student.tue.nl"}, result.Groupless)
}

func TestExportCourse_AllGroupsWhenFilterOff(t *testing.T) {
	dir := t.TempDir()
	course := scenarioCourse(dir)
	course.FullGroups = false
	h := newHandler(scenarioSource(3), nil, nil)

	result, err := h.Handle(context.Background(), ExportCourseCommand{Course: course})
	require.NoError(t, err)

	require.Len(t, result.Teams, 1)
	assert.Empty(t, result.SmallGroup)
}

func TestExportCourse_Idempotent(t *testing.T) {
	dir := t.TempDir()
	runs := newMemRuns()
	rep := &recorder{}
	h := newHandler(scenarioSource(2), runs, rep)
	cmd := ExportCourseCommand{Course: scenarioCourse(dir)}
	path := filepath.Join(dir, "students.yaml")

	first, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	firstBytes := readFile(t, path)
	assert.False(t, first.Unchanged)

	second, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, firstBytes, readFile(t, path))
	assert.Equal(t, first.ManifestDigest, second.ManifestDigest)
	assert.True(t, second.Unchanged)
	assert.NotEqual(t, first.RunID, second.RunID)

	history, err := runs.List(context.Background(), 42, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, run := range history {
		assert.Equal(t, export.StatusSucceeded, run.Status)
		assert.Equal(t, "Software Engineering", run.CourseName)
		assert.Equal(t, 3, run.Students)
		assert.Equal(t, 1, run.Teams)
		assert.Equal(t, 1, run.Groupless)
		assert.Equal(t, []string{path}, run.Outputs)
	}
}

func TestExportCourse_UnchangedSkipsFailedRun(t *testing.T) {
	dir := t.TempDir()
	src := scenarioSource(2)
	runs := newMemRuns()
	h := newHandler(src, runs, nil)
	cmd := ExportCourseCommand{Course: scenarioCourse(dir)}
	ctx := context.Background()

	first, err := h.Handle(ctx, cmd)
	require.NoError(t, err)

	src.courseErr = shared.ErrCourseNotFound
	_, err = h.Handle(ctx, cmd)
	require.Error(t, err)
	assert.Equal(t, export.StatusFailed, runs.last(t, 42).Status)

	src.courseErr = nil
	third, err := h.Handle(ctx, cmd)
	require.NoError(t, err)

	assert.Equal(t, first.ManifestDigest, third.ManifestDigest)
	assert.True(t, third.Unchanged)
}

func TestExportCourse_UnchangedPerCategory(t *testing.T) {
	dir := t.TempDir()
	runs := newMemRuns()
	h := newHandler(scenarioSource(2), runs, nil)
	ctx := context.Background()

	course := scenarioCourse(dir)
	_, err := h.Handle(ctx, ExportCourseCommand{Course: course})
	require.NoError(t, err)

	course.GroupCategory = "Project"
	other, err := h.Handle(ctx, ExportCourseCommand{Course: course})
	require.NoError(t, err)
	assert.False(t, other.Unchanged)

	again, err := h.Handle(ctx, ExportCourseCommand{Course: course})
	require.NoError(t, err)
	assert.True(t, again.Unchanged)
}

func TestExportCourse_ConfigErrorBeforeFetch(t *testing.T) {
	src := scenarioSource(2)
	rep := &recorder{}
	h := newHandler(src, nil, rep)

	course := scenarioCourse(t.TempDir())
	course.YAML = false
	course.AccessToken = ""

	_, err := h.Handle(context.Background(), ExportCourseCommand{Course: course})

	require.Error(t, err)
	assert.True(t, shared.IsConfig(err))
	assert.ErrorIs(t, err, shared.ErrNoOutputSelected)
	assert.ErrorIs(t, err, shared.ErrMissingAccessToken)
	assert.Zero(t, src.calls, "no data fetched")
	assert.NotEmpty(t, rep.errors)
}

func TestExportCourse_InvalidMemberOptionWithoutManifest(t *testing.T) {
	src := scenarioSource(2)
	rep := &recorder{}
	h := newHandler(src, nil, rep)

	course := scenarioCourse(t.TempDir())
	course.YAML = false
	course.CSV = true
	course.MemberOption = "bogus"

	_, err := h.Handle(context.Background(), ExportCourseCommand{Course: course})

	require.Error(t, err)
	assert.True(t, shared.IsConfig(err))
	assert.Contains(t, err.Error(), "validation failed")
	assert.Zero(t, src.calls, "no data fetched")
}

func TestExportCourse_FetchErrorHalts(t *testing.T) {
	src := scenarioSource(2)
	src.courseErr = shared.ErrCourseNotFound
	runs := newMemRuns()
	rep := &recorder{}
	h := newHandler(src, runs, rep)
	dir := t.TempDir()

	_, err := h.Handle(context.Background(), ExportCourseCommand{Course: scenarioCourse(dir)})

	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
	assert.Contains(t, rep.errors[0], "Non-existing Course ID")
	assert.NoFileExists(t, filepath.Join(dir, "students.yaml"))

	assert.Equal(t, export.StatusFailed, runs.last(t, 42).Status)
}

func TestExportCourse_IOErrorDoesNotBlockOtherOutputs(t *testing.T) {
	dir := t.TempDir()
	course := scenarioCourse(dir)
	course.CSV = true
	course.XLSX = true
	course.CSVInfoFile = filepath.Join("missing", "students.csv")
	runs := newMemRuns()
	h := newHandler(scenarioSource(2), runs, nil)

	result, err := h.Handle(context.Background(), ExportCourseCommand{Course: course})

	require.Error(t, err)
	assert.True(t, shared.IsIO(err))
	require.NotNil(t, result)

	var written []string
	for _, w := range result.Written {
		written = append(written, w.Output)
	}
	assert.Equal(t, []string{"xlsx", "yaml"}, written)
	assert.FileExists(t, filepath.Join(dir, "student-info.xlsx"))
	assert.FileExists(t, filepath.Join(dir, "students.yaml"))

	assert.Equal(t, export.StatusPartial, runs.last(t, 42).Status)
}

// brokenCSV fails the CSV output with a non-IO error.
type brokenCSV struct {
	*output.FileWriter
}

func (brokenCSV) WriteCSV(string, []roster.StudentRecord) error {
	return errors.New("csv encoder unavailable")
}

func TestExportCourse_NonIOWriteErrorStopsOutputs(t *testing.T) {
	dir := t.TempDir()
	course := scenarioCourse(dir)
	course.CSV = true
	course.XLSX = true
	runs := newMemRuns()
	h := NewExportCourseHandler(scenarioSource(2), brokenCSV{output.NewFileWriter()}, runs, nil, nil)

	result, err := h.Handle(context.Background(), ExportCourseCommand{Course: course})

	require.Error(t, err)
	assert.False(t, shared.IsIO(err))
	require.NotNil(t, result)
	assert.Empty(t, result.Written)
	assert.NoFileExists(t, filepath.Join(dir, "student-info.xlsx"))
	assert.NoFileExists(t, filepath.Join(dir, "students.yaml"))
	assert.Equal(t, export.StatusFailed, runs.last(t, 42).Status)
}

func TestExportCourse_RefreshInvalidatesCache(t *testing.T) {
	src := &cachingSource{fakeSource: scenarioSource(2)}
	h := newHandler(src, nil, nil)
	course := scenarioCourse(t.TempDir())

	_, err := h.Handle(context.Background(), ExportCourseCommand{Course: course})
	require.NoError(t, err)
	assert.Empty(t, src.invalidated)

	_, err = h.Handle(context.Background(), ExportCourseCommand{Course: course, Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, src.invalidated)
}

func TestExportCourse_RefreshFailureWarns(t *testing.T) {
	src := &cachingSource{fakeSource: scenarioSource(2), err: errors.New("redis: connection refused")}
	rep := &recorder{}
	h := newHandler(src, nil, rep)

	result, err := h.Handle(context.Background(), ExportCourseCommand{Course: scenarioCourse(t.TempDir()), Refresh: true})

	require.NoError(t, err)
	assert.Len(t, result.Teams, 1)
	require.Len(t, rep.warns, 1)
	assert.Contains(t, rep.warns[0], "Could not clear the course cache")
}

func TestExportCourse_NoStudents(t *testing.T) {
	dir := t.TempDir()
	src := scenarioSource(2)
	src.students = nil
	rep := &recorder{}
	h := newHandler(src, nil, rep)

	result, err := h.Handle(context.Background(), ExportCourseCommand{Course: scenarioCourse(dir)})

	require.NoError(t, err)
	assert.Zero(t, result.Students)
	assert.Equal(t, []string{WarnNoStudents}, rep.warns)
	assert.NoFileExists(t, filepath.Join(dir, "students.yaml"))
}

func TestBuild_NoGroupSubmissions(t *testing.T) {
	snap := &roster.Snapshot{
		Students: []roster.RawStudent{student(1, "a@student.tue.nl", "1")},
	}

	result := Build(snap, roster.RenderConfig{IncludeGroupName: true})

	assert.Equal(t, []string{WarnNoGroupSubmissions}, result.Warnings)
	assert.Equal(t, []string{"a@student.tue.nl"}, result.Groupless)
	assert.Empty(t, result.Teams)
}

func TestBuild_BothIdentityMode(t *testing.T) {
	snap := &roster.Snapshot{
		Students:    []roster.RawStudent{student(1, "x@y.nl", "42")},
		Memberships: map[int64]roster.Membership{1: {GroupName: "T"}},
	}

	result := Build(snap, roster.RenderConfig{IdentityMode: roster.IdentityBoth, IncludeGroupName: true})

	want := []roster.RenderedTeam{{Label: "T", Members: []string{"(x@y.nl, 42)"}}}
	if diff := cmp.Diff(want, result.Teams); diff != "" {
		t.Errorf("teams mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_MissingExternalIDs(t *testing.T) {
	snap := &roster.Snapshot{
		Students: []roster.RawStudent{
			student(1, "a@student.tue.nl", ""),
			student(2, "b@student.tue.nl", "2"),
		},
		Memberships: map[int64]roster.Membership{
			1: {GroupName: "G1"},
			2: {GroupName: "G1"},
		},
	}

	result := Build(snap, roster.RenderConfig{IdentityMode: roster.IdentityExternalID, IncludeGroupName: true})

	require.Len(t, result.Teams, 1)
	assert.Equal(t, []string{"", "2"}, result.Teams[0].Members)
	assert.Equal(t, []string{"a@student.tue.nl"}, result.MissingExternalIDs)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "no Git ID")
}

func TestBuild_SortsTeamsAndRows(t *testing.T) {
	snap := &roster.Snapshot{
		Students: []roster.RawStudent{
			student(1, "a@student.tue.nl", "1"),
			student(2, "b@student.tue.nl", "2"),
			student(3, "c@student.tue.nl", "3"),
		},
		Memberships: map[int64]roster.Membership{
			1: {GroupName: "b-team"},
			2: {GroupName: "B-team"},
			3: {GroupName: "a-team"},
		},
	}

	result := Build(snap, roster.RenderConfig{IncludeGroupName: true})

	var labels, rowGroups []string
	for _, team := range result.Teams {
		labels = append(labels, team.Label)
	}
	for _, r := range result.Rows {
		rowGroups = append(rowGroups, r.Group)
	}
	assert.Equal(t, []string{"B-team", "a-team", "b-team"}, labels)
	assert.Equal(t, []string{"B-team", "a-team", "b-team"}, rowGroups)
}

func TestDigest(t *testing.T) {
	a := []roster.RenderedTeam{{Label: "G1", Members: []string{"a"}}}
	b := []roster.RenderedTeam{{Label: "G1", Members: []string{"b"}}}

	da, err := Digest(a)
	require.NoError(t, err)
	db, err := Digest(b)
	require.NoError(t, err)
	again, err := Digest(a)
	require.NoError(t, err)

	assert.Len(t, da, 64)
	assert.Equal(t, da, again)
	assert.NotEqual(t, da, db)
}

func TestExportCourse_OfflineNeedsNoCredentials(t *testing.T) {
	dir := t.TempDir()
	course := scenarioCourse(dir)
	course.AccessToken = ""
	h := newHandler(scenarioSource(2), nil, nil)

	_, err := h.Handle(context.Background(), ExportCourseCommand{Course: course})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrMissingAccessToken)

	result, err := h.Handle(context.Background(), ExportCourseCommand{Course: course, Offline: true})
	require.NoError(t, err)
	assert.Len(t, result.Teams, 1)
	assert.FileExists(t, filepath.Join(dir, "students.yaml"))
}
