package command

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/canvasinfo/canvasinfo/config"
	"github.com/canvasinfo/canvasinfo/internal/domain/export"
	"github.com/canvasinfo/canvasinfo/internal/domain/roster"
)

func strPtr(s string) *string { return &s }

func student(id int64, email, sis string) roster.RawStudent {
	s := roster.RawStudent{
		ID:        id,
		Email:     strPtr(email),
		ShortName: strPtr("Student " + email),
		LoginID:   strPtr(email),
	}
	if sis != "" {
		s.SISUserID = strPtr(sis)
	}
	return s
}

// fakeSource serves one fixed course.
type fakeSource struct {
	course      roster.Course
	students    []roster.RawStudent
	memberships map[int64]roster.Membership
	roles       map[int64]string
	categories  []string
	courseErr   error

	mu    sync.Mutex
	calls int
}

var _ roster.CourseSource = (*fakeSource)(nil)

func (f *fakeSource) called() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
}

func (f *fakeSource) Course(_ context.Context, id int64) (roster.Course, error) {
	f.called()
	if f.courseErr != nil {
		return roster.Course{}, f.courseErr
	}
	c := f.course
	c.ID = id
	return c, nil
}

func (f *fakeSource) Students(context.Context, roster.Course) ([]roster.RawStudent, error) {
	f.called()
	return f.students, nil
}

func (f *fakeSource) GroupMemberships(_ context.Context, _ roster.Course, _ string, progress roster.ProgressFunc) (map[int64]roster.Membership, error) {
	f.called()
	if progress != nil {
		progress(1, 1)
	}
	return f.memberships, nil
}

func (f *fakeSource) Enrollments(context.Context, roster.Course) (map[int64]string, error) {
	f.called()
	return f.roles, nil
}

func (f *fakeSource) GroupCategories(context.Context, roster.Course) ([]string, error) {
	f.called()
	return f.categories, nil
}

// cachingSource is a fakeSource behind a cache that counts invalidations.
type cachingSource struct {
	*fakeSource
	invalidated []int64
	err         error
}

func (c *cachingSource) Invalidate(_ context.Context, courseID int64) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.invalidated = append(c.invalidated, courseID)
	return 5, nil
}

// scenarioSource is the three student course: a and b in G1, c without a
// group.
func scenarioSource(maxMembership int) *fakeSource {
	return &fakeSource{
		course: roster.Course{Name: "Software Engineering"},
		students: []roster.RawStudent{
			student(1, "a@student.tue.nl", "1001"),
			student(2, "b@student.tue.nl", "1002"),
			student(3, "c@student.tue.nl", "1003"),
		},
		memberships: map[int64]roster.Membership{
			1: {GroupName: "G1", MaxMembership: maxMembership},
			2: {GroupName: "G1", MaxMembership: maxMembership},
		},
		roles: map[int64]string{
			1: roster.RoleStudent,
			2: roster.RoleStudent,
			3: roster.RoleStudent,
		},
		categories: []string{"Project"},
	}
}

// scenarioCourse selects only the manifest, rendered by email with the group
// name as label.
func scenarioCourse(dir string) config.Course {
	c := config.DefaultCourse(config.CanvasConfig{BaseURL: config.DefaultBaseURL, AccessToken: "tok"})
	c.CourseID = "42"
	c.InfoFileFolder = dir
	c.MemberOption = roster.MemberOptionEmail
	c.IncludeGroup = true
	c.IncludeMember = false
	c.FullGroups = true
	c.YAML = true
	return c
}

// recorder collects reporter messages.
type recorder struct {
	mu       sync.Mutex
	infos    []string
	warns    []string
	errors   []string
	progress [][2]int
}

func (r *recorder) Info(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, msg)
}

func (r *recorder) Warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warns = append(r.warns, msg)
}

func (r *recorder) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *recorder) Progress(current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, [2]int{current, total})
}

// memRuns is an in-memory export.Repository.
type memRuns struct {
	mu   sync.Mutex
	runs map[string]*export.Run
}

func newMemRuns() *memRuns {
	return &memRuns{runs: make(map[string]*export.Run)}
}

func (m *memRuns) Save(_ context.Context, run *export.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *memRuns) LatestSucceeded(ctx context.Context, courseID int64, category string) (*export.Run, error) {
	runs, _ := m.List(ctx, courseID, 0)
	next := &export.Run{CourseID: courseID, Category: category}
	for _, r := range runs {
		if r.IsBaselineFor(next) {
			return r, nil
		}
	}
	return nil, export.ErrRunNotFound
}

// last returns the most recent run of a course.
func (m *memRuns) last(t *testing.T, courseID int64) *export.Run {
	t.Helper()
	runs, _ := m.List(context.Background(), courseID, 1)
	require.Len(t, runs, 1)
	return runs[0]
}

func (m *memRuns) List(_ context.Context, courseID int64, limit int) ([]*export.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*export.Run
	for _, r := range m.runs {
		if courseID == 0 || r.CourseID == courseID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
