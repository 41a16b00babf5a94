// Package jsonfile stores fetched course data as JSON files and replays it
// as a roster.CourseSource, so exports can be rerun offline.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/canvasinfo/canvasinfo/internal/domain/roster"
	"github.com/canvasinfo/canvasinfo/internal/domain/shared"
)

// Provider reads and writes snapshots in one data directory.
type Provider struct {
	dataDirectory string

	mu     sync.Mutex
	loaded map[int64]*roster.Snapshot
}

var _ roster.CourseSource = (*Provider)(nil)

// New creates a Provider for dataDirectory.
func New(dataDirectory string) *Provider {
	return &Provider{dataDirectory: dataDirectory, loaded: make(map[int64]*roster.Snapshot)}
}

// FilePath returns the snapshot path of a course.
func (p *Provider) FilePath(courseID int64) string {
	return filepath.Join(p.dataDirectory, "course."+strconv.FormatInt(courseID, 10)+".json")
}

// Save writes snap to the data directory, replacing any earlier snapshot of
// the course. The file is written next to its target and renamed into place.
func (p *Provider) Save(snap *roster.Snapshot) (string, error) {
	path := p.FilePath(snap.Course.ID)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", shared.WrapError("jsonfile", "Save", shared.ErrInvalidFormat, "encode snapshot", err)
	}

	if err := os.MkdirAll(p.dataDirectory, 0o755); err != nil {
		return "", shared.WrapError("jsonfile", "Save", shared.ErrIO, fmt.Sprintf("write %s", path), err)
	}

	tmp, err := os.CreateTemp(p.dataDirectory, ".snapshot-*")
	if err != nil {
		return "", shared.WrapError("jsonfile", "Save", shared.ErrIO, fmt.Sprintf("write %s", path), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return "", shared.WrapError("jsonfile", "Save", shared.ErrIO, fmt.Sprintf("write %s", path), err)
	}
	if err := tmp.Close(); err != nil {
		return "", shared.WrapError("jsonfile", "Save", shared.ErrIO, fmt.Sprintf("write %s", path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", shared.WrapError("jsonfile", "Save", shared.ErrIO, fmt.Sprintf("write %s", path), err)
	}

	p.mu.Lock()
	p.loaded[snap.Course.ID] = snap
	p.mu.Unlock()
	return path, nil
}

// Load reads the snapshot of a course.
func (p *Provider) Load(courseID int64) (*roster.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap, ok := p.loaded[courseID]; ok {
		return snap, nil
	}

	path := p.FilePath(courseID)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, shared.NewDomainError("jsonfile", "Load", shared.ErrNotFound,
				fmt.Sprintf("no snapshot for course %d in %s", courseID, p.dataDirectory))
		}
		return nil, shared.WrapError("jsonfile", "Load", shared.ErrIO, fmt.Sprintf("read %s", path), err)
	}

	var snap roster.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, shared.WrapError("jsonfile", "Load", shared.ErrInvalidFormat, fmt.Sprintf("decode %s", path), err)
	}
	if snap.Course.ID != courseID {
		return nil, shared.NewDomainError("jsonfile", "Load", shared.ErrInvalidFormat,
			fmt.Sprintf("%s holds course %d", path, snap.Course.ID))
	}

	p.loaded[courseID] = &snap
	return &snap, nil
}

// Course implements roster.CourseSource.
func (p *Provider) Course(_ context.Context, id int64) (roster.Course, error) {
	snap, err := p.Load(id)
	if err != nil {
		return roster.Course{}, err
	}
	return snap.Course, nil
}

// Students implements roster.CourseSource.
func (p *Provider) Students(_ context.Context, course roster.Course) ([]roster.RawStudent, error) {
	snap, err := p.Load(course.ID)
	if err != nil {
		return nil, err
	}
	return snap.Students, nil
}

// GroupMemberships implements roster.CourseSource. A snapshot only answers
// for the group category it was taken with.
func (p *Provider) GroupMemberships(_ context.Context, course roster.Course, category string, progress roster.ProgressFunc) (map[int64]roster.Membership, error) {
	snap, err := p.Load(course.ID)
	if err != nil {
		return nil, err
	}
	if category != snap.Category {
		return nil, shared.NewDomainError("jsonfile", "GroupMemberships", shared.ErrNotFound,
			fmt.Sprintf("snapshot of course %d was taken for group category %q, not %q", course.ID, snap.Category, category))
	}
	if progress != nil {
		progress(1, 1)
	}
	return snap.Memberships, nil
}

// Enrollments implements roster.CourseSource.
func (p *Provider) Enrollments(_ context.Context, course roster.Course) (map[int64]string, error) {
	snap, err := p.Load(course.ID)
	if err != nil {
		return nil, err
	}
	return snap.Enrollments, nil
}

// GroupCategories implements roster.CourseSource.
func (p *Provider) GroupCategories(_ context.Context, course roster.Course) ([]string, error) {
	snap, err := p.Load(course.ID)
	if err != nil {
		return nil, err
	}
	return snap.Categories, nil
}
