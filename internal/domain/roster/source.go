package roster

import "context"

// Course identifies a course in the learning management system.
type Course struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ProgressFunc receives paginated fetch progress. total is an estimate and
// may grow while pages are fetched.
type ProgressFunc func(current, total int)

// CourseSource is the course data collaborator of the export pipeline.
//
// Implementations report failures with the shared error kinds:
// ErrUnauthorized, ErrNotFound and ErrConnectivity.
type CourseSource interface {
	// Course loads a course by its numeric id.
	Course(ctx context.Context, id int64) (Course, error)

	// Students returns all users enrolled as students in the course.
	Students(ctx context.Context, course Course) ([]RawStudent, error)

	// GroupMemberships maps user id to group. category restricts the groups
	// to one group set; "" means all groups of the course.
	GroupMemberships(ctx context.Context, course Course, category string, progress ProgressFunc) (map[int64]Membership, error)

	// Enrollments maps user id to enrollment role.
	Enrollments(ctx context.Context, course Course) (map[int64]string, error)

	// GroupCategories lists the names of the course's group sets.
	GroupCategories(ctx context.Context, course Course) ([]string, error)
}

// Snapshot is everything fetched for one export run. It can be stored and
// replayed to get byte-identical output for the same course state.
type Snapshot struct {
	Course      Course               `json:"course"`
	Category    string               `json:"category,omitempty"`
	Students    []RawStudent         `json:"students"`
	Memberships map[int64]Membership `json:"memberships"`
	Enrollments map[int64]string     `json:"enrollments"`
	Categories  []string             `json:"categories,omitempty"`
}

// FetchSnapshot pulls all course data needed for an export from src.
func FetchSnapshot(ctx context.Context, src CourseSource, courseID int64, category string, progress ProgressFunc) (*Snapshot, error) {
	course, err := src.Course(ctx, courseID)
	if err != nil {
		return nil, err
	}

	students, err := src.Students(ctx, course)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Course: course, Category: category, Students: students}
	if len(students) == 0 {
		return snap, nil
	}

	if snap.Memberships, err = src.GroupMemberships(ctx, course, category, progress); err != nil {
		return nil, err
	}
	if snap.Enrollments, err = src.Enrollments(ctx, course); err != nil {
		return nil, err
	}

	return snap, nil
}
