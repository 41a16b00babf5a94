package export

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRun(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))

	run, err := NewRun("run-1", 42, start)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, run.StartedAt.Location())

	_, err = NewRun("", 42, start)
	assert.ErrorIs(t, err, ErrInvalidRunID)

	_, err = NewRun("run-1", 0, start)
	assert.ErrorIs(t, err, ErrInvalidCourseID)
}

func TestRun_Finish(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Second)
	failure := errors.New("write students.csv: disk full")

	tests := []struct {
		name    string
		outputs []string
		err     error
		want    Status
	}{
		{"succeeded", []string{"students.yaml"}, nil, StatusSucceeded},
		{"partial", []string{"students.yaml"}, failure, StatusPartial},
		{"failed", nil, failure, StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, err := NewRun("run-1", 42, start)
			require.NoError(t, err)
			run.Outputs = tt.outputs

			run.Finish(end, tt.err)

			assert.Equal(t, tt.want, run.Status)
			assert.True(t, run.Status.IsValid())
			assert.Equal(t, 3*time.Second, run.Duration())
			if tt.err != nil {
				assert.Equal(t, tt.err.Error(), run.Error)
			}
		})
	}
}

func TestRun_SameOutputAs(t *testing.T) {
	a := &Run{ManifestDigest: "abc"}
	b := &Run{ManifestDigest: "abc"}
	c := &Run{}

	assert.True(t, a.SameOutputAs(b))
	assert.False(t, a.SameOutputAs(nil))
	assert.False(t, c.SameOutputAs(&Run{}))
	assert.False(t, Status("unknown").IsValid())
}

func TestRun_IsBaselineFor(t *testing.T) {
	next := &Run{CourseID: 42, Category: "Project"}

	tests := []struct {
		name string
		run  Run
		want bool
	}{
		{"succeeded same category", Run{CourseID: 42, Category: "Project", Status: StatusSucceeded}, true},
		{"failed", Run{CourseID: 42, Category: "Project", Status: StatusFailed}, false},
		{"partial", Run{CourseID: 42, Category: "Project", Status: StatusPartial}, false},
		{"other category", Run{CourseID: 42, Category: "Labs", Status: StatusSucceeded}, false},
		{"other course", Run{CourseID: 7, Category: "Project", Status: StatusSucceeded}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.run.IsBaselineFor(next))
		})
	}
}
