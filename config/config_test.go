package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvasinfo/canvasinfo/internal/domain/roster"
	"github.com/canvasinfo/canvasinfo/internal/domain/shared"
)

// clearEnv blanks every variable Load reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CANVASINFO_CONFIG", "CANVAS_COURSE_ID", "CANVAS_BASE_URL", "CANVAS_ACCESS_TOKEN",
		"CANVAS_TIMEOUT", "CANVAS_RATE_LIMIT", "CANVAS_RATE_LIMIT_BURST", "CANVAS_GROUP_CONCURRENCY",
		"DATABASE_URL", "DB_MAX_CONNS", "DB_CONNECT_TIMEOUT",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_TTL", "REDIS_DISABLED",
		"CANVASINFO_SNAPSHOT_DIR", "CANVASINFO_OUTPUT_DIR", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const yamlSettings = `
current_course: "4242"
canvas:
  base_url: https://canvas.example.edu
  access_token: file-token
  timeout: 5s
redis:
  addr: localhost:6379
  ttl: 1m
courses:
  "4242":
    course_name: Software Engineering
    member_option: email
    include_member: false
    yaml: true
    csv: true
  "7":
    base_url: https://other.example.edu
    full_groups: false
`

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "settings.yaml", yamlSettings)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, 5*time.Second, cfg.Canvas.RequestTimeout)
	assert.Equal(t, time.Minute, cfg.Redis.TTL)
	assert.True(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Database.Enabled())

	c := cfg.Course
	assert.Equal(t, "4242", c.CourseID)
	assert.Equal(t, "Software Engineering", c.CourseName)
	assert.Equal(t, "https://canvas.example.edu", c.BaseURL, "inherited from canvas section")
	assert.Equal(t, "file-token", c.AccessToken)
	assert.Equal(t, "email", c.MemberOption)
	assert.True(t, c.IncludeGroup, "default kept")
	assert.False(t, c.IncludeMember)
	assert.True(t, c.FullGroups)
	assert.Equal(t, []string{OutputCSV, OutputManifest}, c.Outputs())

	other := cfg.Courses["7"]
	assert.Equal(t, "7", other.CourseID)
	assert.Equal(t, "https://other.example.edu", other.BaseURL)
	assert.False(t, other.FullGroups)
}

func TestLoad_TOML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "settings.toml", `
current_course = "4242"

[canvas]
access_token = "file-token"
group_concurrency = 3

[courses."4242"]
member_option = "gitid"
include_initials = true
group_category = "Project"
xlsx = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Canvas.GroupConcurrency)
	c := cfg.Course
	assert.Equal(t, DefaultBaseURL, c.BaseURL)
	assert.Equal(t, "gitid", c.MemberOption)
	assert.True(t, c.IncludeInitials)
	assert.True(t, c.IncludeMember, "default kept")
	assert.Equal(t, "Project", c.GroupCategory)
	assert.Equal(t, []string{OutputXLSX}, c.Outputs())
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "settings.yaml", yamlSettings)
	t.Setenv("CANVAS_COURSE_ID", "7")
	t.Setenv("CANVAS_ACCESS_TOKEN", "env-token")
	t.Setenv("CANVASINFO_OUTPUT_DIR", "/tmp/out")
	t.Setenv("REDIS_DISABLED", "true")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7", cfg.Course.CourseID)
	assert.Equal(t, "https://other.example.edu", cfg.Course.BaseURL)
	assert.Equal(t, "env-token", cfg.Course.AccessToken)
	assert.Equal(t, filepath.Join("/tmp/out", DefaultStudentsFile), cfg.Course.ManifestPath())
	assert.False(t, cfg.Redis.Enabled())
	assert.True(t, cfg.JSONLogs())
}

func TestLoad_MissingFiles(t *testing.T) {
	clearEnv(t)

	t.Run("explicit path must exist", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.True(t, shared.IsConfig(err))
	})

	t.Run("unknown extension", func(t *testing.T) {
		_, err := Load(writeFile(t, "settings.ini", "x=1"))
		require.Error(t, err)
		assert.True(t, shared.IsConfig(err))
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "settings.yaml", "courses: [unterminated"))
		require.Error(t, err)
		assert.True(t, shared.IsConfig(err))
	})

	t.Run("invalid log level", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "loud")
		_, err := Load(writeFile(t, "settings.yaml", "{}"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "LOG_LEVEL")
	})
}

func TestSelectCourse_Unknown(t *testing.T) {
	cfg := Default()
	cfg.Canvas.AccessToken = "tok"

	cfg.SelectCourse(" 99 ")

	assert.Equal(t, "99", cfg.Course.CourseID)
	assert.Equal(t, "tok", cfg.Course.AccessToken)
	assert.Equal(t, roster.MemberOptionBoth, cfg.Course.MemberOption)
}

func validCourse() Course {
	c := DefaultCourse(CanvasConfig{BaseURL: DefaultBaseURL, AccessToken: "tok"})
	c.CourseID = "42"
	c.YAML = true
	return c
}

func TestCourse_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Course)
		want   []error
	}{
		{"valid", func(*Course) {}, nil},
		{"missing token", func(c *Course) { c.AccessToken = " " }, []error{shared.ErrMissingAccessToken}},
		{"missing base url", func(c *Course) { c.BaseURL = "" }, []error{shared.ErrMissingBaseURL}},
		{"non numeric id", func(c *Course) { c.CourseID = "abc" }, []error{shared.ErrInvalidCourseID}},
		{"zero id", func(c *Course) { c.CourseID = "0" }, []error{shared.ErrInvalidCourseID}},
		{"no output", func(c *Course) { c.YAML = false }, []error{shared.ErrNoOutputSelected}},
		{"no repo name option", func(c *Course) {
			c.IncludeGroup = false
			c.IncludeMember = false
		}, []error{shared.ErrNoRepoNameOption}},
		{"repo name option only matters for the manifest", func(c *Course) {
			c.IncludeGroup = false
			c.IncludeMember = false
			c.YAML = false
			c.CSV = true
		}, nil},
		{"everything missing", func(c *Course) {
			*c = Course{}
		}, []error{shared.ErrMissingBaseURL, shared.ErrMissingAccessToken, shared.ErrInvalidCourseID, shared.ErrNoOutputSelected}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCourse()
			tt.modify(&c)

			err := c.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, shared.IsConfig(err))
			for _, want := range tt.want {
				assert.True(t, errors.Is(err, want), "expected %v in %v", want, err)
			}
		})
	}
}

func TestCourse_ValidateConnection(t *testing.T) {
	c := validCourse()
	c.YAML = false
	assert.NoError(t, c.ValidateConnection(), "outputs are not needed to connect")

	c.AccessToken = ""
	err := c.ValidateConnection()
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrMissingAccessToken))
}

func TestCourse_ValidateOffline(t *testing.T) {
	c := validCourse()
	c.BaseURL, c.AccessToken = "", ""
	assert.NoError(t, c.ValidateOffline())

	c.CourseID = "x"
	assert.ErrorIs(t, c.ValidateOffline(), shared.ErrInvalidCourseID)

	c.CourseID = "42"
	c.YAML = false
	assert.ErrorIs(t, c.ValidateOffline(), shared.ErrNoOutputSelected)
}

func TestCourse_Validate_MemberOption(t *testing.T) {
	c := validCourse()
	c.MemberOption = "nickname"

	err := c.Validate()

	require.Error(t, err)
	assert.True(t, shared.IsConfig(err))
	assert.Contains(t, err.Error(), "invalid member option")
}

func TestCourse_Validate_MemberOptionWithoutManifest(t *testing.T) {
	c := validCourse()
	c.YAML = false
	c.CSV = true
	c.MemberOption = "bogus"

	err := c.Validate()
	require.Error(t, err)
	assert.True(t, shared.IsConfig(err))
	assert.ErrorIs(t, err, shared.ErrInvalidMemberOpt)
	assert.False(t, errors.Is(err, shared.ErrNoRepoNameOption))

	_, rcErr := c.RenderConfig()
	assert.Error(t, rcErr)
}

func TestCourse_RenderConfig(t *testing.T) {
	c := validCourse()
	c.MemberOption = "gitid"
	c.IncludeInitials = true
	c.FullGroups = false
	c.MinGroupSize = 2
	c.EmailDomain = ""

	rc, err := c.RenderConfig()
	require.NoError(t, err)

	assert.Equal(t, roster.RenderConfig{
		IdentityMode:       roster.IdentityExternalID,
		IncludeGroupName:   true,
		IncludeMemberNames: true,
		IncludeInitials:    true,
		OnlyFullGroups:     false,
		MinGroupSize:       2,
		EmailDomain:        DefaultEmailDomain,
	}, rc)
}

func TestCourse_Paths(t *testing.T) {
	c := validCourse()
	c.InfoFileFolder = "/data"

	c.SetInfoFile("groups.csv")
	c.SetStudentsFile("teams")

	assert.Equal(t, "/data/groups.csv", c.CSVPath())
	assert.Equal(t, "/data/groups.xlsx", c.XLSXPath())
	assert.Equal(t, "/data/teams.yaml", c.ManifestPath())
	assert.Equal(t, "/data/"+DefaultTeammatesInfoFile, c.TeammatesPath())

	c.StudentsFile = "/elsewhere/s.yaml"
	assert.Equal(t, "/elsewhere/s.yaml", c.ManifestPath())
}
