package config

import (
	"errors"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/canvasinfo/canvasinfo/internal/domain/roster"
	"github.com/canvasinfo/canvasinfo/internal/domain/shared"
)

// Defaults of a course without settings.
const (
	DefaultBaseURL           = "https://canvas.tue.nl"
	DefaultCourseName        = "Unverified"
	DefaultEmailDomain       = roster.DefaultEmailDomain
	DefaultCSVInfoFile       = "student-info.csv"
	DefaultXLSXInfoFile      = "student-info.xlsx"
	DefaultTeammatesInfoFile = "teammates-students.xlsx"
	DefaultStudentsFile      = "students.yaml"
)

// Output names, as used in Outputs and in export history.
const (
	OutputCSV       = "csv"
	OutputXLSX      = "xlsx"
	OutputManifest  = "yaml"
	OutputTeammates = "teammates"
)

// Course holds the export settings of one course.
type Course struct {
	CourseID    string `yaml:"course_id" toml:"course_id"`
	CourseName  string `yaml:"course_name" toml:"course_name"`
	BaseURL     string `yaml:"base_url" toml:"base_url"`
	AccessToken string `yaml:"access_token" toml:"access_token"`

	// Manifest formatting
	MemberOption    string `yaml:"member_option" toml:"member_option"`
	IncludeGroup    bool   `yaml:"include_group" toml:"include_group"`
	IncludeMember   bool   `yaml:"include_member" toml:"include_member"`
	IncludeInitials bool   `yaml:"include_initials" toml:"include_initials"`
	FullGroups      bool   `yaml:"full_groups" toml:"full_groups"`
	MinGroupSize    int    `yaml:"min_group_size" toml:"min_group_size"`
	EmailDomain     string `yaml:"email_domain" toml:"email_domain"`

	// GroupCategory restricts the export to one group set; "" means all.
	GroupCategory string `yaml:"group_category" toml:"group_category"`

	// Output files, relative to InfoFileFolder unless absolute
	InfoFileFolder    string `yaml:"info_file_folder" toml:"info_file_folder"`
	CSVInfoFile       string `yaml:"csv_info_file" toml:"csv_info_file"`
	XLSXInfoFile      string `yaml:"xlsx_info_file" toml:"xlsx_info_file"`
	TeammatesInfoFile string `yaml:"teammates_info_file" toml:"teammates_info_file"`
	StudentsFile      string `yaml:"students_file" toml:"students_file"`

	// Output selectors
	CSV       bool `yaml:"csv" toml:"csv"`
	XLSX      bool `yaml:"xlsx" toml:"xlsx"`
	YAML      bool `yaml:"yaml" toml:"yaml"`
	Teammates bool `yaml:"teammates" toml:"teammates"`
}

// DefaultCourse returns the settings of a course without an entry in the
// settings file. Credentials come from the canvas section.
func DefaultCourse(canvas CanvasConfig) Course {
	return Course{
		CourseName:        DefaultCourseName,
		BaseURL:           canvas.BaseURL,
		AccessToken:       canvas.AccessToken,
		MemberOption:      roster.MemberOptionBoth,
		IncludeGroup:      true,
		IncludeMember:     true,
		FullGroups:        true,
		EmailDomain:       DefaultEmailDomain,
		InfoFileFolder:    homeDir(),
		CSVInfoFile:       DefaultCSVInfoFile,
		XLSXInfoFile:      DefaultXLSXInfoFile,
		TeammatesInfoFile: DefaultTeammatesInfoFile,
		StudentsFile:      DefaultStudentsFile,
	}
}

// withID fills the course id from the settings key when the entry has none.
func (c Course) withID(id string) Course {
	if c.CourseID == "" {
		c.CourseID = id
	}
	return c
}

// ID returns the numeric course id.
func (c Course) ID() (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.CourseID), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrInvalidCourseID
	}
	return id, nil
}

// Validate reports every problem that prevents an export, joined into one
// error. Each one is a shared.ErrConfig domain error.
func (c Course) Validate() error {
	return c.validate(c.connectionErrors())
}

// ValidateOffline is Validate for exports replayed from a snapshot, which
// need no credentials.
func (c Course) ValidateOffline() error {
	var errs []error
	if _, err := c.ID(); err != nil {
		errs = append(errs, err)
	}
	return c.validate(errs)
}

func (c Course) validate(errs []error) error {
	if len(c.Outputs()) == 0 {
		errs = append(errs, shared.ErrNoOutputSelected)
	}
	rc, err := c.RenderConfig()
	if err != nil {
		errs = append(errs, err)
	}
	if c.YAML && !rc.HasLabel() {
		errs = append(errs, shared.ErrNoRepoNameOption)
	}
	if c.MinGroupSize < 0 {
		errs = append(errs, shared.NewDomainError("config", "Validate", shared.ErrConfig,
			"min group size must not be negative"))
	}

	return errors.Join(errs...)
}

// ValidateConnection checks only the settings needed to reach the course.
func (c Course) ValidateConnection() error {
	return errors.Join(c.connectionErrors()...)
}

func (c Course) connectionErrors() []error {
	var errs []error

	if strings.TrimSpace(c.BaseURL) == "" {
		errs = append(errs, shared.ErrMissingBaseURL)
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		errs = append(errs, shared.ErrMissingAccessToken)
	}
	if _, err := c.ID(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// RenderConfig maps the formatting settings onto the roster renderer. On an
// invalid member option the rest of the configuration is still returned.
func (c Course) RenderConfig() (roster.RenderConfig, error) {
	domain := c.EmailDomain
	if domain == "" {
		domain = DefaultEmailDomain
	}

	rc := roster.RenderConfig{
		IncludeGroupName:   c.IncludeGroup,
		IncludeMemberNames: c.IncludeMember,
		IncludeInitials:    c.IncludeInitials,
		OnlyFullGroups:     c.FullGroups,
		MinGroupSize:       c.MinGroupSize,
		EmailDomain:        domain,
	}

	mode, err := roster.ParseIdentityMode(c.MemberOption)
	if err != nil {
		return rc, shared.WrapError("config", "RenderConfig", shared.ErrInvalidMemberOpt,
			"invalid member option", err)
	}
	rc.IdentityMode = mode
	return rc, nil
}

// Outputs lists the selected outputs in write order.
func (c Course) Outputs() []string {
	var out []string
	if c.CSV {
		out = append(out, OutputCSV)
	}
	if c.XLSX {
		out = append(out, OutputXLSX)
	}
	if c.YAML {
		out = append(out, OutputManifest)
	}
	if c.Teammates {
		out = append(out, OutputTeammates)
	}
	return out
}

// SetInfoFile sets the CSV and XLSX file names from one base name, so
// "groups" writes groups.csv and groups.xlsx.
func (c *Course) SetInfoFile(base string) {
	base = strings.TrimSuffix(strings.TrimSuffix(base, ".csv"), ".xlsx")
	c.CSVInfoFile = base + ".csv"
	c.XLSXInfoFile = base + ".xlsx"
}

// SetStudentsFile sets the manifest file name, adding the .yaml extension
// when it is missing.
func (c *Course) SetStudentsFile(name string) {
	if ext := strings.ToLower(filepath.Ext(name)); ext != ".yaml" && ext != ".yml" {
		name += ".yaml"
	}
	c.StudentsFile = name
}

// CSVPath returns the CSV output path.
func (c Course) CSVPath() string { return c.path(c.CSVInfoFile) }

// XLSXPath returns the XLSX output path.
func (c Course) XLSXPath() string { return c.path(c.XLSXInfoFile) }

// TeammatesPath returns the teammates sheet output path.
func (c Course) TeammatesPath() string { return c.path(c.TeammatesInfoFile) }

// ManifestPath returns the team manifest output path.
func (c Course) ManifestPath() string { return c.path(c.StudentsFile) }

func (c Course) path(name string) string {
	if filepath.IsAbs(name) || c.InfoFileFolder == "" {
		return name
	}
	return filepath.Join(c.InfoFileFolder, name)
}
