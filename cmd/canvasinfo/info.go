package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/canvasinfo/canvasinfo/config"
	"github.com/canvasinfo/canvasinfo/internal/application/command"
	"github.com/canvasinfo/canvasinfo/internal/domain/roster"
	"github.com/canvasinfo/canvasinfo/internal/infrastructure/output"
	"github.com/canvasinfo/canvasinfo/pkg/logger"
)

// infoOptions holds the info flags. Only flags given on the command line
// override the course settings.
type infoOptions struct {
	memberOption    string
	includeGroup    bool
	includeMember   bool
	includeInitials bool
	fullGroups      bool
	minGroupSize    int
	category        string
	outputDir       string

	infoFile      string
	yamlFile      string
	teammatesFile string

	csv       bool
	xlsx      bool
	yaml      bool
	teammates bool

	offline bool
	noCache bool
	refresh bool
}

func newInfoCmd(a *app) *cobra.Command {
	opts := &infoOptions{}

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Export the students table and the team manifest of a course",
		Long: `Fetches the students, enrollments and group memberships of the course and
writes the selected outputs. Output selection and formatting default to the
course settings; flags override them for this run.

Examples:
  canvasinfo info -c 12345 --info-file students
  canvasinfo info -c 12345 --yaml-file teams -o gitid -G -M=false
  canvasinfo info -c 12345 --offline --yaml
  canvasinfo info -c 12345 --refresh --yaml`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInfo(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.memberOption, "member-option", "o", "", "member identity in the manifest: email, gitid or (email, gitid)")
	f.BoolVarP(&opts.includeGroup, "include-group", "G", false, "use the group name in team names")
	f.BoolVarP(&opts.includeMember, "include-member", "M", false, "use member names in team names")
	f.BoolVarP(&opts.includeInitials, "include-initials", "I", false, "use initials instead of full member names")
	f.BoolVarP(&opts.fullGroups, "full-groups", "F", false, "export only groups that are full")
	f.IntVar(&opts.minGroupSize, "min-group-size", 0, "drop groups with fewer members, 0 disables")
	f.StringVar(&opts.category, "category", "", "restrict the export to one group category")
	f.StringVarP(&opts.outputDir, "output-dir", "d", "", "folder of the output files")

	f.StringVar(&opts.infoFile, "info-file", "", "write the students table to <name>.csv and <name>.xlsx")
	f.StringVar(&opts.yamlFile, "yaml-file", "", "write the team manifest to <name>.yaml")
	f.StringVar(&opts.teammatesFile, "teammates-file", "", "write the teammates sheet to <name>")

	f.BoolVar(&opts.csv, "csv", false, "write the students table as CSV")
	f.BoolVar(&opts.xlsx, "xlsx", false, "write the students table as XLSX")
	f.BoolVar(&opts.yaml, "yaml", false, "write the team manifest")
	f.BoolVar(&opts.teammates, "teammates", false, "write the teammates sheet")

	f.BoolVar(&opts.offline, "offline", false, "read the course from the last saved snapshot")
	f.BoolVar(&opts.noCache, "no-cache", false, "bypass the course data cache")
	f.BoolVar(&opts.refresh, "refresh", false, "clear the cached course data before fetching")

	return cmd
}

// apply overrides the course settings with the flags that were set.
func (o *infoOptions) apply(f *pflag.FlagSet, course *config.Course) {
	if f.Changed("member-option") {
		course.MemberOption = o.memberOption
	}
	if f.Changed("include-group") {
		course.IncludeGroup = o.includeGroup
	}
	if f.Changed("include-member") {
		course.IncludeMember = o.includeMember
	}
	if f.Changed("include-initials") {
		course.IncludeInitials = o.includeInitials
	}
	if f.Changed("full-groups") {
		course.FullGroups = o.fullGroups
	}
	if f.Changed("min-group-size") {
		course.MinGroupSize = o.minGroupSize
	}
	if f.Changed("category") {
		course.GroupCategory = o.category
	}
	if f.Changed("output-dir") {
		course.InfoFileFolder = o.outputDir
	}

	if o.infoFile != "" {
		course.SetInfoFile(o.infoFile)
		course.CSV, course.XLSX = true, true
	}
	if o.yamlFile != "" {
		course.SetStudentsFile(o.yamlFile)
		course.YAML = true
	}
	if o.teammatesFile != "" {
		course.TeammatesInfoFile = o.teammatesFile
		course.Teammates = true
	}

	if f.Changed("csv") {
		course.CSV = o.csv
	}
	if f.Changed("xlsx") {
		course.XLSX = o.xlsx
	}
	if f.Changed("yaml") {
		course.YAML = o.yaml
	}
	if f.Changed("teammates") {
		course.Teammates = o.teammates
	}
}

func (a *app) runInfo(cmd *cobra.Command, opts *infoOptions) error {
	ctx := cmd.Context()

	course := a.cfg.Course
	opts.apply(cmd.Flags(), &course)

	exportCmd := command.ExportCourseCommand{
		Course:  course,
		Offline: opts.offline,
		Refresh: opts.refresh,
	}
	if err := exportCmd.Validate(); err != nil {
		return err
	}

	var source roster.CourseSource
	if opts.offline {
		source = a.snapshots()
	} else {
		client, err := a.canvasClient(course)
		if err != nil {
			return err
		}
		source = a.courseSource(ctx, client, course, !opts.noCache)
	}

	runs, err := a.exportRuns(ctx)
	if err != nil {
		a.log.Warn("export history unavailable", logger.Err(err))
	}

	handler := command.NewExportCourseHandler(source, output.NewFileWriter(), runs, a.reporter, a.log)
	_, err = handler.Handle(ctx, exportCmd)
	return err
}
