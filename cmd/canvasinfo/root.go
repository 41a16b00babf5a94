package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. Settings are loaded once in
// PersistentPreRunE; subcommands read them from a.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "canvasinfo",
		Short: "Export Canvas course rosters and RepoBee team manifests",
		Long: `canvasinfo reads the students and groups of a Canvas LMS course and
writes them as:
  - a students table (CSV and XLSX)
  - a teammates sheet (XLSX), grouped into sections by group number
  - a RepoBee team manifest (YAML), one team per group

Settings are read from a settings file (YAML or TOML), then from
environment variables, then from flags. Run 'canvasinfo verify' first to
check the base URL, the access token and the course id.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "settings file (.yaml, .yml or .toml), default $CANVASINFO_CONFIG or the user config dir")
	pf.StringVarP(&a.courseID, "course-id", "c", "", "Canvas course id, default the current course of the settings file")
	pf.StringVarP(&a.baseURL, "base-url", "u", "", "Canvas base URL, e.g. https://canvas.tue.nl")
	pf.StringVarP(&a.accessToken, "access-token", "t", "", "Canvas access token")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInfoCmd(a),
		newVerifyCmd(a),
		newSnapshotCmd(a),
		newHistoryCmd(a),
	)

	return root
}

// noArgs rejects positional arguments as a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageError{err: err}
	}
	return nil
}
