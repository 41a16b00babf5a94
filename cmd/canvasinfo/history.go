package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/canvasinfo/canvasinfo/internal/application/query"
	"github.com/canvasinfo/canvasinfo/internal/domain/shared"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		all    bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded exports",
		Long: `Lists the exports recorded in the history database, most recent first.
Requires database.url in the settings file or DATABASE_URL.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !a.cfg.Database.Enabled() {
				return shared.NewDomainError("history", "List", shared.ErrConfig,
					"export history is not configured: set database.url or DATABASE_URL")
			}
			runs, err := a.exportRuns(ctx)
			if err != nil {
				return err
			}

			q := query.ListExportsQuery{Limit: limit}
			if !all {
				if id, err := a.cfg.Course.ID(); err == nil {
					q.CourseID = id
				}
			}

			result, err := query.NewListExportsHandler(runs).Handle(ctx, q)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			return printHistory(a.stdout, result.Runs)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&limit, "limit", "n", 20, "number of exports to list, at most 200")
	f.BoolVar(&all, "all", false, "list the exports of every course")
	f.BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}

func printHistory(w io.Writer, runs []query.ExportRunDTO) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No exports recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tCOURSE\tSTATUS\tSTUDENTS\tTEAMS\tCHANGED\tOUTPUTS")
	for _, r := range runs {
		changed := "no"
		if r.ChangedSincePrevious {
			changed = "yes"
		}
		fmt.Fprintf(tw, "%s\t%d %s\t%s\t%d\t%d\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			r.CourseID, r.CourseName,
			r.Status,
			r.Students,
			r.Teams,
			changed,
			strings.Join(r.Outputs, ", "),
		)
	}
	return tw.Flush()
}
