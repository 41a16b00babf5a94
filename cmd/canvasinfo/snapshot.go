package main

import (
	"github.com/spf13/cobra"

	"github.com/canvasinfo/canvasinfo/internal/application/command"
)

func newSnapshotCmd(a *app) *cobra.Command {
	var (
		category string
		dir      string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save the course data for offline exports",
		Long: `Fetches the course, its students, enrollments and group memberships and
saves them as course.<id>.json in the snapshot folder. 'canvasinfo info
--offline' replays the snapshot without contacting Canvas.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			course := a.cfg.Course
			if cmd.Flags().Changed("category") {
				course.GroupCategory = category
			}
			if dir != "" {
				a.cfg.Snapshot.Dir = dir
			}
			if err := course.ValidateConnection(); err != nil {
				return err
			}

			client, err := a.canvasClient(course)
			if err != nil {
				return err
			}

			handler := command.NewSnapshotCourseHandler(client, a.snapshots(), a.reporter, a.log)
			_, err = handler.Handle(cmd.Context(), command.SnapshotCourseCommand{Course: course})
			return err
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "restrict memberships to one group category")
	cmd.Flags().StringVar(&dir, "dir", "", "snapshot folder, default the configured snapshot dir")

	return cmd
}
