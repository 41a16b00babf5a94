package main

import (
	"github.com/spf13/cobra"

	"github.com/canvasinfo/canvasinfo/internal/application/command"
)

func newVerifyCmd(a *app) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the base URL, the access token and the course id",
		Long: `Connects to Canvas with the configured settings and checks, in order,
the base URL, the access token, the course id and, when given, the group
category. Nothing is written.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			course := a.cfg.Course
			if cmd.Flags().Changed("category") {
				course.GroupCategory = category
			}
			if err := course.ValidateConnection(); err != nil {
				return err
			}

			client, err := a.canvasClient(course)
			if err != nil {
				return err
			}

			handler := command.NewVerifyCourseHandler(client, client, a.reporter, a.log)
			result, err := handler.Handle(cmd.Context(), command.VerifyCourseCommand{Course: course})
			if err != nil {
				a.reporter.Info("Course verification failed")
				return err
			}
			a.reporter.Info("Course verified: " + result.Course.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "also check that this group category exists")

	return cmd
}
