package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/noah-isme/advising-api/internal/app"
)

func newTracksCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracks",
		Short: "Inspect seeded tracks",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tracks the portal labels resolve against",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, app.Options{SkipMigrations: true}, func(ctx context.Context, a *app.App) error {
				tracks, err := a.Repos.Tracks.List(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME")
				for _, t := range tracks {
					fmt.Fprintf(w, "%d\t%s\n", t.ID, t.Name)
				}
				return w.Flush()
			})
		},
	})
	return cmd
}

func newStudentsCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "Student record maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "forget <student-id>",
		Short: "Soft-delete a student and drop their cached views; the next login revives them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, app.Options{SkipMigrations: true}, func(ctx context.Context, a *app.App) error {
				if err := a.Repos.Students.SoftDelete(ctx, args[0]); err != nil {
					if errors.Is(err, sql.ErrNoRows) {
						return fmt.Errorf("student %s not found", args[0])
					}
					return err
				}
				if err := a.Services.Cache.InvalidateStudent(ctx, args[0]); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "cache invalidation failed: %v\n", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "student %s forgotten\n", args[0])
				return nil
			})
		},
	})
	return cmd
}
