package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/app"
	"github.com/noah-isme/advising-api/internal/catalog"
	"github.com/noah-isme/advising-api/pkg/config"
	"github.com/noah-isme/advising-api/pkg/logger"
)

type cliOptions struct {
	timeout     time.Duration
	catalogFile string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:           "advisorctl",
		Short:         "Operator tooling for the advising API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Operation timeout")

	root.AddCommand(newMigrateCmd(opts), newCatalogCmd(opts), newVectorsCmd(opts), newTracksCmd(opts), newStudentsCmd(opts), newAdminCmd())
	return root
}

// withApp loads configuration, connects every backend and runs fn.
func withApp(cmd *cobra.Command, opts *cliOptions, appOpts app.Options, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	a, err := app.New(ctx, cfg, log.Named("advisorctl"), appOpts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newMigrateCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, app.Options{}, func(context.Context, *app.App) error {
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func catalogSource(path string) catalog.Source {
	if path == "" {
		return nil
	}
	return catalog.File(path)
}

func newCatalogCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Course catalog maintenance",
	}

	reload := &cobra.Command{
		Use:   "reload",
		Short: "Replace the live catalog with the bundled dataset or --file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, app.Options{CatalogSource: catalogSource(opts.catalogFile)}, func(ctx context.Context, a *app.App) error {
				res, err := a.Services.Catalog.Reload(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "catalog reloaded: %d courses, %d requirements, %d prerequisites, %d rows skipped\n",
					res.Courses, res.Requirements, res.Prerequisites, res.SkippedRows)
				return nil
			})
		},
	}
	reload.Flags().StringVar(&opts.catalogFile, "file", "", "YAML dataset to load instead of the bundled one")

	backfill := &cobra.Command{
		Use:   "describe <code> <description>",
		Short: "Set the description of one course",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, app.Options{SkipMigrations: true}, func(ctx context.Context, a *app.App) error {
				if err := a.Services.Catalog.BackfillDescription(ctx, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "description updated for %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(reload, backfill)
	return cmd
}

func newVectorsCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vectors",
		Short: "Course embedding collection maintenance",
	}

	embed := &cobra.Command{
		Use:   "embed",
		Short: "Embed every live course and upsert it into the collection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, app.Options{SkipMigrations: true}, func(ctx context.Context, a *app.App) error {
				n, err := a.Services.Vectors.EmbedCourses(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "embedded %d courses\n", n)
				return nil
			})
		},
	}

	health := &cobra.Command{
		Use:   "health",
		Short: "Print collection statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, app.Options{SkipMigrations: true}, func(ctx context.Context, a *app.App) error {
				h, err := a.Services.Vectors.Health(ctx)
				if err != nil {
					return err
				}
				a.Log.Debug("vector health", zap.Any("health", h))
				fmt.Fprintf(cmd.OutOrStdout(), "ready=%t status=%s points=%d size=%d distance=%s embedder=%s\n",
					h.Ready, h.Status, h.PointsCount, h.VectorSize, h.Distance, h.Embedder)
				return nil
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every course point from the collection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, app.Options{SkipMigrations: true}, func(ctx context.Context, a *app.App) error {
				if err := a.Services.Vectors.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "course vectors cleared")
				return nil
			})
		},
	}

	cmd.AddCommand(embed, health, clearCmd)
	return cmd
}
