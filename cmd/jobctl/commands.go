package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/joshu-sajeev/brokerjobs/internal/app"
	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/storage/postgres"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

// loadApp is replaced in tests.
var loadApp = app.Build

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jobctl",
		Short:         "Operate the broker job processor",
		SilenceUsage:  true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newTickCmd(),
		newResetCmd(),
		newCancelCmd(),
		newStaleCmd(),
		newListCmd(),
	)
	return root
}

func openSQL(ctx context.Context) (*sql.DB, error) {
	cfg, err := postgres.LoadConfigFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openSQL(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which migrations have been applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openSQL(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			statuses, err := postgres.MigrationStatus(cmd.Context(), db)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tSTATE\tFILE")
			for _, s := range statuses {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Source.Version, s.State, s.Source.Path)
			}
			return tw.Flush()
		},
	})

	return cmd
}

func newTickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one tick and print its report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), a.Config.TickTimeout)
			defer cancel()
			return writeJSON(cmd.OutOrStdout(), a.Orchestrator.Tick(ctx))
		},
	}
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <job-id>",
		Short: "Move an errored job back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Jobs.Reset(cmd.Context(), args[0], a.Config.Policy.Lease); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s reset to pending\n", args[0])
			return nil
		},
	}
}

func newCancelCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Fail a job that has not finished",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Jobs.Cancel(cmd.Context(), args[0], reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s cancelled\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "cancelled by operator", "reason recorded on the job")
	return cmd
}

func newStaleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stale",
		Short: "List jobs whose claim expired without being released",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			jobs, err := a.Jobs.ListStale(cmd.Context(), a.Config.Policy.Lease)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tCLAIMED BY\tCLAIMED AT")
			for _, j := range jobs {
				claimedAt := ""
				if j.ClaimedAt != nil {
					claimedAt = j.ClaimedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", j.ID, j.Kind, j.Status, j.ClaimedBy, claimedAt)
			}
			return tw.Flush()
		},
	}
}

func newListCmd() *cobra.Command {
	var kind, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if kind != "" && !config.IsKnownKind(config.JobKind(kind)) {
				return fmt.Errorf("unknown kind %q, expected one of %v", kind, config.AllowedJobKinds)
			}

			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			jobs, err := a.Jobs.List(cmd.Context(), config.JobKind(kind), config.JobStatus(status))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tPROGRESS\tFAILURES\tERROR")
			for _, j := range jobs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", j.ID, j.Kind, j.Status, j.Progress, j.FailureCount, j.ErrorKind)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "filter by job kind")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
