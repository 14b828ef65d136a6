package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-records/internal/config"
	"github.com/hackgods/clinic-records/internal/db"
	"github.com/hackgods/clinic-records/internal/logging"
	"github.com/hackgods/clinic-records/internal/schema"
	"github.com/hackgods/clinic-records/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "clinicctl",
		Short:         "Operate the clinic records database",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newMigrateCmd(), newPlanCmd(), newTablesCmd(), newBootstrapCmd())
	return root
}

// connect loads the environment and opens a small pool for one command.
func connect(ctx context.Context) (*pgxpool.Pool, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logging.New(cfg.Env, cfg.LogLevel)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2, MinConns: 1})
	if err != nil {
		return nil, log, err
	}
	return pool, log, nil
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, log, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := db.NewMigrator(pool, db.Migrations()).Up(cmd.Context())
			if err != nil {
				return err
			}
			log.Info().Int("applied", n).Msg("migrations up to date")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, _, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, db.Migrations()).Status(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
			for _, st := range statuses {
				at := "pending"
				if st.AppliedAt != nil {
					at = st.AppliedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%03d\t%s\t%s\n", st.Version, st.Name, at)
			}
			return w.Flush()
		},
	})
	return cmd
}

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <table>",
		Short: "Show what deleting a row of table would cascade to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := schema.Clinic().Plan(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), plan.String())
			return nil
		},
	}
}

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List catalog tables in deletion order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat := schema.Clinic()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tTIER\tPRIMARY KEY\tREFERENCED BY")
			for _, name := range cat.DeletionOrder() {
				t, err := cat.Table(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", t.Name, t.Tier, t.PrimaryKey, len(cat.Referencing(t.Name)))
			}
			return w.Flush()
		},
	}
}

func newBootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Insert the seeded reference rows that are missing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, log, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			cat := schema.Clinic()
			n, err := store.Bootstrap(cmd.Context(), store.New(cat, store.NewPostgresBackend(pool, cat), log))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d reference rows\n", n)
			return nil
		},
	}
}
