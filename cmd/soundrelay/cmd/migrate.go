package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/jmylchreest/soundrelay/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database schema migration commands",
	Long: `Apply, inspect or roll back database schema migrations.

serve applies pending migrations on startup, so these commands are only
needed to prepare or repair a database by hand.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(ctx context.Context, db *database.DB) error {
			return db.Migrate(ctx)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recently applied migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(ctx context.Context, db *database.DB) error {
			return db.SchemaMigrator(ctx).Down(ctx)
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(ctx context.Context, db *database.DB) error {
			statuses, err := db.SchemaMigrator(ctx).Status(ctx)
			if err != nil {
				return fmt.Errorf("reading migration status: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tAPPLIED\tAPPLIED AT\tDESCRIPTION")
			for _, s := range statuses {
				appliedAt := "-"
				if s.AppliedAt != nil {
					appliedAt = s.AppliedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", s.Version, s.Applied, appliedAt, s.Description)
			}
			return tw.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)

	migrateCmd.PersistentFlags().String("database", "", "Database DSN (overrides database.dsn)")
}

// withDatabase opens the configured database, runs fn and closes it again.
func withDatabase(cmd *cobra.Command, fn func(ctx context.Context, db *database.DB) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("database") {
		cfg.Database.DSN, _ = cmd.Flags().GetString("database")
	}

	db, err := database.New(cfg.Database, slog.Default())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Warn("closing database", slog.String("error", err.Error()))
		}
	}()

	return fn(ctx, db)
}
