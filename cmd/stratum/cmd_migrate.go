package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stratumdb/stratum/internal/dialect"
	"github.com/stratumdb/stratum/internal/executor"
	"github.com/stratumdb/stratum/internal/history"
	"github.com/stratumdb/stratum/internal/ui"
)

// migrateCmd applies pending migrations against the configured database.
func migrateCmd() *cobra.Command {
	var applyUntil string
	var logQueries bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		Long: `Load the migration history and apply every migration not yet recorded in
the database, in chain order. Each migration runs in its own transaction.`,
		Example: `  # Apply everything pending
  stratum migrate

  # Stop after a specific migration
  stratum migrate --apply-until 0003_add_email

  # Show the SQL without touching the database
  stratum migrate --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), applyUntil, logQueries, dryRun)
		},
	}

	cmd.Flags().StringVar(&applyUntil, "apply-until", "", "Stop after applying this migration ID")
	cmd.Flags().BoolVar(&logQueries, "log-queries", false, "Log every executed statement")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the SQL instead of executing it")

	return cmd
}

func runMigrate(ctx context.Context, applyUntil string, logQueries, dryRun bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	hist, err := history.Load(cfg.MigrationsDir)
	if err != nil {
		return err
	}
	if len(hist.Warnings) > 0 {
		fmt.Fprintln(os.Stderr, ui.RenderWarnings(hist.Warnings))
	}

	active := hist.Active()
	if len(active) == 0 {
		fmt.Println(ui.Success("No migrations to apply"))
		return nil
	}
	if applyUntil != "" {
		// Replaced migrations resolve through ByID but can no longer be
		// applied, so the bound must sit on the active chain.
		found := false
		for _, m := range active {
			if m.ID == applyUntil {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("migration %q is not in the active chain", applyUntil)
		}
	}

	if dryRun {
		d, err := dialect.Get(cfg.Dialect)
		if err != nil {
			return err
		}
		stmts, err := executor.DryRun(d, active)
		if err != nil {
			return err
		}
		for _, stmt := range stmts {
			fmt.Println(stmt)
		}
		return nil
	}

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("no database URL configured: set database_url in %s, DATABASE_URL, or --database-url", configFile)
	}

	exec, err := executor.Open(ctx, cfg.Dialect, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer exec.Close()
	exec.LogQueries = logQueries

	count, err := exec.Apply(ctx, active, executor.ApplyOptions{Until: applyUntil})
	if err != nil {
		return err
	}
	if count == 0 {
		fmt.Println(ui.Success("Database is up to date"))
		return nil
	}
	fmt.Println(ui.Success(fmt.Sprintf("Applied %d migration(s)", count)))
	return nil
}
