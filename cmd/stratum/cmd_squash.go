package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stratumdb/stratum/internal/engine"
	"github.com/stratumdb/stratum/internal/history"
	"github.com/stratumdb/stratum/internal/migration"
	"github.com/stratumdb/stratum/internal/ui"
)

// squashCmd collapses a contiguous migration range into a single migration.
func squashCmd() *cobra.Command {
	var name string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "squash <first> <last>",
		Short: "Collapse a migration range into one migration",
		Long: `Replace the contiguous run of migrations from <first> through <last> with a
single migration of equivalent net effect. The originals stay on disk and are
marked as replaced; delete them once every environment has moved past them.`,
		Example: `  # Squash the first three migrations
  stratum squash 0001_initial 0003_add_email

  # Preview without writing
  stratum squash 0001_initial 0003_add_email --dry-run`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slugPattern.MatchString(name) {
				return fmt.Errorf("invalid migration name %q: use lowercase letters, digits, and underscores", name)
			}
			return runSquash(args[0], args[1], name, dryRun)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "squashed", "Slug for the generated filename")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the migration instead of writing it")

	return cmd
}

func runSquash(firstID, lastID, name string, dryRun bool) error {
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

	squashed, err := engine.Squash(hist, firstID, lastID)
	if err != nil {
		return err
	}
	squashed.ID = migration.FormatID(hist.NextSequence(), name)

	if dryRun {
		content, err := migration.Serialize(squashed)
		if err != nil {
			return err
		}
		fmt.Println(ui.Bold(migration.Filename(squashed.ID)))
		fmt.Print(content)
		return nil
	}

	path, err := history.Write(cfg.MigrationsDir, squashed)
	if err != nil {
		return err
	}

	// A migration that depended on the squashed tail must now depend on the
	// squash itself, or the chain breaks on the next load.
	for _, m := range hist.Migrations {
		if m.Dependency != lastID || m.ID == squashed.ID {
			continue
		}
		m.Dependency = squashed.ID
		if _, err := history.Write(cfg.MigrationsDir, m); err != nil {
			return err
		}
		fmt.Println(ui.Info("Re-pointed " + m.ID + " onto " + squashed.ID))
	}

	fmt.Println(ui.Success(fmt.Sprintf("Squashed %d migration(s) into %s", len(squashed.Replaces), ui.FilePath(path))))
	return nil
}
