// Package main provides the CLI for the stratum migration engine. Stratum
// diffs a language-agnostic model description against an on-disk migration
// history and maintains that history as versioned TOML files.
//
// Usage:
//
//	stratum init                 # Create migrations/ and stratum.yaml
//	stratum lint                 # Validate the current models
//	stratum make-migrations      # Generate a migration from model changes
//	stratum squash <first> <last># Collapse a migration range into one file
//	stratum history              # Show the migration chain
//	stratum migrate              # Apply pending migrations to the database
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/stratumdb/stratum/internal/ui"
)

// version is set via ldflags during build: -ldflags="-X main.version=v1.0.0"
var version = "dev"

// Global flags
var (
	configFile    string
	databaseURL   string
	modelsFile    string
	migrationsDir string
	dialectName   string
	verbose       bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "stratum",
		Short:   "Schema migration engine for model-driven ORMs",
		Long:    `Stratum reads a language-agnostic model description, diffs it against the existing migration history, and maintains that history as versioned TOML migration files.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.Init()
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "stratum.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&databaseURL, "database-url", "d", "", "Database connection URL")
	rootCmd.PersistentFlags().StringVarP(&modelsFile, "models-file", "m", "", "Path to the intermediate models JSON file")
	rootCmd.PersistentFlags().StringVar(&migrationsDir, "migration-dir", "", "Path to the migrations directory")
	rootCmd.PersistentFlags().StringVar(&dialectName, "database", "", "Database dialect (postgres, sqlite)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		initCmd(),
		lintCmd(),
		makeMigrationsCmd(),
		squashCmd(),
		historyCmd(),
		migrateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError(err))
		os.Exit(1)
	}
}
