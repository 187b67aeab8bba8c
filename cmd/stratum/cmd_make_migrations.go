package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/stratumdb/stratum/internal/engine"
	"github.com/stratumdb/stratum/internal/history"
	"github.com/stratumdb/stratum/internal/imr"
	"github.com/stratumdb/stratum/internal/lint"
	"github.com/stratumdb/stratum/internal/migration"
	"github.com/stratumdb/stratum/internal/ui"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// makeMigrationsCmd generates a new migration from model changes.
func makeMigrationsCmd() *cobra.Command {
	var name string
	var dryRun bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "make-migrations",
		Short: "Generate a migration from model changes",
		Long: `Read the intermediate models file, replay the existing migration history,
and write a new TOML migration capturing the difference. Exits successfully
without writing anything when the models are unchanged.`,
		Example: `  # Generate with an auto-numbered filename
  stratum make-migrations --name add_email

  # Preview without writing
  stratum make-migrations --dry-run

  # Regenerate whenever the models file changes
  stratum make-migrations --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slugPattern.MatchString(name) {
				return fmt.Errorf("invalid migration name %q: use lowercase letters, digits, and underscores", name)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if watch {
				return watchAndGenerate(cfg, name, dryRun)
			}
			return runMakeMigrations(cfg, name, dryRun)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "auto", "Slug for the generated filename")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the migration instead of writing it")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Regenerate whenever the models file changes")

	return cmd
}

func runMakeMigrations(cfg *Config, name string, dryRun bool) error {
	set, err := imr.LoadModels(cfg.ModelsFile)
	if err != nil {
		return err
	}
	if errs := lint.Models(set.Models); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, ui.RenderError(e))
		}
		return fmt.Errorf("%d lint error(s) in %s", len(errs), cfg.ModelsFile)
	}

	hist, err := history.Load(cfg.MigrationsDir)
	if err != nil {
		return err
	}
	if len(hist.Warnings) > 0 {
		fmt.Fprintln(os.Stderr, ui.RenderWarnings(hist.Warnings))
	}

	// Identical hash means the models are byte-for-byte equivalent to the
	// state the head migration was generated from; skip the diff entirely.
	if head := hist.Head(); head != nil && head.Hash == imr.CanonicalHash(set.Models) {
		fmt.Println(ui.Success("No changes detected"))
		return nil
	}

	m, err := engine.Diff(set.Models, hist)
	if err != nil {
		return err
	}
	if m.IsEmpty() {
		fmt.Println(ui.Success("No changes detected"))
		return nil
	}

	m.ID = migration.FormatID(hist.NextSequence(), name)

	if dryRun {
		content, err := migration.Serialize(m)
		if err != nil {
			return err
		}
		fmt.Println(ui.Bold(migration.Filename(m.ID)))
		fmt.Print(content)
		return nil
	}

	path, err := history.Write(cfg.MigrationsDir, m)
	if err != nil {
		return err
	}
	fmt.Println(ui.Success(fmt.Sprintf("Created %s (%d operations)", ui.FilePath(path), len(m.Operations))))
	return nil
}

// watchAndGenerate reruns generation whenever the models file is rewritten.
// Events are debounced because extractors typically write the file in
// several chunks.
func watchAndGenerate(cfg *Config, name string, dryRun bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: most writers replace the file via
	// rename, which drops a direct file watch.
	dir := filepath.Dir(cfg.ModelsFile)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	if err := runMakeMigrations(cfg, name, dryRun); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError(err))
	}
	fmt.Println(ui.Info("Watching " + cfg.ModelsFile + " (ctrl-c to stop)"))

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var debounce <-chan time.Time
	target := filepath.Clean(cfg.ModelsFile)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(250 * time.Millisecond)

		case <-debounce:
			debounce = nil
			if err := runMakeMigrations(cfg, name, dryRun); err != nil {
				fmt.Fprintln(os.Stderr, ui.RenderError(err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, ui.RenderError(err))

		case <-interrupt:
			return nil
		}
	}
}
