package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stratumdb/stratum/internal/history"
	"github.com/stratumdb/stratum/internal/ui"
)

// historyCmd prints the migration chain.
func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the migration chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			if len(hist.Migrations) == 0 {
				fmt.Println(ui.Info("No migrations in " + cfg.MigrationsDir))
				return nil
			}

			replaced := make(map[string]bool)
			for _, m := range hist.Migrations {
				for _, id := range m.Replaces {
					replaced[id] = true
				}
			}
			head := hist.Head()

			for _, m := range hist.Migrations {
				var tags []string
				if m.Initial {
					tags = append(tags, ui.Blue("initial"))
				}
				if replaced[m.ID] {
					tags = append(tags, ui.Dim("replaced"))
				}
				if len(m.Replaces) > 0 {
					tags = append(tags, ui.Yellow(fmt.Sprintf("squash of %d", len(m.Replaces))))
				}
				if head != nil && m.ID == head.ID {
					tags = append(tags, ui.Green("head"))
				}

				line := "  " + ui.Bold(m.ID)
				if replaced[m.ID] {
					line = "  " + ui.Dim(m.ID)
				}
				line += fmt.Sprintf("  %d op(s)", len(m.Operations))
				for _, t := range tags {
					line += "  [" + t + "]"
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	return cmd
}
