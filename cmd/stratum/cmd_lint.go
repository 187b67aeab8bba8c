package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stratumdb/stratum/internal/imr"
	"github.com/stratumdb/stratum/internal/lint"
	"github.com/stratumdb/stratum/internal/ui"
)

// lintCmd validates the current models without generating anything.
func lintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Validate the current models",
		Long: `Parse the intermediate models file and report every consistency violation:
naming rules, primary key constraints, annotation compatibility, and foreign
key targets. All violations are reported in one pass, not just the first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			set, err := imr.LoadModels(cfg.ModelsFile)
			if err != nil {
				return err
			}

			errs := lint.Models(set.Models)
			if len(errs) == 0 {
				fmt.Println(ui.Success(fmt.Sprintf("%d model(s) look fine", len(set.Models))))
				return nil
			}
			for _, e := range errs {
				fmt.Fprintln(os.Stderr, ui.RenderError(e))
			}
			return fmt.Errorf("%d lint error(s) in %s", len(errs), cfg.ModelsFile)
		},
	}
	return cmd
}
