package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stratumdb/stratum/internal/ui"
)

const configTemplate = `# stratum configuration
# database_url supports ${VAR} interpolation from the environment.
database_url: ""
models_file: ./.models.json
migrations_dir: ./migrations
dialect: sqlite
`

// initCmd scaffolds a new project: the migrations directory and a config
// file with defaults.
func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize project structure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if err := os.MkdirAll(cfg.MigrationsDir, DirPerm); err != nil {
				return fmt.Errorf("failed to create %s: %w", cfg.MigrationsDir, err)
			}
			fmt.Println(ui.Success("Created " + cfg.MigrationsDir + "/"))

			if _, err := os.Stat(configFile); err == nil {
				fmt.Println(ui.Info(configFile + " already exists, leaving it alone"))
				return nil
			}
			if err := os.WriteFile(configFile, []byte(configTemplate), FilePerm); err != nil {
				return fmt.Errorf("failed to write %s: %w", configFile, err)
			}
			fmt.Println(ui.Success("Created " + configFile))
			return nil
		},
	}
	return cmd
}
