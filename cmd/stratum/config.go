package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default locations used when neither flags, env vars, nor the config file
// say otherwise.
const (
	defaultModelsFile    = "./.models.json"
	defaultMigrationsDir = "./migrations"

	// DirPerm and FilePerm are the permissions for created artifacts.
	DirPerm  = 0o755
	FilePerm = 0o644
)

// Config represents the stratum.yaml configuration file.
type Config struct {
	DatabaseURL   string `yaml:"database_url"`
	ModelsFile    string `yaml:"models_file"`
	MigrationsDir string `yaml:"migrations_dir"`
	Dialect       string `yaml:"dialect"`
}

// loadConfig loads configuration from file, env vars, and CLI flags.
// Precedence: CLI flags > env vars > config file > defaults.
func loadConfig() (*Config, error) {
	cfg := &Config{
		ModelsFile:    defaultModelsFile,
		MigrationsDir: defaultMigrationsDir,
		Dialect:       "sqlite",
	}

	if data, err := os.ReadFile(configFile); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
		// ${VAR} interpolation, so credentials can stay out of the file.
		cfg.DatabaseURL = os.Expand(cfg.DatabaseURL, os.Getenv)
	}

	if env := os.Getenv("DATABASE_URL"); env != "" {
		cfg.DatabaseURL = env
	}
	if env := os.Getenv("STRATUM_MODELS_FILE"); env != "" {
		cfg.ModelsFile = env
	}
	if env := os.Getenv("STRATUM_MIGRATIONS_DIR"); env != "" {
		cfg.MigrationsDir = env
	}
	if env := os.Getenv("STRATUM_DIALECT"); env != "" {
		cfg.Dialect = env
	}

	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	if modelsFile != "" {
		cfg.ModelsFile = modelsFile
	}
	if migrationsDir != "" {
		cfg.MigrationsDir = migrationsDir
	}
	if dialectName != "" {
		cfg.Dialect = dialectName
	}

	return cfg, nil
}
