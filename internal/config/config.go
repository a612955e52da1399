// Package config holds process-wide configuration for the workbench,
// loaded from a YAML file into a Config struct with defaults applied
// for anything left unset.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"legacymod/internal/errs"
)

// Config is the top-level process configuration.
type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Migration MigrationConfig `yaml:"migration"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ProjectConfig locates the analyzed project and its persisted state.
type ProjectConfig struct {
	Root         string `yaml:"root"`
	DatabasePath string `yaml:"database_path"` // graph database base path; the store appends its suffix
	StatePath    string `yaml:"state_path"`    // migration-state.json override
}

// AnalysisConfig controls the multi-pass executor and collectors.
type AnalysisConfig struct {
	MaxPasses         int  `yaml:"max_passes"`
	SkipExistingNodes bool `yaml:"skip_existing_nodes"`
	MaxParallelism    int  `yaml:"max_parallelism"`
}

// MigrationConfig controls the migration engine's defaults.
type MigrationConfig struct {
	AIProvider     string        `yaml:"ai_provider"`
	AITimeout      time.Duration `yaml:"ai_timeout"`
	HistoryCap     int           `yaml:"history_cap"`
	DefaultTimeout time.Duration `yaml:"default_block_timeout"`
}

// LoggingConfig controls verbosity.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// Default returns the workbench's built-in defaults.
func Default() *Config {
	return &Config{
		Project: ProjectConfig{
			// Base path only: the graph store owns the on-disk suffix.
			DatabasePath: ".analysis/graph",
			StatePath:    ".analysis/migration-state.json",
		},
		Analysis: AnalysisConfig{
			MaxPasses:         25,
			SkipExistingNodes: true,
			MaxParallelism:    4,
		},
		Migration: MigrationConfig{
			AIProvider:     "none",
			AITimeout:      2 * time.Minute,
			HistoryCap:     50,
			DefaultTimeout: 5 * time.Minute,
		},
	}
}

// Load reads a YAML config file, merging it over Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errs.IOWrap(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errs.ConfigWrap(err, "parsing config %s", path)
	}
	return cfg, nil
}
