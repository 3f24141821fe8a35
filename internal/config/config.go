// Package config loads the settings for an embedded database instance
// from YAML, filling in the defaults a freshly created instance should
// use.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config holds everything needed to open an embedded database directory.
type Config struct {
	// DataDir is where the storage engine keeps its files.
	DataDir string `yaml:"dataDir"`
	// MinimumFreeGB is the free-space floor enforced at open time.
	// Compaction does not check free space.
	MinimumFreeGB int `yaml:"minimumFreeGB"`
	// RevLimit is how many generations of revision history are kept
	// per document before stemming drops the oldest. Zero selects the
	// default of 1000 when the database is opened.
	RevLimit int64 `yaml:"revLimit"`
	// ReplicationBatchSize is loaded and defaulted here only; pkg/replicate
	// takes its batch size from replicate.Options.BatchSize instead.
	ReplicationBatchSize int `yaml:"replicationBatchSize"`
	// LogLevel is a level name such as "info" or "debug". It is loaded
	// and defaulted here; no logger in this module is configured from it.
	LogLevel string `yaml:"logLevel"`
}

// Default returns the settings a brand-new database should use when no
// config file is present.
func Default(dataDir string) Config {
	return Config{
		DataDir:               dataDir,
		MinimumFreeGB:         1,
		RevLimit:              1000,
		ReplicationBatchSize:  100,
		LogLevel:              "info",
	}
}

// Load reads a YAML config file at path and fills unset fields with the
// defaults from Default(dataDir).
func Load(path string, dataDir string) (Config, error) {
	cfg := Default(dataDir)

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}
	if cfg.MinimumFreeGB == 0 {
		cfg.MinimumFreeGB = 1
	}
	if cfg.ReplicationBatchSize == 0 {
		cfg.ReplicationBatchSize = 100
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}
