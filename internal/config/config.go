// Package config loads and persists the engine's YAML configuration file,
// applying defaults for any field left unset.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WorkerLimits caps how many tasks of each type may run concurrently.
type WorkerLimits struct {
	Scan      int `yaml:"scan"`
	Hash      int `yaml:"hash"`
	Scrape    int `yaml:"scrape"`
	Rename    int `yaml:"rename"`
	BatchMove int `yaml:"batch_move"`
	BatchCopy int `yaml:"batch_copy"`
	Cleanup   int `yaml:"cleanup"`
}

// Config is the engine's full runtime configuration.
type Config struct {
	MediaPath          string       `yaml:"media_path"`
	DataDir            string       `yaml:"data_dir"`
	TrashDir           string       `yaml:"trash_dir"`
	DatabaseFile       string       `yaml:"database_file"`
	Port               int          `yaml:"port"`
	LogLevel           string       `yaml:"log_level"`
	HashChunkBytes     int          `yaml:"hash_chunk_bytes"`
	TrashRetentionDays int          `yaml:"trash_retention_days"`
	FuzzyDedupeThresh  float64      `yaml:"fuzzy_dedupe_threshold"`
	RenameTemplate     string       `yaml:"rename_template"`
	CatalogAPIKey      string       `yaml:"catalog_api_key"`
	CatalogRatePerSec  float64      `yaml:"catalog_rate_per_second"`
	Workers            WorkerLimits `yaml:"workers"`
}

// DefaultConfig returns a Config with every field set to a sane default.
func DefaultConfig() *Config {
	return &Config{
		MediaPath:          "/media",
		DataDir:            "./data",
		TrashDir:           "./data/trash",
		DatabaseFile:       "./data/mediavault.db",
		Port:               8090,
		LogLevel:           "info",
		HashChunkBytes:     4 << 20, // 4 MiB
		TrashRetentionDays: 30,
		FuzzyDedupeThresh:  0.85,
		RenameTemplate:     "{title} ({year})",
		CatalogRatePerSec:  4,
		Workers: WorkerLimits{
			Scan:      1,
			Hash:      4,
			Scrape:    8,
			Rename:    2,
			BatchMove: 2,
			BatchCopy: 2,
			Cleanup:   1,
		},
	}
}

// Load reads path into a Config, creating a default file there if none
// exists, and filling any zero-valued field with its default.
func Load(path string) (*Config, error) {
	def := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := def.Save(path); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
		return def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults(def)
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults(def *Config) {
	if c.MediaPath == "" {
		c.MediaPath = def.MediaPath
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.TrashDir == "" {
		c.TrashDir = def.TrashDir
	}
	if c.DatabaseFile == "" {
		c.DatabaseFile = def.DatabaseFile
	}
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.HashChunkBytes == 0 {
		c.HashChunkBytes = def.HashChunkBytes
	}
	if c.TrashRetentionDays == 0 {
		c.TrashRetentionDays = def.TrashRetentionDays
	}
	if c.FuzzyDedupeThresh == 0 {
		c.FuzzyDedupeThresh = def.FuzzyDedupeThresh
	}
	if c.RenameTemplate == "" {
		c.RenameTemplate = def.RenameTemplate
	}
	if c.CatalogRatePerSec == 0 {
		c.CatalogRatePerSec = def.CatalogRatePerSec
	}
	if c.Workers.Scan == 0 {
		c.Workers.Scan = def.Workers.Scan
	}
	if c.Workers.Hash == 0 {
		c.Workers.Hash = def.Workers.Hash
	}
	if c.Workers.Scrape == 0 {
		c.Workers.Scrape = def.Workers.Scrape
	}
	if c.Workers.Rename == 0 {
		c.Workers.Rename = def.Workers.Rename
	}
	if c.Workers.BatchMove == 0 {
		c.Workers.BatchMove = def.Workers.BatchMove
	}
	if c.Workers.BatchCopy == 0 {
		c.Workers.BatchCopy = def.Workers.BatchCopy
	}
	if c.Workers.Cleanup == 0 {
		c.Workers.Cleanup = def.Workers.Cleanup
	}
}
