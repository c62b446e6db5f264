package config

import (
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != DefaultConfig().Port {
		t.Errorf("expected default port, got %d", cfg.Port)
	}

	cfg2, err := Load(path)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if cfg2.MediaPath != cfg.MediaPath {
		t.Errorf("reload mismatch: %q != %q", cfg2.MediaPath, cfg.MediaPath)
	}
}

func TestLoadAppliesDefaultsForZeroFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := &Config{MediaPath: "/custom"}
	if err := partial.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MediaPath != "/custom" {
		t.Errorf("expected custom media path preserved, got %q", cfg.MediaPath)
	}
	if cfg.Workers.Hash != DefaultConfig().Workers.Hash {
		t.Errorf("expected default hash worker cap, got %d", cfg.Workers.Hash)
	}
	if cfg.FuzzyDedupeThresh != DefaultConfig().FuzzyDedupeThresh {
		t.Errorf("expected default fuzzy threshold, got %v", cfg.FuzzyDedupeThresh)
	}
}
