package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Node.URL == "" || cfg.Defaults.VotingThreshold != 75 {
		t.Fatalf("default = %+v", cfg)
	}
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("node:\n  url: http://node:9999\n  application_id: app-1\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Node.URL != "http://node:9999" || cfg.Node.ApplicationID != "app-1" {
		t.Fatalf("cfg = %+v", cfg)
	}
	// Unset sections keep their defaults.
	if cfg.Server.BasePath != "/v0" {
		t.Fatalf("base path = %q", cfg.Server.BasePath)
	}
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := Default()
	cfg.Defaults.VotingThreshold = 30
	if err := cfg.Validate(); err == nil {
		t.Fatal("threshold below 50 must be rejected")
	}
	cfg.Defaults.VotingThreshold = 101
	if err := cfg.Validate(); err == nil {
		t.Fatal("threshold above 100 must be rejected")
	}
}

func TestValidateRequiresNodeURL(t *testing.T) {
	cfg := Default()
	cfg.Node.URL = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "node.url") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadOptional(dir)
	if err != nil {
		t.Fatalf("load without file: %v", err)
	}
	if cfg.Node.URL != Default().Node.URL {
		t.Fatalf("expected defaults, got %+v", cfg)
	}

	path := filepath.Join(dir, "agreeline.yml")
	if err := os.WriteFile(path, []byte("node:\n  url: http://elsewhere:1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err = LoadOptional(dir)
	if err != nil {
		t.Fatalf("load with file: %v", err)
	}
	if cfg.Node.URL != "http://elsewhere:1" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("Load must fail without a config file")
	}
}
