package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Port    int    `env:"TEST_PORT" envDefault:"123"`
	Backend string `env:"TEST_BACKEND" envDefault:"json"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
	if cfg.Backend != "json" {
		t.Fatalf("expected default backend json, got %q", cfg.Backend)
	}
}

func TestParseEnvReadsPrefixedVariables(t *testing.T) {
	t.Setenv("PARTYLINE_TEST_BACKEND", "sqlite")
	t.Setenv("TEST_BACKEND", "redis")

	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Backend != "sqlite" {
		t.Fatalf("expected prefixed backend sqlite, got %q", cfg.Backend)
	}
}

func TestParseEnvWithPrefixUsesGivenPrefix(t *testing.T) {
	t.Setenv("OTHER_TEST_PORT", "9000")

	var cfg envTestConfig
	if err := ParseEnvWithPrefix(&cfg, "OTHER_"); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 9000 {
		t.Fatalf("expected port 9000, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("PARTYLINE_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
