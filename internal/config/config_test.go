package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEnvOnlyDefaults(t *testing.T) {
	cfg, err := Load("", true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":8080" {
		t.Fatalf("http addr: %q", cfg.Server.HTTPAddr)
	}
	if cfg.Agents.Perception.Interval != 5*time.Minute {
		t.Fatalf("perception interval: %v", cfg.Agents.Perception.Interval)
	}
	if cfg.Agents.Execution.Portfolio != "simulation_main" || cfg.Agents.Execution.BatchSize != 5 {
		t.Fatalf("execution defaults: %+v", cfg.Agents.Execution)
	}
	if cfg.Risk != DefaultRisk() {
		t.Fatalf("risk defaults: %+v", cfg.Risk)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "server:\n  http_addr: \":9000\"\nagents:\n  decision:\n    interval: 2m\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TA_AGENTS_DECISION_BATCH_SIZE", "9")

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":9000" {
		t.Fatalf("http addr: %q", cfg.Server.HTTPAddr)
	}
	if cfg.Agents.Decision.Interval != 2*time.Minute {
		t.Fatalf("decision interval: %v", cfg.Agents.Decision.Interval)
	}
	if cfg.Agents.Decision.BatchSize != 9 {
		t.Fatalf("env override: %d", cfg.Agents.Decision.BatchSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
