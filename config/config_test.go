package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	doc := []byte("environment: dev\nlog_level: debug\nvenue:\n  name: transaq\n  full_log: false\nsim:\n  orders: 7\n")
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != EnvDev {
		t.Fatalf("environment: %s", cfg.Environment)
	}
	if cfg.Venue.Name != "transaq" || cfg.Venue.FullLog {
		t.Fatalf("venue override lost: %+v", cfg.Venue)
	}
	if cfg.Sim.Orders != 7 {
		t.Fatalf("sim orders: %d", cfg.Sim.Orders)
	}
	// Untouched fields keep their defaults.
	if cfg.Relay.CommandBuffer != 64 {
		t.Fatalf("command buffer default lost: %d", cfg.Relay.CommandBuffer)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EXECRELAY_ENV", "Staging")
	t.Setenv("EXECRELAY_VENUE", "transaq")
	t.Setenv("EXECRELAY_FULL_LOG", "false")
	t.Setenv("EXECRELAY_SIM_RATE", "2500")
	t.Setenv("EXECRELAY_FANOUT_WORKERS", "8")

	cfg := FromEnv()
	if cfg.Environment != EnvStaging {
		t.Fatalf("environment: %s", cfg.Environment)
	}
	if cfg.Venue.Name != "transaq" || cfg.Venue.FullLog {
		t.Fatalf("venue: %+v", cfg.Venue)
	}
	if cfg.Sim.EventsPerSecond != 2500 {
		t.Fatalf("sim rate: %f", cfg.Sim.EventsPerSecond)
	}
	if cfg.Relay.FanoutWorkers != 8 {
		t.Fatalf("fanout workers: %d", cfg.Relay.FanoutWorkers)
	}
}

func TestEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("EXECRELAY_FANOUT_WORKERS", "many")
	t.Setenv("EXECRELAY_FULL_LOG", "maybe")
	cfg := FromEnv()
	if cfg.Relay.FanoutWorkers != 0 {
		t.Fatalf("malformed int applied: %d", cfg.Relay.FanoutWorkers)
	}
	if !cfg.Venue.FullLog {
		t.Fatal("malformed bool applied")
	}
}

func TestValidateRejectsEmptyVenue(t *testing.T) {
	cfg := Default()
	cfg.Venue.Name = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}
