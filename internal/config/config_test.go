package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	e := cfg.Engine
	if e.HistoryCapacity != 90 || e.ShockThreshold != -0.02 || e.NegligibleImpactFloor != 0.001 {
		t.Fatalf("unexpected engine defaults %+v", e)
	}
	if e.DecayBase != 0.99 || e.DecayInertiaFactor != 0.04 || e.CriticalLookaheadDays != 30 {
		t.Fatalf("unexpected decay defaults %+v", e)
	}
	if e.AlertLogCapacity != 1000 || e.LoopHistoryCapacity != 500 || e.LoopWorkers != 4 {
		t.Fatalf("unexpected capacity defaults %+v", e)
	}
	if len(e.ForecastHorizons) != 3 || e.ForecastHorizons[2] != 365 {
		t.Fatalf("unexpected horizons %v", e.ForecastHorizons)
	}
	if cfg.Server.SweepInterval != time.Hour || cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("unexpected server/log defaults %+v %+v", cfg.Server, cfg.Log)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dynamics.yaml")
	content := `
engine:
  shock_threshold: -0.05
  loop_workers: 2
  forecast_horizons: [7, 14]
journal:
  path: /tmp/journal.db
server:
  sweep_interval: 15m
log:
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.ShockThreshold != -0.05 || cfg.Engine.LoopWorkers != 2 {
		t.Errorf("engine overrides not applied: %+v", cfg.Engine)
	}
	if len(cfg.Engine.ForecastHorizons) != 2 || cfg.Engine.ForecastHorizons[1] != 14 {
		t.Errorf("expected horizons [7 14], got %v", cfg.Engine.ForecastHorizons)
	}
	if cfg.Engine.HistoryCapacity != 90 {
		t.Errorf("unset fields should keep defaults, got %d", cfg.Engine.HistoryCapacity)
	}
	if cfg.Journal.Path != "/tmp/journal.db" || cfg.Server.SweepInterval != 15*time.Minute || cfg.Log.Format != "json" {
		t.Errorf("unexpected journal/server/log %+v %+v %+v", cfg.Journal, cfg.Server, cfg.Log)
	}

	rc := cfg.Engine.Registry()
	if rc.Cascade.ShockThreshold != -0.05 || rc.LoopWorkers != 2 || len(rc.Loop.Assess.HorizonsDays) != 2 {
		t.Errorf("registry conversion lost settings: %+v", rc)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("engine: [unclosed"), 0600)
	if _, err := LoadFromFile(path); err == nil || !strings.Contains(err.Error(), "parsing config file") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DYNAMICS_GRPC_ADDR", "0.0.0.0:7000")
	t.Setenv("DYNAMICS_LOOP_WORKERS", "9")
	t.Setenv("DYNAMICS_SHOCK_THRESHOLD", "-0.1")
	t.Setenv("DYNAMICS_SWEEP_INTERVAL", "5m")
	t.Setenv("DYNAMICS_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.GRPCAddr != "0.0.0.0:7000" || cfg.Engine.LoopWorkers != 9 {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Server, cfg.Engine)
	}
	if cfg.Engine.ShockThreshold != -0.1 || cfg.Server.SweepInterval != 5*time.Minute || cfg.Log.Level != "debug" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestEnvOverrideParseError(t *testing.T) {
	t.Setenv("DYNAMICS_LOOP_WORKERS", "many")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "DYNAMICS_LOOP_WORKERS") {
		t.Fatalf("expected parse error naming the variable, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"positive shock", func(c *Config) { c.Engine.ShockThreshold = 0.1 }, "shock_threshold"},
		{"tiny history", func(c *Config) { c.Engine.HistoryCapacity = 1 }, "history_capacity"},
		{"decay base", func(c *Config) { c.Engine.DecayBase = 1.5 }, "decay_base"},
		{"decay factor", func(c *Config) { c.Engine.DecayInertiaFactor = 2 }, "decay_inertia_factor"},
		{"no workers", func(c *Config) { c.Engine.LoopWorkers = 0 }, "loop_workers"},
		{"no horizons", func(c *Config) { c.Engine.ForecastHorizons = nil }, "forecast_horizons"},
		{"bad horizon", func(c *Config) { c.Engine.ForecastHorizons = []float64{-1} }, "horizon"},
		{"fill floor", func(c *Config) { c.Engine.PrimaryFillFloor = 2 }, "primary_fill_floor"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
