// Package config loads engine and server settings from YAML files and
// DYNAMICS_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/entity-dynamics/internal/cascade"
	"github.com/danielpatrickdp/entity-dynamics/internal/registry"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

// #region types
// Config is the full process configuration.
type Config struct {
	Engine  EngineConfig  `json:"engine" yaml:"engine"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

// EngineConfig holds the registry tunables.
type EngineConfig struct {
	HistoryCapacity       int       `json:"history_capacity" yaml:"history_capacity"`
	ShockThreshold        float64   `json:"shock_threshold" yaml:"shock_threshold"`
	NegligibleImpactFloor float64   `json:"negligible_impact_floor" yaml:"negligible_impact_floor"`
	DecayBase             float64   `json:"decay_base" yaml:"decay_base"`
	DecayInertiaFactor    float64   `json:"decay_inertia_factor" yaml:"decay_inertia_factor"`
	CriticalLookaheadDays float64   `json:"critical_lookahead_days" yaml:"critical_lookahead_days"`
	WeakRelationThreshold float64   `json:"weak_relation_threshold" yaml:"weak_relation_threshold"`
	PrimaryFillFloor      float64   `json:"primary_fill_floor" yaml:"primary_fill_floor"`
	AlertLogCapacity      int       `json:"alert_log_capacity" yaml:"alert_log_capacity"`
	LoopHistoryCapacity   int       `json:"loop_history_capacity" yaml:"loop_history_capacity"`
	LoopWorkers           int       `json:"loop_workers" yaml:"loop_workers"`
	ForecastHorizons      []float64 `json:"forecast_horizons" yaml:"forecast_horizons"`
	EntropyWindow         int       `json:"entropy_window" yaml:"entropy_window"`
}

// JournalConfig points at the SQLite journal. An empty path disables it.
type JournalConfig struct {
	Path string `json:"path" yaml:"path"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	GRPCAddr      string        `json:"grpc_addr" yaml:"grpc_addr"`
	HTTPAddr      string        `json:"http_addr" yaml:"http_addr"` // JSON API and /metrics; empty disables
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text (tint) or json
}

// #endregion types

// #region defaults
// Default returns the built-in configuration.
func Default() *Config {
	rc := registry.DefaultConfig()
	return &Config{
		Engine: EngineConfig{
			HistoryCapacity:       rc.HistoryCapacity,
			ShockThreshold:        rc.Cascade.ShockThreshold,
			NegligibleImpactFloor: rc.Cascade.NegligibleImpactFloor,
			DecayBase:             rc.Decay.Base,
			DecayInertiaFactor:    rc.Decay.InertiaFactor,
			CriticalLookaheadDays: rc.Loop.CriticalLookaheadDays,
			WeakRelationThreshold: rc.Loop.WeakRelationThreshold,
			PrimaryFillFloor:      rc.Loop.PrimaryFillFloor,
			AlertLogCapacity:      rc.AlertLogCapacity,
			LoopHistoryCapacity:   rc.LoopHistoryCapacity,
			LoopWorkers:           rc.LoopWorkers,
			ForecastHorizons:      append([]float64(nil), rc.Loop.Assess.HorizonsDays...),
			EntropyWindow:         rc.Update.EntropyWindow,
		},
		Journal: JournalConfig{Path: ""},
		Server: ServerConfig{
			GRPCAddr:      "localhost:50061",
			HTTPAddr:      "localhost:8464",
			SweepInterval: time.Hour,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// #endregion defaults

// #region load
// Load reads defaults, then path (when non-empty), then environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile decodes a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	cfg.Journal.Path = envOr("DYNAMICS_JOURNAL", cfg.Journal.Path)
	cfg.Server.GRPCAddr = envOr("DYNAMICS_GRPC_ADDR", cfg.Server.GRPCAddr)
	cfg.Server.HTTPAddr = envOr("DYNAMICS_HTTP_ADDR", cfg.Server.HTTPAddr)
	cfg.Log.Level = envOr("DYNAMICS_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOr("DYNAMICS_LOG_FORMAT", cfg.Log.Format)

	if v := os.Getenv("DYNAMICS_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DYNAMICS_SWEEP_INTERVAL: %w", err)
		}
		cfg.Server.SweepInterval = d
	}
	ints := map[string]*int{
		"DYNAMICS_HISTORY_CAPACITY": &cfg.Engine.HistoryCapacity,
		"DYNAMICS_LOOP_WORKERS":     &cfg.Engine.LoopWorkers,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}
	floats := map[string]*float64{
		"DYNAMICS_SHOCK_THRESHOLD":         &cfg.Engine.ShockThreshold,
		"DYNAMICS_NEGLIGIBLE_IMPACT_FLOOR": &cfg.Engine.NegligibleImpactFloor,
		"DYNAMICS_CRITICAL_LOOKAHEAD_DAYS": &cfg.Engine.CriticalLookaheadDays,
	}
	for key, dst := range floats {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion load

// #region validate
// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	e := c.Engine
	if e.HistoryCapacity < 2 {
		return fmt.Errorf("history_capacity must be at least 2, got %d", e.HistoryCapacity)
	}
	if e.ShockThreshold >= 0 {
		return fmt.Errorf("shock_threshold must be negative, got %f", e.ShockThreshold)
	}
	if e.NegligibleImpactFloor < 0 {
		return fmt.Errorf("negligible_impact_floor must be non-negative, got %f", e.NegligibleImpactFloor)
	}
	if e.DecayBase <= 0 || e.DecayBase > 1 {
		return fmt.Errorf("decay_base must be in (0,1], got %f", e.DecayBase)
	}
	if e.DecayInertiaFactor < 0 || e.DecayBase-e.DecayInertiaFactor <= 0 {
		return fmt.Errorf("decay_inertia_factor %f leaves no positive decay base", e.DecayInertiaFactor)
	}
	if e.WeakRelationThreshold < -1 || e.WeakRelationThreshold > 1 {
		return fmt.Errorf("weak_relation_threshold must be in [-1,1], got %f", e.WeakRelationThreshold)
	}
	if e.PrimaryFillFloor < 0 || e.PrimaryFillFloor > 1 {
		return fmt.Errorf("primary_fill_floor must be in [0,1], got %f", e.PrimaryFillFloor)
	}
	if e.AlertLogCapacity <= 0 || e.LoopHistoryCapacity <= 0 {
		return fmt.Errorf("log capacities must be positive")
	}
	if e.LoopWorkers <= 0 {
		return fmt.Errorf("loop_workers must be positive, got %d", e.LoopWorkers)
	}
	if len(e.ForecastHorizons) == 0 {
		return fmt.Errorf("forecast_horizons must not be empty")
	}
	for _, h := range e.ForecastHorizons {
		if h <= 0 {
			return fmt.Errorf("forecast horizon must be positive, got %g", h)
		}
	}
	if c.Server.SweepInterval < 0 {
		return fmt.Errorf("sweep_interval must be non-negative, got %v", c.Server.SweepInterval)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Log.Format)
	}
	return nil
}

// #endregion validate

// #region registry
// Registry converts the engine section into registry settings.
func (e EngineConfig) Registry() registry.Config {
	rc := registry.DefaultConfig()
	rc.HistoryCapacity = e.HistoryCapacity
	rc.AlertLogCapacity = e.AlertLogCapacity
	rc.LoopHistoryCapacity = e.LoopHistoryCapacity
	rc.LoopWorkers = e.LoopWorkers
	rc.Decay = state.DecayConfig{Base: e.DecayBase, InertiaFactor: e.DecayInertiaFactor}
	rc.Cascade = cascade.Config{ShockThreshold: e.ShockThreshold, NegligibleImpactFloor: e.NegligibleImpactFloor}
	if e.EntropyWindow > 0 {
		rc.Update.EntropyWindow = e.EntropyWindow
	}
	rc.Loop.WeakRelationThreshold = e.WeakRelationThreshold
	rc.Loop.PrimaryFillFloor = e.PrimaryFillFloor
	rc.Loop.CriticalLookaheadDays = e.CriticalLookaheadDays
	rc.Loop.Assess.LookaheadDays = e.CriticalLookaheadDays
	rc.Loop.Assess.HorizonsDays = append([]float64(nil), e.ForecastHorizons...)
	rc.Loop.Assess.Decay = rc.Decay
	return rc
}

// #endregion registry
