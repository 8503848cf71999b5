// Package config loads and validates cogsched configuration.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"cogsched/internal/attention"
)

// Config holds all cogsched configuration.
type Config struct {
	// Scheduler tunes the attention allocator.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Logging controls the categorized debug logs.
	Logging LoggingConfig `yaml:"logging"`
}

// SchedulerConfig tunes the attention allocator. Every magic number of
// the scoring and bucketing path lives here, never in logic.
type SchedulerConfig struct {
	MaxProcs        int `yaml:"max_procs"`
	AttentionLevels int `yaml:"attention_levels"`
	TimeWindow      int `yaml:"time_window"`

	// Weights is the 8-entry scoring table, ordered
	// load/memory/io/interactive/realtime/network/priority/emergent.
	Weights []float64 `yaml:"weights"`

	EmergentThreshold   float64 `yaml:"emergent_threshold"`
	EmergentBoost       float64 `yaml:"emergent_boost"`
	RecencyTicks        int64   `yaml:"recency_ticks"`
	InteractiveBaseline float64 `yaml:"interactive_baseline"`
	MemoryPlaceholder   float64 `yaml:"memory_placeholder"`
	BaseAttentionUnits  uint64  `yaml:"base_attention_units"`
}

// LoggingConfig controls the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	def := attention.DefaultConfig()
	w := def.Weights
	return Config{
		Scheduler: SchedulerConfig{
			MaxProcs:            def.MaxProcs,
			AttentionLevels:     def.AttentionLevels,
			TimeWindow:          def.TimeWindow,
			Weights:             w[:],
			EmergentThreshold:   def.EmergentThreshold,
			EmergentBoost:       def.EmergentBoost,
			RecencyTicks:        int64(def.RecencyTicks),
			InteractiveBaseline: def.InteractiveBaseline,
			MemoryPlaceholder:   def.MemoryPlaceholder,
			BaseAttentionUnits:  def.BaseAttentionUnits,
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads configuration from path, fills defaults for zero values and
// applies environment overrides. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.fillDefaults()
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// fillDefaults replaces zero values with the stock configuration, so a
// partial YAML file only overrides what it names.
func (c *Config) fillDefaults() {
	def := DefaultConfig()
	s := &c.Scheduler
	if s.MaxProcs <= 0 {
		s.MaxProcs = def.Scheduler.MaxProcs
	}
	if s.AttentionLevels <= 0 {
		s.AttentionLevels = def.Scheduler.AttentionLevels
	}
	if s.TimeWindow <= 0 {
		s.TimeWindow = def.Scheduler.TimeWindow
	}
	if len(s.Weights) == 0 {
		s.Weights = def.Scheduler.Weights
	}
	if s.EmergentThreshold <= 0 {
		s.EmergentThreshold = def.Scheduler.EmergentThreshold
	}
	if s.EmergentBoost <= 0 {
		s.EmergentBoost = def.Scheduler.EmergentBoost
	}
	if s.RecencyTicks <= 0 {
		s.RecencyTicks = def.Scheduler.RecencyTicks
	}
	if s.InteractiveBaseline <= 0 {
		s.InteractiveBaseline = def.Scheduler.InteractiveBaseline
	}
	if s.MemoryPlaceholder <= 0 {
		s.MemoryPlaceholder = def.Scheduler.MemoryPlaceholder
	}
	if s.BaseAttentionUnits == 0 {
		s.BaseAttentionUnits = def.Scheduler.BaseAttentionUnits
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}

// applyEnvOverrides lets operators override hot knobs without editing
// the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("COGSCHED_MAX_PROCS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Scheduler.MaxProcs = n
		}
	}
	if v := os.Getenv("COGSCHED_ATTENTION_LEVELS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Scheduler.AttentionLevels = n
		}
	}
	if v := os.Getenv("COGSCHED_EMERGENT_BOOST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Scheduler.EmergentBoost = f
		}
	}
	if v := os.Getenv("COGSCHED_DEBUG"); v != "" {
		c.Logging.DebugMode = v == "1" || v == "true"
	}
}

// Validate checks that the tuning is within acceptable ranges.
func (c *Config) Validate() error {
	s := c.Scheduler
	if s.MaxProcs < 1 {
		return fmt.Errorf("max_procs must be >= 1")
	}
	if s.AttentionLevels < 1 {
		return fmt.Errorf("attention_levels must be >= 1")
	}
	if s.TimeWindow < 1 {
		return fmt.Errorf("time_window must be >= 1")
	}
	if len(s.Weights) != attention.NumFeatures {
		return fmt.Errorf("weights must have exactly %d entries, got %d", attention.NumFeatures, len(s.Weights))
	}
	for i, w := range s.Weights {
		if w < 0 {
			return fmt.Errorf("weight %d is negative", i)
		}
	}
	if s.EmergentBoost < 1 {
		return fmt.Errorf("emergent_boost must be >= 1")
	}
	return nil
}

// Params maps the scheduler section onto the allocator's config type.
func (s SchedulerConfig) Params() attention.Config {
	var w attention.Weights
	copy(w[:], s.Weights)
	return attention.Config{
		MaxProcs:            s.MaxProcs,
		AttentionLevels:     s.AttentionLevels,
		TimeWindow:          s.TimeWindow,
		Weights:             w,
		EmergentThreshold:   s.EmergentThreshold,
		EmergentBoost:       s.EmergentBoost,
		RecencyTicks:        attention.Tick(s.RecencyTicks),
		InteractiveBaseline: s.InteractiveBaseline,
		MemoryPlaceholder:   s.MemoryPlaceholder,
		BaseAttentionUnits:  s.BaseAttentionUnits,
	}
}
