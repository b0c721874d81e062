// Package config resolves reconsolidate's tunables from defaults, a YAML
// file, and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/openclaw/reconsolidate/internal/logging"
)

// Config is the complete reconsolidate configuration.
type Config struct {
	Version int `yaml:"version"`

	Energy   EnergyConfig `yaml:"energy"`
	Engine   EngineConfig `yaml:"engine"`
	Mirror   MirrorConfig `yaml:"mirror"`
	Paths    PathsConfig  `yaml:"paths"`
	LogLevel string       `yaml:"log_level"`
}

// EnergyConfig configures the Energy Map's decay model.
type EnergyConfig struct {
	// HalfLifeHours is the exponential decay half-life, in hours.
	HalfLifeHours float64 `yaml:"half_life_hours"`
}

// EngineConfig configures the weighted DCT reconsolidation pass.
type EngineConfig struct {
	// KeepRatio is the fraction of DCT coefficients retained (0, 1].
	KeepRatio float64 `yaml:"keep_ratio"`
	// PromotionStrength is the per-unit-energy row-weighting gain.
	PromotionStrength float64 `yaml:"promotion_strength"`
}

// MirrorConfig configures the Mirror Analyzer's reporting window.
type MirrorConfig struct {
	// WindowDays bounds how far back access events are considered.
	WindowDays int `yaml:"mirror_window_days"`
}

// PathsConfig configures the on-disk locations of state.
type PathsConfig struct {
	AccessStore  string `yaml:"access_store"`
	VectorStore  string `yaml:"vector_store"`
	MetricsStore string `yaml:"metrics_store"`
	SessionsDir  string `yaml:"sessions_dir"`
}

// Default returns the built-in defaults (tier 1).
func Default() *Config {
	return &Config{
		Version: 1,
		Energy: EnergyConfig{
			HalfLifeHours: 7 * 24,
		},
		Engine: EngineConfig{
			KeepRatio:         0.15,
			PromotionStrength: 1.5,
		},
		Mirror: MirrorConfig{
			WindowDays: 14,
		},
		Paths: PathsConfig{
			AccessStore:  logging.DefaultAccessStorePath(),
			VectorStore:  filepath.Join(logging.DefaultStateDir(), "vectors.db"),
			MetricsStore: logging.DefaultMetricsStorePath(),
			SessionsDir:  filepath.Join(logging.DefaultStateDir(), "sessions"),
		},
		LogLevel: "info",
	}
}

// DefaultConfigPath returns ~/.reconsolidate/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(logging.DefaultStateDir(), "config.yaml")
}

// Load resolves configuration in order of increasing precedence:
//  1. built-in defaults
//  2. the YAML file at path (skipped entirely if it doesn't exist)
//  3. RECONSOLIDATE_* environment variables
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath()
	}

	if data, err := os.ReadFile(path); err == nil {
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		cfg.mergeFile(&parsed)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// mergeFile overlays non-zero fields from the parsed file onto defaults.
func (c *Config) mergeFile(other *Config) {
	if other.Energy.HalfLifeHours != 0 {
		c.Energy.HalfLifeHours = other.Energy.HalfLifeHours
	}
	if other.Engine.KeepRatio != 0 {
		c.Engine.KeepRatio = other.Engine.KeepRatio
	}
	if other.Engine.PromotionStrength != 0 {
		c.Engine.PromotionStrength = other.Engine.PromotionStrength
	}
	if other.Mirror.WindowDays != 0 {
		c.Mirror.WindowDays = other.Mirror.WindowDays
	}
	if other.Paths.AccessStore != "" {
		c.Paths.AccessStore = other.Paths.AccessStore
	}
	if other.Paths.VectorStore != "" {
		c.Paths.VectorStore = other.Paths.VectorStore
	}
	if other.Paths.MetricsStore != "" {
		c.Paths.MetricsStore = other.Paths.MetricsStore
	}
	if other.Paths.SessionsDir != "" {
		c.Paths.SessionsDir = other.Paths.SessionsDir
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// applyEnvOverrides applies RECONSOLIDATE_* environment variables, the
// highest-precedence tier.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RECONSOLIDATE_KEEP_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Engine.KeepRatio = f
		}
	}
	if v := os.Getenv("RECONSOLIDATE_PROMOTION_STRENGTH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Engine.PromotionStrength = f
		}
	}
	if v := os.Getenv("RECONSOLIDATE_HALF_LIFE_HOURS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Energy.HalfLifeHours = f
		}
	}
	if v := os.Getenv("RECONSOLIDATE_MIRROR_WINDOW_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Mirror.WindowDays = n
		}
	}
	if v := os.Getenv("RECONSOLIDATE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the configuration against the invariants the Engine and
// Energy Map rely on.
func (c *Config) Validate() error {
	if c.Engine.KeepRatio <= 0 || c.Engine.KeepRatio > 1 {
		return fmt.Errorf("engine.keep_ratio must be in (0, 1], got %v", c.Engine.KeepRatio)
	}
	if c.Engine.PromotionStrength < 0 {
		return fmt.Errorf("engine.promotion_strength must be >= 0, got %v", c.Engine.PromotionStrength)
	}
	if c.Energy.HalfLifeHours <= 0 {
		return fmt.Errorf("energy.half_life_hours must be > 0, got %v", c.Energy.HalfLifeHours)
	}
	if c.Mirror.WindowDays <= 0 {
		return fmt.Errorf("mirror.mirror_window_days must be > 0, got %v", c.Mirror.WindowDays)
	}
	return nil
}

// WriteYAML writes c to path, creating parent directories as needed.
func (c *Config) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
