package specfit

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the numeric options of a fit.
type Config struct {
	// MinVel and MaxVel bound the radial velocity in km/s.
	MinVel float64 `yaml:"min_vel"`
	MaxVel float64 `yaml:"max_vel"`

	// VelStep0 is the step of the seed grid and of the first velocity scan.
	VelStep0 float64 `yaml:"vel_step0"`

	// MinVsini and MaxVsini bound the fitted vsini in km/s.
	MinVsini float64 `yaml:"min_vsini"`
	MaxVsini float64 `yaml:"max_vsini"`

	// MinVelStep is the floor of the adaptive velocity scan step.
	MinVelStep float64 `yaml:"min_vel_step"`

	// NPoly is the number of Legendre continuum terms per arm.
	NPoly int `yaml:"npoly"`

	// CritRatio is how many times the scan step must be smaller than the
	// velocity uncertainty it measures.
	CritRatio float64 `yaml:"crit_ratio"`

	// MaxScanIterations bounds the adaptive velocity scan.
	MaxScanIterations int `yaml:"max_scan_iterations"`

	// SeedWindow restricts the seed grid to guess velocity +/- SeedWindow.
	// 0 scans the whole [MinVel, MaxVel) range.
	SeedWindow float64 `yaml:"seed_window"`
}

// DefaultConfig returns a Config with the standard values.
func DefaultConfig() *Config {
	return &Config{
		MinVel:            -1000,
		MaxVel:            1000,
		VelStep0:          5,
		MinVsini:          1e-2,
		MaxVsini:          500,
		MinVelStep:        0.2,
		NPoly:             5,
		CritRatio:         5,
		MaxScanIterations: 20,
	}
}

// ParseConfig decodes YAML on top of DefaultConfig. Only keys present in
// data override defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Reason: "failed to parse config", cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML configuration file. A missing file is a
// configuration error.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{Field: path, Reason: "config file not found", cause: err}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	finite := func(name string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ConfigError{Field: name, Reason: "must be finite"}
		}
		return nil
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"min_vel", c.MinVel}, {"max_vel", c.MaxVel}, {"vel_step0", c.VelStep0},
		{"min_vsini", c.MinVsini}, {"max_vsini", c.MaxVsini}, {"min_vel_step", c.MinVelStep},
		{"crit_ratio", c.CritRatio}, {"seed_window", c.SeedWindow},
	} {
		if err := finite(f.name, f.v); err != nil {
			return err
		}
	}

	if c.MinVel >= c.MaxVel {
		return &ConfigError{Field: "min_vel", Reason: fmt.Sprintf("must be below max_vel, got %g >= %g", c.MinVel, c.MaxVel)}
	}
	if c.VelStep0 <= 0 {
		return &ConfigError{Field: "vel_step0", Reason: fmt.Sprintf("must be > 0, got %g", c.VelStep0)}
	}
	if c.MinVsini <= 0 {
		return &ConfigError{Field: "min_vsini", Reason: fmt.Sprintf("must be > 0, got %g", c.MinVsini)}
	}
	if c.MaxVsini <= c.MinVsini {
		return &ConfigError{Field: "max_vsini", Reason: fmt.Sprintf("must exceed min_vsini, got %g <= %g", c.MaxVsini, c.MinVsini)}
	}
	if c.MinVelStep <= 0 {
		return &ConfigError{Field: "min_vel_step", Reason: fmt.Sprintf("must be > 0, got %g", c.MinVelStep)}
	}
	if c.NPoly < 1 {
		return &ConfigError{Field: "npoly", Reason: fmt.Sprintf("must be >= 1, got %d", c.NPoly)}
	}
	if c.CritRatio <= 1 {
		return &ConfigError{Field: "crit_ratio", Reason: fmt.Sprintf("must be > 1, got %g", c.CritRatio)}
	}
	if c.MaxScanIterations < 1 {
		return &ConfigError{Field: "max_scan_iterations", Reason: fmt.Sprintf("must be >= 1, got %d", c.MaxScanIterations)}
	}
	if c.SeedWindow < 0 {
		return &ConfigError{Field: "seed_window", Reason: fmt.Sprintf("must be >= 0, got %g", c.SeedWindow)}
	}
	return nil
}
