package retry

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config describes a bounded exponential backoff policy in config-file form.
type Config struct {
	MaxAttempts     int     `toml:"max_attempts"`
	InitialInterval string  `toml:"initial_interval"`
	MaxInterval     string  `toml:"max_interval"`
	Multiplier      float64 `toml:"multiplier"`
}

// Env names the environment variables that override Config fields.
type Env struct {
	MaxAttempts     string
	InitialInterval string
	MaxInterval     string
	Multiplier      string
}

// Finalize applies defaults, environment overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites fields that are set in overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.MaxAttempts != 0 {
		c.MaxAttempts = overlay.MaxAttempts
	}
	if overlay.InitialInterval != "" {
		c.InitialInterval = overlay.InitialInterval
	}
	if overlay.MaxInterval != "" {
		c.MaxInterval = overlay.MaxInterval
	}
	if overlay.Multiplier != 0 {
		c.Multiplier = overlay.Multiplier
	}
}

// Policy converts the finalized config into a Policy.
func (c *Config) Policy() Policy {
	initial, _ := time.ParseDuration(c.InitialInterval)
	maxInterval, _ := time.ParseDuration(c.MaxInterval)
	return Policy{
		MaxAttempts:     c.MaxAttempts,
		InitialInterval: initial,
		MaxInterval:     maxInterval,
		Multiplier:      c.Multiplier,
	}
}

func (c *Config) loadDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.InitialInterval == "" {
		c.InitialInterval = "1s"
	}
	if c.MaxInterval == "" {
		c.MaxInterval = "30s"
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2
	}
}

func (c *Config) loadEnv(env *Env) {
	if v := lookup(env.MaxAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxAttempts = n
		}
	}
	if v := lookup(env.InitialInterval); v != "" {
		c.InitialInterval = v
	}
	if v := lookup(env.MaxInterval); v != "" {
		c.MaxInterval = v
	}
	if v := lookup(env.Multiplier); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Multiplier = f
		}
	}
}

func (c *Config) validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1")
	}
	initial, err := time.ParseDuration(c.InitialInterval)
	if err != nil {
		return fmt.Errorf("invalid initial_interval: %w", err)
	}
	maxInterval, err := time.ParseDuration(c.MaxInterval)
	if err != nil {
		return fmt.Errorf("invalid max_interval: %w", err)
	}
	if maxInterval < initial {
		return fmt.Errorf("max_interval cannot be less than initial_interval")
	}
	return nil
}

func lookup(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
