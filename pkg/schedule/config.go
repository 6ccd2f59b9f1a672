package schedule

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// Config describes when the scheduled job fires.
type Config struct {
	// Enabled is a pointer so an overlay file can switch the schedule off.
	Enabled  *bool  `toml:"enabled"`
	Cron     string `toml:"cron"`
	Timezone string `toml:"timezone"`
}

// Env names the environment variables that override Config fields.
type Env struct {
	Enabled  string
	Cron     string
	Timezone string
}

// IsEnabled reports whether the schedule should run. Unset means enabled.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Finalize applies defaults, environment overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if c.Cron == "" {
		c.Cron = "0 9 * * *"
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}

	if env != nil {
		if v := getenv(env.Enabled); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.Enabled = &b
			}
		}
		if v := getenv(env.Cron); v != "" {
			c.Cron = v
		}
		if v := getenv(env.Timezone); v != "" {
			c.Timezone = v
		}
	}

	if _, err := cron.ParseStandard(c.Cron); err != nil {
		return fmt.Errorf("invalid cron %q: %w", c.Cron, err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Merge overwrites fields that are set in overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Enabled != nil {
		c.Enabled = overlay.Enabled
	}
	if overlay.Cron != "" {
		c.Cron = overlay.Cron
	}
	if overlay.Timezone != "" {
		c.Timezone = overlay.Timezone
	}
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
