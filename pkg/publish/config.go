package publish

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config selects the Instagram business account that approved ideas are
// posted to. Publishing is off unless Enabled is set.
type Config struct {
	Enabled      *bool  `toml:"enabled"`
	GraphURL     string `toml:"graph_url"`
	AccountID    string `toml:"account_id"`
	AccessToken  string `toml:"access_token"`
	MaxPerRun    int    `toml:"max_per_run"`
	Hashtags     string `toml:"hashtags"`
	Timeout      string `toml:"timeout"`
	PollInterval string `toml:"poll_interval"`
	MaxPolls     int    `toml:"max_polls"`
}

// Env names the environment variables that override Config fields.
type Env struct {
	Enabled      string
	GraphURL     string
	AccountID    string
	AccessToken  string
	MaxPerRun    string
	Hashtags     string
	Timeout      string
	PollInterval string
	MaxPolls     string
}

// IsEnabled reports whether publishing is switched on. Unset means off.
func (c *Config) IsEnabled() bool {
	return c.Enabled != nil && *c.Enabled
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// PollIntervalDuration returns PollInterval as a time.Duration.
func (c *Config) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

// Finalize applies defaults, environment overrides, and validation.
// Credentials are only required when publishing is enabled.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		if err := c.loadEnv(env); err != nil {
			return err
		}
	}
	return c.validate()
}

// Merge overwrites fields that are set in overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Enabled != nil {
		c.Enabled = overlay.Enabled
	}
	for dst, src := range map[*string]string{
		&c.GraphURL:     overlay.GraphURL,
		&c.AccountID:    overlay.AccountID,
		&c.AccessToken:  overlay.AccessToken,
		&c.Hashtags:     overlay.Hashtags,
		&c.Timeout:      overlay.Timeout,
		&c.PollInterval: overlay.PollInterval,
	} {
		if src != "" {
			*dst = src
		}
	}
	if overlay.MaxPerRun != 0 {
		c.MaxPerRun = overlay.MaxPerRun
	}
	if overlay.MaxPolls != 0 {
		c.MaxPolls = overlay.MaxPolls
	}
}

func (c *Config) loadDefaults() {
	if c.GraphURL == "" {
		c.GraphURL = "https://graph.facebook.com/v21.0"
	}
	if c.MaxPerRun == 0 {
		c.MaxPerRun = 1
	}
	if c.Timeout == "" {
		c.Timeout = "1m"
	}
	if c.PollInterval == "" {
		c.PollInterval = "2s"
	}
	if c.MaxPolls == 0 {
		c.MaxPolls = 15
	}
}

func (c *Config) loadEnv(env *Env) error {
	if env.Enabled != "" {
		if v := os.Getenv(env.Enabled); v != "" {
			enabled, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", env.Enabled, err)
			}
			c.Enabled = &enabled
		}
	}

	for dst, name := range map[*string]string{
		&c.GraphURL:     env.GraphURL,
		&c.AccountID:    env.AccountID,
		&c.AccessToken:  env.AccessToken,
		&c.Hashtags:     env.Hashtags,
		&c.Timeout:      env.Timeout,
		&c.PollInterval: env.PollInterval,
	} {
		if name == "" {
			continue
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	for dst, name := range map[*int]string{
		&c.MaxPerRun: env.MaxPerRun,
		&c.MaxPolls:  env.MaxPolls,
	} {
		if name == "" {
			continue
		}
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", name, err)
			}
			*dst = n
		}
	}
	return nil
}

func (c *Config) validate() error {
	if u, err := url.Parse(c.GraphURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid graph_url %q", c.GraphURL)
	}
	if c.MaxPerRun < 1 {
		return fmt.Errorf("max_per_run must be at least 1")
	}
	if c.MaxPolls < 1 {
		return fmt.Errorf("max_polls must be at least 1")
	}
	if d, err := time.ParseDuration(c.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid timeout %q", c.Timeout)
	}
	if d, err := time.ParseDuration(c.PollInterval); err != nil || d <= 0 {
		return fmt.Errorf("invalid poll_interval %q", c.PollInterval)
	}
	if c.IsEnabled() && (c.AccountID == "" || c.AccessToken == "") {
		return fmt.Errorf("account_id and access_token required when publishing is enabled")
	}
	return nil
}
