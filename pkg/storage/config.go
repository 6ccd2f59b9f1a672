package storage

import (
	"fmt"
	"os"
	"time"
)

// Config selects an Azure Blob Storage account and container.
//
// With ConnectionString set, the client authenticates with the account key
// and links are read-only SAS URLs valid for LinkTTL. A SAS link stops working
// once LinkTTL has passed, so callers that keep links should keep the key too
// and sign again when they need a live URL. Otherwise ServiceURL is
// used with the default Azure credential chain and links are plain blob URLs,
// which requires a container with public read access.
type Config struct {
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	ServiceURL       string `toml:"service_url"`
	LinkTTL          string `toml:"link_ttl"`
}

// Env names the environment variables that override Config fields.
type Env struct {
	ContainerName    string
	ConnectionString string
	ServiceURL       string
	LinkTTL          string
}

// LinkTTLDuration returns LinkTTL as a time.Duration.
func (c *Config) LinkTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.LinkTTL)
	return d
}

// Finalize applies defaults, environment overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if c.ContainerName == "" {
		c.ContainerName = "content"
	}
	if c.LinkTTL == "" {
		c.LinkTTL = "8760h"
	}

	if env != nil {
		overrideString(&c.ContainerName, env.ContainerName)
		overrideString(&c.ConnectionString, env.ConnectionString)
		overrideString(&c.ServiceURL, env.ServiceURL)
		overrideString(&c.LinkTTL, env.LinkTTL)
	}

	return c.validate()
}

// Merge overwrites fields that are set in overlay.
func (c *Config) Merge(overlay *Config) {
	overrideValue(&c.ContainerName, overlay.ContainerName)
	overrideValue(&c.ConnectionString, overlay.ConnectionString)
	overrideValue(&c.ServiceURL, overlay.ServiceURL)
	overrideValue(&c.LinkTTL, overlay.LinkTTL)
}

func (c *Config) validate() error {
	if c.ContainerName == "" {
		return fmt.Errorf("container_name required")
	}
	if c.ConnectionString == "" && c.ServiceURL == "" {
		return fmt.Errorf("connection_string or service_url required")
	}
	ttl, err := time.ParseDuration(c.LinkTTL)
	if err != nil {
		return fmt.Errorf("invalid link_ttl: %w", err)
	}
	if ttl < 0 {
		return fmt.Errorf("link_ttl cannot be negative")
	}
	return nil
}

func overrideValue(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func overrideString(dst *string, name string) {
	if name == "" {
		return
	}
	overrideValue(dst, os.Getenv(name))
}
