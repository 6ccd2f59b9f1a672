package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/JaimeStill/muse/pkg/retry"
)

var retryEnv = &retry.Env{
	MaxAttempts:     "MUSE_RETRY_MAX_ATTEMPTS",
	InitialInterval: "MUSE_RETRY_INITIAL_INTERVAL",
	MaxInterval:     "MUSE_RETRY_MAX_INTERVAL",
	Multiplier:      "MUSE_RETRY_MULTIPLIER",
}

// GeneratorConfig shapes the idea prompt.
type GeneratorConfig struct {
	Topic    string `toml:"topic"`
	Audience string `toml:"audience"`
	Style    string `toml:"style"`
}

// Finalize applies defaults and MUSE_GENERATOR_* overrides.
func (c *GeneratorConfig) Finalize() error {
	if c.Topic == "" {
		c.Topic = "everyday moments worth sharing"
	}
	if c.Audience == "" {
		c.Audience = "a general social media audience"
	}
	if c.Style == "" {
		c.Style = "vivid, photographic, natural light"
	}
	for dst, name := range map[*string]string{
		&c.Topic:    "MUSE_GENERATOR_TOPIC",
		&c.Audience: "MUSE_GENERATOR_AUDIENCE",
		&c.Style:    "MUSE_GENERATOR_STYLE",
	} {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	if strings.TrimSpace(c.Topic) == "" {
		return fmt.Errorf("topic required")
	}
	return nil
}

// Merge overwrites non-empty fields from overlay.
func (c *GeneratorConfig) Merge(overlay *GeneratorConfig) {
	if overlay.Topic != "" {
		c.Topic = overlay.Topic
	}
	if overlay.Audience != "" {
		c.Audience = overlay.Audience
	}
	if overlay.Style != "" {
		c.Style = overlay.Style
	}
}

// PipelineConfig controls how a run renders approved ideas.
type PipelineConfig struct {
	// Concurrency bounds how many approved ideas render at once.
	Concurrency int `toml:"concurrency"`
	// Folder is the storage prefix for uploaded images.
	Folder string       `toml:"folder"`
	Retry  retry.Config `toml:"retry"`
}

// Finalize applies defaults, MUSE_PIPELINE_* overrides, and validation.
func (c *PipelineConfig) Finalize() error {
	if c.Concurrency == 0 {
		c.Concurrency = 2
	}
	if c.Folder == "" {
		c.Folder = "ideas"
	}
	if v := os.Getenv("MUSE_PIPELINE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Concurrency = n
		}
	}
	if v := os.Getenv("MUSE_PIPELINE_FOLDER"); v != "" {
		c.Folder = v
	}
	c.Folder = strings.Trim(c.Folder, "/")

	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	if c.Folder == "" {
		return fmt.Errorf("folder required")
	}
	if err := c.Retry.Finalize(retryEnv); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *PipelineConfig) Merge(overlay *PipelineConfig) {
	if overlay.Concurrency != 0 {
		c.Concurrency = overlay.Concurrency
	}
	if overlay.Folder != "" {
		c.Folder = overlay.Folder
	}
	c.Retry.Merge(&overlay.Retry)
}
