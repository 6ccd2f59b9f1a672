package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/muse/pkg/database"
	"github.com/JaimeStill/muse/pkg/images"
	"github.com/JaimeStill/muse/pkg/middleware"
	"github.com/JaimeStill/muse/pkg/publish"
	"github.com/JaimeStill/muse/pkg/schedule"
	"github.com/JaimeStill/muse/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvMuseEnv             = "MUSE_ENV"
	EnvMuseShutdownTimeout = "MUSE_SHUTDOWN_TIMEOUT"
	EnvMuseVersion         = "MUSE_VERSION"
)

// DatabaseEnv names the MUSE_DB_* variables. cmd/migrate reuses it to build its connection.
var DatabaseEnv = &database.Env{
	Host:            "MUSE_DB_HOST",
	Port:            "MUSE_DB_PORT",
	Name:            "MUSE_DB_NAME",
	User:            "MUSE_DB_USER",
	Password:        "MUSE_DB_PASSWORD",
	SSLMode:         "MUSE_DB_SSL_MODE",
	AppName:         "MUSE_DB_APP_NAME",
	MaxOpenConns:    "MUSE_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "MUSE_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "MUSE_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "MUSE_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "MUSE_STORAGE_CONTAINER_NAME",
	ConnectionString: "MUSE_STORAGE_CONNECTION_STRING",
	ServiceURL:       "MUSE_STORAGE_SERVICE_URL",
	LinkTTL:          "MUSE_STORAGE_LINK_TTL",
}

var imagesEnv = &images.Env{
	Backend:        "MUSE_IMAGES_BACKEND",
	APIKey:         "MUSE_IMAGES_API_KEY",
	Project:        "MUSE_IMAGES_PROJECT",
	Location:       "MUSE_IMAGES_LOCATION",
	Model:          "MUSE_IMAGES_MODEL",
	AspectRatio:    "MUSE_IMAGES_ASPECT_RATIO",
	OutputMIMEType: "MUSE_IMAGES_OUTPUT_MIME_TYPE",
	MaxSize:        "MUSE_IMAGES_MAX_SIZE",
	Timeout:        "MUSE_IMAGES_TIMEOUT",
}

var publishEnv = &publish.Env{
	Enabled:      "MUSE_PUBLISH_ENABLED",
	GraphURL:     "MUSE_PUBLISH_GRAPH_URL",
	AccountID:    "MUSE_PUBLISH_ACCOUNT_ID",
	AccessToken:  "MUSE_PUBLISH_ACCESS_TOKEN",
	MaxPerRun:    "MUSE_PUBLISH_MAX_PER_RUN",
	Hashtags:     "MUSE_PUBLISH_HASHTAGS",
	Timeout:      "MUSE_PUBLISH_TIMEOUT",
	PollInterval: "MUSE_PUBLISH_POLL_INTERVAL",
	MaxPolls:     "MUSE_PUBLISH_MAX_POLLS",
}

var scheduleEnv = &schedule.Env{
	Enabled:  "MUSE_SCHEDULE_ENABLED",
	Cron:     "MUSE_SCHEDULE_CRON",
	Timezone: "MUSE_SCHEDULE_TIMEZONE",
}

var authEnv = &middleware.AuthEnv{
	Enabled:  "MUSE_AUTH_ENABLED",
	Issuer:   "MUSE_AUTH_ISSUER",
	ClientID: "MUSE_AUTH_CLIENT_ID",
}

// Config is the root configuration for the Muse service.
type Config struct {
	Server          ServerConfig          `toml:"server"`
	Database        database.Config       `toml:"database"`
	Storage         storage.Config        `toml:"storage"`
	API             APIConfig             `toml:"api"`
	Agent           gaconfig.AgentConfig  `toml:"agent"`
	Generator       GeneratorConfig       `toml:"generator"`
	Images          images.Config         `toml:"images"`
	Publish         publish.Config        `toml:"publish"`
	Schedule        schedule.Config       `toml:"schedule"`
	Pipeline        PipelineConfig        `toml:"pipeline"`
	Auth            middleware.AuthConfig `toml:"auth"`
	ShutdownTimeout string                `toml:"shutdown_timeout"`
	Version         string                `toml:"version"`
}

// Env returns the MUSE_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvMuseEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads config.toml when present, merges the MUSE_ENV overlay, and
// finalizes every section. Without a config file, defaults and environment
// variables supply everything.
func Load() (*Config, error) {
	return LoadFrom(BaseConfigFile)
}

// LoadFrom is Load with an explicit base file path. The overlay is looked up
// next to it.
func LoadFrom(base string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(base); err == nil {
		loaded, err := load(base)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(base); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sections.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Agent.Merge(&overlay.Agent)
	c.Generator.Merge(&overlay.Generator)
	c.Images.Merge(&overlay.Images)
	c.Publish.Merge(&overlay.Publish)
	c.Schedule.Merge(&overlay.Schedule)
	c.Pipeline.Merge(&overlay.Pipeline)
	c.Auth.Merge(&overlay.Auth)
}

func (c *Config) finalize() error {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
	if v := os.Getenv(EnvMuseShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvMuseVersion); v != "" {
		c.Version = v
	}
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"database", func() error { return c.Database.Finalize(DatabaseEnv) }},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"api", c.API.Finalize},
		{"agent", func() error { return FinalizeAgent(&c.Agent) }},
		{"generator", c.Generator.Finalize},
		{"images", func() error { return c.Images.Finalize(imagesEnv) }},
		{"publish", func() error { return c.Publish.Finalize(publishEnv) }},
		{"schedule", func() error { return c.Schedule.Finalize(scheduleEnv) }},
		{"pipeline", c.Pipeline.Finalize},
		{"auth", func() error { return c.Auth.Finalize(authEnv) }},
	}

	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath(base string) string {
	env := os.Getenv(EnvMuseEnv)
	if env == "" {
		return ""
	}
	path := filepath.Join(filepath.Dir(base), fmt.Sprintf(OverlayConfigPattern, env))
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}
