package images

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/JaimeStill/muse/pkg/formatting"
)

// Backends accepted by Config.Backend.
const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"
)

// Config selects the image model and output settings.
type Config struct {
	Backend        string `toml:"backend"`
	APIKey         string `toml:"api_key"`
	Project        string `toml:"project"`
	Location       string `toml:"location"`
	Model          string `toml:"model"`
	AspectRatio    string `toml:"aspect_ratio"`
	OutputMIMEType string `toml:"output_mime_type"`
	NegativePrompt string `toml:"negative_prompt"`
	MaxSize        string `toml:"max_size"`
	Timeout        string `toml:"timeout"`
}

// Env names the environment variables that override Config fields.
type Env struct {
	Backend        string
	APIKey         string
	Project        string
	Location       string
	Model          string
	AspectRatio    string
	OutputMIMEType string
	MaxSize        string
	Timeout        string
}

// MaxSizeBytes returns MaxSize in bytes.
func (c *Config) MaxSizeBytes() int64 {
	n, err := formatting.ParseBytes(c.MaxSize)
	if err != nil {
		return 0
	}
	return n
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
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
	for dst, src := range map[*string]string{
		&c.Backend:        overlay.Backend,
		&c.APIKey:         overlay.APIKey,
		&c.Project:        overlay.Project,
		&c.Location:       overlay.Location,
		&c.Model:          overlay.Model,
		&c.AspectRatio:    overlay.AspectRatio,
		&c.OutputMIMEType: overlay.OutputMIMEType,
		&c.NegativePrompt: overlay.NegativePrompt,
		&c.MaxSize:        overlay.MaxSize,
		&c.Timeout:        overlay.Timeout,
	} {
		if src != "" {
			*dst = src
		}
	}
}

func (c *Config) loadDefaults() {
	if c.Backend == "" {
		c.Backend = BackendGemini
	}
	if c.Model == "" {
		c.Model = "imagen-4.0-generate-001"
	}
	if c.AspectRatio == "" {
		c.AspectRatio = "1:1"
	}
	if c.OutputMIMEType == "" {
		c.OutputMIMEType = "image/png"
	}
	if c.MaxSize == "" {
		c.MaxSize = "20MB"
	}
	if c.Timeout == "" {
		c.Timeout = "2m"
	}
}

func (c *Config) loadEnv(env *Env) {
	for dst, name := range map[*string]string{
		&c.Backend:        env.Backend,
		&c.APIKey:         env.APIKey,
		&c.Project:        env.Project,
		&c.Location:       env.Location,
		&c.Model:          env.Model,
		&c.AspectRatio:    env.AspectRatio,
		&c.OutputMIMEType: env.OutputMIMEType,
		&c.MaxSize:        env.MaxSize,
		&c.Timeout:        env.Timeout,
	} {
		if name == "" {
			continue
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendGemini:
	case BackendVertex:
		if c.Project == "" || c.Location == "" {
			return fmt.Errorf("project and location required for vertex backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if !slices.Contains(SupportedTypes(), c.OutputMIMEType) {
		return fmt.Errorf("unsupported output_mime_type %q", c.OutputMIMEType)
	}
	if n, err := formatting.ParseBytes(c.MaxSize); err != nil || n <= 0 {
		return fmt.Errorf("invalid max_size %q", c.MaxSize)
	}
	if d, err := time.ParseDuration(c.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid timeout %q", c.Timeout)
	}
	return nil
}
