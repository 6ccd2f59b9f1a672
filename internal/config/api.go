package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/muse/pkg/formatting"
	"github.com/JaimeStill/muse/pkg/middleware"
	"github.com/JaimeStill/muse/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "MUSE_CORS_ENABLED",
	Origins:          "MUSE_CORS_ORIGINS",
	AllowedMethods:   "MUSE_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "MUSE_CORS_ALLOWED_HEADERS",
	AllowCredentials: "MUSE_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "MUSE_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "MUSE_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "MUSE_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing, CORS, and pagination settings.
type APIConfig struct {
	BasePath       string                `toml:"base_path"`
	MaxRequestSize string                `toml:"max_request_size"`
	CORS           middleware.CORSConfig `toml:"cors"`
	Pagination     pagination.Config     `toml:"pagination"`
}

// MaxRequestSizeBytes returns the request body cap in bytes.
func (c *APIConfig) MaxRequestSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxRequestSize)
	if err != nil {
		return 1 << 20
	}
	return size
}

// Finalize applies defaults, environment overrides, and validation for the
// API config and its nested CORS and pagination configs.
func (c *APIConfig) Finalize() error {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxRequestSize == "" {
		c.MaxRequestSize = "1MB"
	}
	if v := os.Getenv("MUSE_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("MUSE_API_MAX_REQUEST_SIZE"); v != "" {
		c.MaxRequestSize = v
	}

	if _, err := formatting.ParseBytes(c.MaxRequestSize); err != nil {
		return fmt.Errorf("invalid max_request_size: %w", err)
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxRequestSize != "" {
		c.MaxRequestSize = overlay.MaxRequestSize
	}
	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
}
