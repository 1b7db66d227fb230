package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/JaimeStill/receipts/pkg/formatting"
	"github.com/JaimeStill/receipts/pkg/middleware"
	"github.com/JaimeStill/receipts/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "RECEIPTS_CORS_ENABLED",
	Origins:          "RECEIPTS_CORS_ORIGINS",
	AllowedMethods:   "RECEIPTS_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "RECEIPTS_CORS_ALLOWED_HEADERS",
	ExposedHeaders:   "RECEIPTS_CORS_EXPOSED_HEADERS",
	AllowCredentials: "RECEIPTS_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "RECEIPTS_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "RECEIPTS_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "RECEIPTS_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing, upload limits, CORS, and pagination settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
}

// MaxUploadSizeBytes returns the upload limit, falling back to 32MB when
// MaxUploadSize has not been validated.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return 32 * 1024 * 1024
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested CORS and pagination configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if n, err := formatting.ParseBytes(c.MaxUploadSize); err != nil || n <= 0 {
		return fmt.Errorf("invalid max_upload_size %q", c.MaxUploadSize)
	}
	if !strings.HasPrefix(c.BasePath, "/") {
		return fmt.Errorf("base_path must start with /: %q", c.BasePath)
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
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "32MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("RECEIPTS_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("RECEIPTS_API_MAX_UPLOAD_SIZE"); v != "" {
		c.MaxUploadSize = v
	}
}
