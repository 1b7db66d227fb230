package middleware

import (
	"errors"
	"os"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig holds the cross-origin policy for browser clients of the API.
// An origin of "*" admits any origin but cannot be combined with credentials.
type CORSConfig struct {
	Enabled          bool     `toml:"enabled"`
	Origins          []string `toml:"origins"`
	AllowedMethods   []string `toml:"allowed_methods"`
	AllowedHeaders   []string `toml:"allowed_headers"`
	ExposedHeaders   []string `toml:"exposed_headers"`
	AllowCredentials bool     `toml:"allow_credentials"`
	MaxAge           int      `toml:"max_age"`
}

// CORSEnv maps CORS config fields to environment variable names for override injection.
type CORSEnv struct {
	Enabled          string
	Origins          string
	AllowedMethods   string
	AllowedHeaders   string
	ExposedHeaders   string
	AllowCredentials string
	MaxAge           string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *CORSConfig) Finalize(env *CORSEnv) error {
	c.loadDefaults()
	if env != nil {
		if err := c.loadEnv(env); err != nil {
			return err
		}
	}
	return c.validate()
}

// Merge overwrites fields from overlay. Booleans always apply; lists and
// MaxAge apply when set.
func (c *CORSConfig) Merge(overlay *CORSConfig) {
	c.Enabled = overlay.Enabled
	c.AllowCredentials = overlay.AllowCredentials

	if overlay.Origins != nil {
		c.Origins = overlay.Origins
	}
	if overlay.AllowedMethods != nil {
		c.AllowedMethods = overlay.AllowedMethods
	}
	if overlay.AllowedHeaders != nil {
		c.AllowedHeaders = overlay.AllowedHeaders
	}
	if overlay.ExposedHeaders != nil {
		c.ExposedHeaders = overlay.ExposedHeaders
	}
	if overlay.MaxAge > 0 {
		c.MaxAge = overlay.MaxAge
	}
}

func (c *CORSConfig) allowsAny() bool {
	return slices.Contains(c.Origins, "*")
}

func (c *CORSConfig) loadDefaults() {
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = []string{"Content-Type", "Authorization", RequestIDHeader}
	}
	if len(c.ExposedHeaders) == 0 {
		c.ExposedHeaders = []string{RequestIDHeader}
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 3600
	}
}

func (c *CORSConfig) loadEnv(env *CORSEnv) error {
	lists := []struct {
		name   string
		target *[]string
	}{
		{env.Origins, &c.Origins},
		{env.AllowedMethods, &c.AllowedMethods},
		{env.AllowedHeaders, &c.AllowedHeaders},
		{env.ExposedHeaders, &c.ExposedHeaders},
	}
	for _, l := range lists {
		if v := lookup(l.name); v != "" {
			*l.target = splitList(v)
		}
	}

	flags := []struct {
		name   string
		target *bool
	}{
		{env.Enabled, &c.Enabled},
		{env.AllowCredentials, &c.AllowCredentials},
	}
	for _, f := range flags {
		if v := lookup(f.name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return errors.New(f.name + ": " + err.Error())
			}
			*f.target = b
		}
	}

	if v := lookup(env.MaxAge); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New(env.MaxAge + ": " + err.Error())
		}
		c.MaxAge = n
	}
	return nil
}

func (c *CORSConfig) validate() error {
	if c.AllowCredentials && c.allowsAny() {
		return errors.New("allow_credentials cannot be combined with origin \"*\"")
	}
	if c.MaxAge <= 0 {
		return errors.New("max_age must be positive")
	}
	return nil
}

func lookup(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// splitList parses a comma-separated env value, dropping empty items.
func splitList(v string) []string {
	var out []string
	for item := range strings.SplitSeq(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
