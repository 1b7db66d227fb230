package storage

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Providers accepted by Config.Provider.
const (
	ProviderAzure = "azure"
	ProviderGCS   = "gcs"
	ProviderMinio = "minio"
)

// Config holds blob storage connection parameters. Container names the
// Azure container or the GCS/S3 bucket.
type Config struct {
	Provider         string `toml:"provider"`
	Container        string `toml:"container"`
	ConnectionString string `toml:"connection_string"`
	Endpoint         string `toml:"endpoint"`
	AccessKey        string `toml:"access_key"`
	SecretKey        string `toml:"secret_key"`
	Region           string `toml:"region"`
	UseSSL           bool   `toml:"use_ssl"`
	URLExpiry        string `toml:"url_expiry"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider         string
	Container        string
	ConnectionString string
	Endpoint         string
	AccessKey        string
	SecretKey        string
	Region           string
	UseSSL           string
	URLExpiry        string
}

// URLExpiryDuration returns URLExpiry as a time.Duration.
func (c *Config) URLExpiryDuration() time.Duration {
	d, _ := time.ParseDuration(c.URLExpiry)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.Container != "" {
		c.Container = overlay.Container
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if overlay.AccessKey != "" {
		c.AccessKey = overlay.AccessKey
	}
	if overlay.SecretKey != "" {
		c.SecretKey = overlay.SecretKey
	}
	if overlay.Region != "" {
		c.Region = overlay.Region
	}
	if overlay.UseSSL {
		c.UseSSL = true
	}
	if overlay.URLExpiry != "" {
		c.URLExpiry = overlay.URLExpiry
	}
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderAzure
	}
	if c.Container == "" {
		c.Container = "receipts"
	}
	if c.URLExpiry == "" {
		c.URLExpiry = "15m"
	}
	if c.Region == "" {
		c.Region = "us-east-1"
	}
}

func (c *Config) loadEnv(env *Env) {
	set := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	set(env.Provider, &c.Provider)
	set(env.Container, &c.Container)
	set(env.ConnectionString, &c.ConnectionString)
	set(env.Endpoint, &c.Endpoint)
	set(env.AccessKey, &c.AccessKey)
	set(env.SecretKey, &c.SecretKey)
	set(env.Region, &c.Region)
	set(env.URLExpiry, &c.URLExpiry)

	if env.UseSSL != "" {
		if v := os.Getenv(env.UseSSL); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.UseSSL = b
			}
		}
	}
}

func (c *Config) validate() error {
	if c.Container == "" {
		return fmt.Errorf("container required")
	}
	if d, err := time.ParseDuration(c.URLExpiry); err != nil || d <= 0 {
		return fmt.Errorf("invalid url_expiry %q", c.URLExpiry)
	}

	switch c.Provider {
	case ProviderAzure:
		if c.ConnectionString == "" {
			return fmt.Errorf("connection_string required for azure provider")
		}
	case ProviderGCS:
	case ProviderMinio:
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint required for minio provider")
		}
		if c.AccessKey == "" || c.SecretKey == "" {
			return fmt.Errorf("access_key and secret_key required for minio provider")
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	return nil
}
