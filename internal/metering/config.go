package metering

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Providers accepted by Config.Provider.
const (
	ProviderSQL = "sql"
	ProviderLog = "log"
)

var ErrUnknownProvider = errors.New("unknown metering provider")

// Config selects the recorder and bounds how long a single record call may take.
type Config struct {
	Provider string `toml:"provider"`
	Timeout  string `toml:"timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider string
	Timeout  string
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
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
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderSQL
	}
	if c.Timeout == "" {
		c.Timeout = "10s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Provider != "" {
		if v := os.Getenv(env.Provider); v != "" {
			c.Provider = v
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
}

func (c *Config) validate() error {
	if c.Provider != ProviderSQL && c.Provider != ProviderLog {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
	}
	if d, err := time.ParseDuration(c.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid timeout %q", c.Timeout)
	}
	return nil
}

// New returns the configured Recorder.
func New(cfg *Config, db *sql.DB, logger *slog.Logger) (Recorder, error) {
	switch cfg.Provider {
	case ProviderSQL:
		if db == nil {
			return nil, fmt.Errorf("sql metering requires a database connection")
		}
		return NewSQL(db), nil
	case ProviderLog:
		return NewLog(logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
