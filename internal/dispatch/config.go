package dispatch

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Modes accepted by Config.Mode.
const (
	ModeLocal       = "local"
	ModeCloudEvents = "cloudevents"
)

// Config selects how triggers reach the workflow runner.
type Config struct {
	Mode       string `toml:"mode"`
	Workers    int    `toml:"workers"`
	QueueSize  int    `toml:"queue_size"`
	RunTimeout string `toml:"run_timeout"`
	Sink       string `toml:"sink"`
	Timeout    string `toml:"timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Mode       string
	Workers    string
	QueueSize  string
	RunTimeout string
	Sink       string
	Timeout    string
}

// RunTimeoutDuration returns RunTimeout as a time.Duration.
func (c *Config) RunTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.RunTimeout)
	return d
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
		if err := c.loadEnv(env); err != nil {
			return err
		}
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Mode != "" {
		c.Mode = overlay.Mode
	}
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.QueueSize != 0 {
		c.QueueSize = overlay.QueueSize
	}
	if overlay.RunTimeout != "" {
		c.RunTimeout = overlay.RunTimeout
	}
	if overlay.Sink != "" {
		c.Sink = overlay.Sink
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *Config) loadDefaults() {
	if c.Mode == "" {
		c.Mode = ModeLocal
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.QueueSize == 0 {
		c.QueueSize = 64
	}
	if c.RunTimeout == "" {
		c.RunTimeout = "15m"
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
}

func (c *Config) loadEnv(env *Env) error {
	if env.Mode != "" {
		if v := os.Getenv(env.Mode); v != "" {
			c.Mode = v
		}
	}
	if env.Workers != "" {
		if v := os.Getenv(env.Workers); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", env.Workers, err)
			}
			c.Workers = n
		}
	}
	if env.QueueSize != "" {
		if v := os.Getenv(env.QueueSize); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", env.QueueSize, err)
			}
			c.QueueSize = n
		}
	}
	if env.RunTimeout != "" {
		if v := os.Getenv(env.RunTimeout); v != "" {
			c.RunTimeout = v
		}
	}
	if env.Sink != "" {
		if v := os.Getenv(env.Sink); v != "" {
			c.Sink = v
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeLocal:
		if c.Workers < 1 {
			return fmt.Errorf("workers must be positive, got %d", c.Workers)
		}
		if c.QueueSize < 1 {
			return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
		}
		if _, err := time.ParseDuration(c.RunTimeout); err != nil {
			return fmt.Errorf("invalid run_timeout %q", c.RunTimeout)
		}
	case ModeCloudEvents:
		u, err := url.Parse(c.Sink)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("cloudevents mode requires an http(s) sink, got %q", c.Sink)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, c.Mode)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout %q", c.Timeout)
	}
	return nil
}
