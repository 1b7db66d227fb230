package workflow

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config bounds the orchestrator routing loop and step retries.
type Config struct {
	MaxIterations int    `toml:"max_iterations"`
	MaxAttempts   int    `toml:"max_attempts"`
	RetryBaseWait string `toml:"retry_base_wait"`
	RetryMaxWait  string `toml:"retry_max_wait"`
	StepTimeout   string `toml:"step_timeout"`
	MarkFailed    *bool  `toml:"mark_failed"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	MaxIterations string
	MaxAttempts   string
	RetryBaseWait string
	RetryMaxWait  string
	StepTimeout   string
	MarkFailed    string
}

// RetryBaseWaitDuration returns RetryBaseWait as a time.Duration.
func (c *Config) RetryBaseWaitDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryBaseWait)
	return d
}

// RetryMaxWaitDuration returns RetryMaxWait as a time.Duration.
func (c *Config) RetryMaxWaitDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryMaxWait)
	return d
}

// StepTimeoutDuration returns StepTimeout as a time.Duration.
func (c *Config) StepTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.StepTimeout)
	return d
}

// MarkFailedEnabled reports whether a failed run marks its receipt failed.
func (c *Config) MarkFailedEnabled() bool {
	return c.MarkFailed == nil || *c.MarkFailed
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
	if overlay.MaxIterations != 0 {
		c.MaxIterations = overlay.MaxIterations
	}
	if overlay.MaxAttempts != 0 {
		c.MaxAttempts = overlay.MaxAttempts
	}
	if overlay.RetryBaseWait != "" {
		c.RetryBaseWait = overlay.RetryBaseWait
	}
	if overlay.RetryMaxWait != "" {
		c.RetryMaxWait = overlay.RetryMaxWait
	}
	if overlay.StepTimeout != "" {
		c.StepTimeout = overlay.StepTimeout
	}
	if overlay.MarkFailed != nil {
		v := *overlay.MarkFailed
		c.MarkFailed = &v
	}
}

func (c *Config) loadDefaults() {
	if c.MaxIterations == 0 {
		c.MaxIterations = 6
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBaseWait == "" {
		c.RetryBaseWait = "1s"
	}
	if c.RetryMaxWait == "" {
		c.RetryMaxWait = "30s"
	}
	if c.StepTimeout == "" {
		c.StepTimeout = "2m"
	}
	if c.MarkFailed == nil {
		v := true
		c.MarkFailed = &v
	}
}

func (c *Config) loadEnv(env *Env) error {
	if env.MaxIterations != "" {
		if v := os.Getenv(env.MaxIterations); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", env.MaxIterations, err)
			}
			c.MaxIterations = n
		}
	}
	if env.MaxAttempts != "" {
		if v := os.Getenv(env.MaxAttempts); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", env.MaxAttempts, err)
			}
			c.MaxAttempts = n
		}
	}
	if env.RetryBaseWait != "" {
		if v := os.Getenv(env.RetryBaseWait); v != "" {
			c.RetryBaseWait = v
		}
	}
	if env.RetryMaxWait != "" {
		if v := os.Getenv(env.RetryMaxWait); v != "" {
			c.RetryMaxWait = v
		}
	}
	if env.StepTimeout != "" {
		if v := os.Getenv(env.StepTimeout); v != "" {
			c.StepTimeout = v
		}
	}
	if env.MarkFailed != "" {
		if v := os.Getenv(env.MarkFailed); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", env.MarkFailed, err)
			}
			c.MarkFailed = &b
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.MaxIterations < 2 {
		return fmt.Errorf("max_iterations must be at least 2, got %d", c.MaxIterations)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}
	for name, v := range map[string]string{
		"retry_base_wait": c.RetryBaseWait,
		"retry_max_wait":  c.RetryMaxWait,
		"step_timeout":    c.StepTimeout,
	} {
		if d, err := time.ParseDuration(v); err != nil || d < 0 {
			return fmt.Errorf("invalid %s %q", name, v)
		}
	}
	return nil
}
