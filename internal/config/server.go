package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

const (
	EnvServerHost              = "RECEIPTS_SERVER_HOST"
	EnvServerPort              = "RECEIPTS_SERVER_PORT"
	EnvServerReadTimeout       = "RECEIPTS_SERVER_READ_TIMEOUT"
	EnvServerReadHeaderTimeout = "RECEIPTS_SERVER_READ_HEADER_TIMEOUT"
	EnvServerWriteTimeout      = "RECEIPTS_SERVER_WRITE_TIMEOUT"
	EnvServerIdleTimeout       = "RECEIPTS_SERVER_IDLE_TIMEOUT"
	EnvServerShutdownTimeout   = "RECEIPTS_SERVER_SHUTDOWN_TIMEOUT"

	// EnvPlatformPort is the port serverless container platforms assign.
	// RECEIPTS_SERVER_PORT takes precedence when both are set.
	EnvPlatformPort = "PORT"
)

// ServerConfig holds HTTP server parameters. WriteTimeout covers the
// multipart upload path, so it is longer than the read timeouts.
type ServerConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	ReadTimeout       string `toml:"read_timeout"`
	ReadHeaderTimeout string `toml:"read_header_timeout"`
	WriteTimeout      string `toml:"write_timeout"`
	IdleTimeout       string `toml:"idle_timeout"`
	ShutdownTimeout   string `toml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *ServerConfig) ReadTimeoutDuration() time.Duration {
	return parseDuration(c.ReadTimeout)
}

func (c *ServerConfig) ReadHeaderTimeoutDuration() time.Duration {
	return parseDuration(c.ReadHeaderTimeout)
}

func (c *ServerConfig) WriteTimeoutDuration() time.Duration {
	return parseDuration(c.WriteTimeout)
}

func (c *ServerConfig) IdleTimeoutDuration() time.Duration {
	return parseDuration(c.IdleTimeout)
}

// ShutdownTimeoutDuration bounds how long in-flight requests may drain.
func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return parseDuration(c.ShutdownTimeout)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	for _, f := range c.durations(overlay) {
		if *f.src != "" {
			*f.dst = *f.src
		}
	}
}

type durationField struct {
	name string
	dst  *string
	src  *string
}

// durations pairs each timeout on c with the same field on other.
func (c *ServerConfig) durations(other *ServerConfig) []durationField {
	return []durationField{
		{"read_timeout", &c.ReadTimeout, &other.ReadTimeout},
		{"read_header_timeout", &c.ReadHeaderTimeout, &other.ReadHeaderTimeout},
		{"write_timeout", &c.WriteTimeout, &other.WriteTimeout},
		{"idle_timeout", &c.IdleTimeout, &other.IdleTimeout},
		{"shutdown_timeout", &c.ShutdownTimeout, &other.ShutdownTimeout},
	}
}

func (c *ServerConfig) loadDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	defaults := &ServerConfig{
		ReadTimeout:       "1m",
		ReadHeaderTimeout: "10s",
		WriteTimeout:      "15m",
		IdleTimeout:       "2m",
		ShutdownTimeout:   "30s",
	}
	for _, f := range c.durations(defaults) {
		if *f.dst == "" {
			*f.dst = *f.src
		}
	}
}

func (c *ServerConfig) loadEnv() error {
	if v := os.Getenv(EnvServerHost); v != "" {
		c.Host = v
	}

	for _, name := range []string{EnvPlatformPort, EnvServerPort} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", name, v)
		}
		c.Port = port
	}

	c.Merge(&ServerConfig{
		ReadTimeout:       os.Getenv(EnvServerReadTimeout),
		ReadHeaderTimeout: os.Getenv(EnvServerReadHeaderTimeout),
		WriteTimeout:      os.Getenv(EnvServerWriteTimeout),
		IdleTimeout:       os.Getenv(EnvServerIdleTimeout),
		ShutdownTimeout:   os.Getenv(EnvServerShutdownTimeout),
	})
	return nil
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	for _, f := range c.durations(c) {
		if d, err := time.ParseDuration(*f.dst); err != nil || d <= 0 {
			return fmt.Errorf("invalid %s: %q", f.name, *f.dst)
		}
	}
	return nil
}

func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
