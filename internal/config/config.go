package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/receipts/internal/dispatch"
	"github.com/JaimeStill/receipts/internal/inference"
	"github.com/JaimeStill/receipts/internal/ledger"
	"github.com/JaimeStill/receipts/internal/metering"
	"github.com/JaimeStill/receipts/internal/workflow"
	"github.com/JaimeStill/receipts/pkg/auth"
	"github.com/JaimeStill/receipts/pkg/database"
	"github.com/JaimeStill/receipts/pkg/logging"
	"github.com/JaimeStill/receipts/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvReceiptsEnv             = "RECEIPTS_ENV"
	EnvReceiptsConfigDir       = "RECEIPTS_CONFIG_DIR"
	EnvReceiptsShutdownTimeout = "RECEIPTS_SHUTDOWN_TIMEOUT"
	EnvReceiptsVersion         = "RECEIPTS_VERSION"
)

var databaseEnv = &database.Env{
	URL:             "RECEIPTS_DB_URL",
	Host:            "RECEIPTS_DB_HOST",
	Port:            "RECEIPTS_DB_PORT",
	Name:            "RECEIPTS_DB_NAME",
	User:            "RECEIPTS_DB_USER",
	Password:        "RECEIPTS_DB_PASSWORD",
	SSLMode:         "RECEIPTS_DB_SSL_MODE",
	ApplicationName: "RECEIPTS_DB_APPLICATION_NAME",
	MaxOpenConns:    "RECEIPTS_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "RECEIPTS_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "RECEIPTS_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "RECEIPTS_DB_CONN_TIMEOUT",
	ConnectAttempts: "RECEIPTS_DB_CONNECT_ATTEMPTS",
}

var storageEnv = &storage.Env{
	Provider:         "RECEIPTS_STORAGE_PROVIDER",
	Container:        "RECEIPTS_STORAGE_CONTAINER",
	ConnectionString: "RECEIPTS_STORAGE_CONNECTION_STRING",
	Endpoint:         "RECEIPTS_STORAGE_ENDPOINT",
	AccessKey:        "RECEIPTS_STORAGE_ACCESS_KEY",
	SecretKey:        "RECEIPTS_STORAGE_SECRET_KEY",
	Region:           "RECEIPTS_STORAGE_REGION",
	UseSSL:           "RECEIPTS_STORAGE_USE_SSL",
	URLExpiry:        "RECEIPTS_STORAGE_URL_EXPIRY",
}

var inferenceEnv = &inference.Env{
	Provider:        "RECEIPTS_INFERENCE_PROVIDER",
	Model:           "RECEIPTS_INFERENCE_MODEL",
	APIKey:          "RECEIPTS_INFERENCE_API_KEY",
	BaseURL:         "RECEIPTS_INFERENCE_BASE_URL",
	Project:         "RECEIPTS_INFERENCE_PROJECT",
	Location:        "RECEIPTS_INFERENCE_LOCATION",
	Timeout:         "RECEIPTS_INFERENCE_TIMEOUT",
	Temperature:     "RECEIPTS_INFERENCE_TEMPERATURE",
	MaxOutputTokens: "RECEIPTS_INFERENCE_MAX_OUTPUT_TOKENS",
	MaxDocumentSize: "RECEIPTS_INFERENCE_MAX_DOCUMENT_SIZE",
}

var workflowEnv = &workflow.Env{
	MaxIterations: "RECEIPTS_WORKFLOW_MAX_ITERATIONS",
	MaxAttempts:   "RECEIPTS_WORKFLOW_MAX_ATTEMPTS",
	RetryBaseWait: "RECEIPTS_WORKFLOW_RETRY_BASE_WAIT",
	RetryMaxWait:  "RECEIPTS_WORKFLOW_RETRY_MAX_WAIT",
	StepTimeout:   "RECEIPTS_WORKFLOW_STEP_TIMEOUT",
	MarkFailed:    "RECEIPTS_WORKFLOW_MARK_FAILED",
}

var ledgerEnv = &ledger.Env{
	Provider:   "RECEIPTS_LEDGER_PROVIDER",
	Project:    "RECEIPTS_LEDGER_PROJECT",
	Database:   "RECEIPTS_LEDGER_DATABASE",
	Collection: "RECEIPTS_LEDGER_COLLECTION",
}

var meteringEnv = &metering.Env{
	Provider: "RECEIPTS_METERING_PROVIDER",
	Timeout:  "RECEIPTS_METERING_TIMEOUT",
}

var authEnv = &auth.Env{
	Mode:      "RECEIPTS_AUTH_MODE",
	Anonymous: "RECEIPTS_AUTH_ANONYMOUS",
	Secret:    "RECEIPTS_AUTH_SECRET",
	Issuer:    "RECEIPTS_AUTH_ISSUER",
	ClientID:  "RECEIPTS_AUTH_CLIENT_ID",
	JWKSURL:   "RECEIPTS_AUTH_JWKS_URL",
}

var dispatchEnv = &dispatch.Env{
	Mode:       "RECEIPTS_DISPATCH_MODE",
	Workers:    "RECEIPTS_DISPATCH_WORKERS",
	QueueSize:  "RECEIPTS_DISPATCH_QUEUE_SIZE",
	RunTimeout: "RECEIPTS_DISPATCH_RUN_TIMEOUT",
	Sink:       "RECEIPTS_DISPATCH_SINK",
	Timeout:    "RECEIPTS_DISPATCH_TIMEOUT",
}

var loggingEnv = &logging.Env{
	Level:  "RECEIPTS_LOG_LEVEL",
	Format: "RECEIPTS_LOG_FORMAT",
}

// Config is the root configuration for the receipts service.
type Config struct {
	Server          ServerConfig     `toml:"server"`
	Database        database.Config  `toml:"database"`
	Storage         storage.Config   `toml:"storage"`
	API             APIConfig        `toml:"api"`
	Inference       inference.Config `toml:"inference"`
	Workflow        workflow.Config  `toml:"workflow"`
	Ledger          ledger.Config    `toml:"ledger"`
	Metering        metering.Config  `toml:"metering"`
	Auth            auth.Config      `toml:"auth"`
	Dispatch        dispatch.Config  `toml:"dispatch"`
	Logging         logging.Config   `toml:"logging"`
	ShutdownTimeout string           `toml:"shutdown_timeout"`
	Version         string           `toml:"version"`
}

// Env returns the RECEIPTS_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvReceiptsEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration. RECEIPTS_CONFIG_DIR relocates both files.
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}
	return cfg, nil
}

// LoadDatabase resolves only the [database] section, for tools that
// need a connection but none of the other subsystems.
func LoadDatabase() (*database.Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Database.Finalize(databaseEnv); err != nil {
		return nil, fmt.Errorf("finalize config: database: %w", err)
	}
	return &cfg.Database, nil
}

func read() (*Config, error) {
	cfg := &Config{}
	dir := os.Getenv(EnvReceiptsConfigDir)

	base := filepath.Join(dir, BaseConfigFile)
	if _, err := os.Stat(base); err == nil {
		if cfg, err = load(base); err != nil {
			return nil, err
		}
	}

	if path := overlayPath(dir); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}
	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
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
	c.Inference.Merge(&overlay.Inference)
	c.Workflow.Merge(&overlay.Workflow)
	c.Ledger.Merge(&overlay.Ledger)
	c.Metering.Merge(&overlay.Metering)
	c.Auth.Merge(&overlay.Auth)
	c.Dispatch.Merge(&overlay.Dispatch)
	c.Logging.Merge(&overlay.Logging)
}

// Finalize applies defaults, environment variable overrides, and
// validation to the root config and every section.
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"database", func() error { return c.Database.Finalize(databaseEnv) }},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"api", c.API.Finalize},
		{"inference", func() error { return c.Inference.Finalize(inferenceEnv) }},
		{"workflow", func() error { return c.Workflow.Finalize(workflowEnv) }},
		{"ledger", func() error { return c.Ledger.Finalize(ledgerEnv) }},
		{"metering", func() error { return c.Metering.Finalize(meteringEnv) }},
		{"auth", func() error { return c.Auth.Finalize(authEnv) }},
		{"dispatch", func() error { return c.Dispatch.Finalize(dispatchEnv) }},
		{"logging", func() error { return c.Logging.Finalize(loggingEnv) }},
	}

	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvReceiptsShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvReceiptsVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
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

func overlayPath(dir string) string {
	if env := os.Getenv(EnvReceiptsEnv); env != "" {
		path := filepath.Join(dir, fmt.Sprintf(OverlayConfigPattern, env))
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
