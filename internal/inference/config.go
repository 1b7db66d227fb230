package inference

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/receipts/pkg/formatting"
)

// Providers accepted by Config.Provider.
const (
	ProviderGoogle = "google"
	ProviderOpenAI = "openai"
)

// Config selects and tunes the document-understanding provider.
// Project and Location switch the google provider to the Vertex AI backend.
// MaxDocumentSize bounds the PDF the openai provider downloads for inline upload.
type Config struct {
	Provider        string  `toml:"provider"`
	Model           string  `toml:"model"`
	APIKey          string  `toml:"api_key"`
	BaseURL         string  `toml:"base_url"`
	Project         string  `toml:"project"`
	Location        string  `toml:"location"`
	Timeout         string  `toml:"timeout"`
	Temperature     float64 `toml:"temperature"`
	MaxOutputTokens int     `toml:"max_output_tokens"`
	MaxDocumentSize string  `toml:"max_document_size"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider        string
	Model           string
	APIKey          string
	BaseURL         string
	Project         string
	Location        string
	Timeout         string
	Temperature     string
	MaxOutputTokens string
	MaxDocumentSize string
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// MaxDocumentBytes returns MaxDocumentSize in bytes.
func (c *Config) MaxDocumentBytes() int64 {
	n, _ := formatting.ParseBytes(c.MaxDocumentSize)
	return n
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	if c.Model == "" {
		c.Model = defaultModel(c.Provider)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Project != "" {
		c.Project = overlay.Project
	}
	if overlay.Location != "" {
		c.Location = overlay.Location
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.Temperature != 0 {
		c.Temperature = overlay.Temperature
	}
	if overlay.MaxOutputTokens != 0 {
		c.MaxOutputTokens = overlay.MaxOutputTokens
	}
	if overlay.MaxDocumentSize != "" {
		c.MaxDocumentSize = overlay.MaxDocumentSize
	}
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderGoogle
	}
	if c.Timeout == "" {
		c.Timeout = "90s"
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = 8192
	}
	if c.MaxDocumentSize == "" {
		c.MaxDocumentSize = "32MB"
	}
}

func defaultModel(provider string) string {
	if provider == ProviderOpenAI {
		return "gpt-4.1-mini"
	}
	return "gemini-2.5-flash"
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
	set(env.Model, &c.Model)
	set(env.APIKey, &c.APIKey)
	set(env.BaseURL, &c.BaseURL)
	set(env.Project, &c.Project)
	set(env.Location, &c.Location)
	set(env.Timeout, &c.Timeout)
	set(env.MaxDocumentSize, &c.MaxDocumentSize)

	if env.Temperature != "" {
		if v := os.Getenv(env.Temperature); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.Temperature = f
			}
		}
	}
	if env.MaxOutputTokens != "" {
		if v := os.Getenv(env.MaxOutputTokens); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxOutputTokens = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.Model == "" {
		return fmt.Errorf("model required")
	}
	if d, err := time.ParseDuration(c.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid timeout %q", c.Timeout)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxOutputTokens <= 0 {
		return fmt.Errorf("max_output_tokens must be positive")
	}
	if n, err := formatting.ParseBytes(c.MaxDocumentSize); err != nil || n <= 0 {
		return fmt.Errorf("invalid max_document_size %q", c.MaxDocumentSize)
	}

	switch c.Provider {
	case ProviderGoogle:
		if c.APIKey == "" && c.Project == "" {
			return fmt.Errorf("api_key or project required for google provider")
		}
		if c.Project != "" && c.Location == "" {
			return fmt.Errorf("location required when project is set")
		}
	case ProviderOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("api_key required for openai provider")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
	}
	return nil
}
