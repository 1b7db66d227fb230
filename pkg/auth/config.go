package auth

import (
	"context"
	"fmt"
	"os"
)

// Modes accepted by Config.Mode.
const (
	ModeNone = "none"
	ModeHMAC = "hmac"
	ModeOIDC = "oidc"
)

// Config selects how bearer tokens are verified.
type Config struct {
	Mode      string `toml:"mode"`
	Anonymous string `toml:"anonymous"`
	Secret    string `toml:"secret"`
	Issuer    string `toml:"issuer"`
	ClientID  string `toml:"client_id"`
	JWKSURL   string `toml:"jwks_url"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Mode      string
	Anonymous string
	Secret    string
	Issuer    string
	ClientID  string
	JWKSURL   string
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
	if overlay.Mode != "" {
		c.Mode = overlay.Mode
	}
	if overlay.Anonymous != "" {
		c.Anonymous = overlay.Anonymous
	}
	if overlay.Secret != "" {
		c.Secret = overlay.Secret
	}
	if overlay.Issuer != "" {
		c.Issuer = overlay.Issuer
	}
	if overlay.ClientID != "" {
		c.ClientID = overlay.ClientID
	}
	if overlay.JWKSURL != "" {
		c.JWKSURL = overlay.JWKSURL
	}
}

// NewVerifier builds the verifier for the configured mode. ModeNone
// returns a nil verifier, which Middleware treats as anonymous access.
func (c *Config) NewVerifier(ctx context.Context) (Verifier, error) {
	switch c.Mode {
	case ModeHMAC:
		return NewHMACVerifier(c.Secret, c.Issuer), nil
	case ModeOIDC:
		return NewOIDCVerifier(ctx, c.Issuer, c.ClientID, c.JWKSURL)
	default:
		return nil, nil
	}
}

func (c *Config) loadDefaults() {
	if c.Mode == "" {
		c.Mode = ModeNone
	}
	if c.Anonymous == "" {
		c.Anonymous = "anonymous"
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

	set(env.Mode, &c.Mode)
	set(env.Anonymous, &c.Anonymous)
	set(env.Secret, &c.Secret)
	set(env.Issuer, &c.Issuer)
	set(env.ClientID, &c.ClientID)
	set(env.JWKSURL, &c.JWKSURL)
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeNone:
	case ModeHMAC:
		if len(c.Secret) < 32 {
			return fmt.Errorf("secret must be at least 32 bytes for hmac mode")
		}
	case ModeOIDC:
		if c.Issuer == "" {
			return fmt.Errorf("issuer required for oidc mode")
		}
		if c.ClientID == "" {
			return fmt.Errorf("client_id required for oidc mode")
		}
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	return nil
}
