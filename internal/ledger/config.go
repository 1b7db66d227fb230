package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"

	"github.com/JaimeStill/receipts/pkg/lifecycle"
)

// Providers accepted by Config.Provider.
const (
	ProviderMemory    = "memory"
	ProviderSQL       = "sql"
	ProviderFirestore = "firestore"
)

// Config selects the ledger backend. The sql provider shares the
// service database; firestore uses Project, Database, and Collection.
type Config struct {
	Provider   string `toml:"provider"`
	Project    string `toml:"project"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider   string
	Project    string
	Database   string
	Collection string
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
	if overlay.Project != "" {
		c.Project = overlay.Project
	}
	if overlay.Database != "" {
		c.Database = overlay.Database
	}
	if overlay.Collection != "" {
		c.Collection = overlay.Collection
	}
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderSQL
	}
	if c.Database == "" {
		c.Database = firestore.DefaultDatabaseID
	}
	if c.Collection == "" {
		c.Collection = "runs"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Provider != "" {
		if v := os.Getenv(env.Provider); v != "" {
			c.Provider = v
		}
	}
	if env.Project != "" {
		if v := os.Getenv(env.Project); v != "" {
			c.Project = v
		}
	}
	if env.Database != "" {
		if v := os.Getenv(env.Database); v != "" {
			c.Database = v
		}
	}
	if env.Collection != "" {
		if v := os.Getenv(env.Collection); v != "" {
			c.Collection = v
		}
	}
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderMemory, ProviderSQL:
	case ProviderFirestore:
		if c.Project == "" {
			return fmt.Errorf("project required for firestore provider")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
	}
	return nil
}

// New opens the configured Store. A firestore client is closed by a
// shutdown hook registered on lc.
func New(ctx context.Context, cfg *Config, db *sql.DB, lc *lifecycle.Coordinator, logger *slog.Logger) (Store, error) {
	switch cfg.Provider {
	case ProviderMemory:
		logger.Warn("ledger is process-local; runs will not resume after restart")
		return NewMemory(), nil
	case ProviderSQL:
		if db == nil {
			return nil, fmt.Errorf("sql ledger requires a database connection")
		}
		return NewSQL(db), nil
	case ProviderFirestore:
		client, err := firestore.NewClientWithDatabase(ctx, cfg.Project, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("create firestore client: %w", err)
		}
		if lc != nil {
			lc.OnShutdown(func() {
				<-lc.Context().Done()
				if err := client.Close(); err != nil {
					logger.Error("firestore close failed", "error", err)
				}
			})
		}
		return NewFirestore(client, cfg.Collection), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
