// Package database provides PostgreSQL connection management with lifecycle coordination.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/JaimeStill/receipts/pkg/lifecycle"
	"github.com/JaimeStill/receipts/pkg/retry"
)

// System manages database connections and lifecycle coordination.
type System interface {
	// Connection returns the underlying database connection pool.
	Connection() *sql.DB
	// Start registers the startup ping, the readiness check, and the
	// pool close with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error
	// Ready reports whether the startup ping succeeded.
	Ready() bool
}

type database struct {
	conn        *sql.DB
	logger      *slog.Logger
	connTimeout time.Duration
	attempts    int
	ready       atomic.Bool
}

// New parses the connection string and configures the pool. No
// connection is made until Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	pc, err := pgx.ParseConfig(cfg.Dsn())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	db := stdlib.OpenDB(*pc)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &database{
		conn:        db,
		logger:      logger.With("system", "database", "host", pc.Host, "database", pc.Database),
		connTimeout: cfg.ConnTimeoutDuration(),
		attempts:    max(cfg.ConnectAttempts, 1),
	}, nil
}

func (d *database) Connection() *sql.DB {
	return d.conn
}

func (d *database) Ready() bool {
	return d.ready.Load()
}

func (d *database) Start(lc *lifecycle.Coordinator) error {
	d.logger.Info("starting database connection")
	lc.Check("database", d)

	lc.OnStartup(func() {
		if err := d.ping(lc.Context()); err != nil {
			d.logger.Error("database ping failed", "attempts", d.attempts, "error", err)
			return
		}
		d.ready.Store(true)
		d.logger.Info("database connection established")
	})

	// The pool outlives the shutdown hooks so draining work can finish writes.
	lc.AfterShutdown(func() {
		d.ready.Store(false)
		if err := d.conn.Close(); err != nil {
			d.logger.Error("database close failed", "error", err)
			return
		}
		d.logger.Info("database connection closed")
	})

	return nil
}

// ping retries while the database comes up, as it often lags the service
// on container platforms.
func (d *database) ping(ctx context.Context) error {
	policy := retry.Policy{
		MaxAttempts: d.attempts,
		BaseWait:    500 * time.Millisecond,
		MaxWait:     5 * time.Second,
	}
	return retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		pingCtx, cancel := context.WithTimeout(ctx, d.connTimeout)
		defer cancel()

		err := d.conn.PingContext(pingCtx)
		if err != nil && attempt < d.attempts {
			d.logger.Warn("database not reachable, retrying", "attempt", attempt, "error", err)
		}
		return err
	})
}
