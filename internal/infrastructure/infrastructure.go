// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, storage, the step ledger,
// and usage metering) that domain systems and the workflow require.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/receipts/internal/config"
	"github.com/JaimeStill/receipts/internal/ledger"
	"github.com/JaimeStill/receipts/internal/metering"
	"github.com/JaimeStill/receipts/pkg/database"
	"github.com/JaimeStill/receipts/pkg/lifecycle"
	"github.com/JaimeStill/receipts/pkg/logging"
	"github.com/JaimeStill/receipts/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
// It provides a single point of initialization for lifecycle coordination,
// logging, database access, file storage, run state, and usage metering.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Ledger    ledger.Store
	Metering  metering.Recorder
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := logging.New(&cfg.Logging, os.Stderr)

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(lc.Context(), &cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	runs, err := ledger.New(lc.Context(), &cfg.Ledger, db.Connection(), lc, logger)
	if err != nil {
		return nil, fmt.Errorf("ledger init failed: %w", err)
	}

	recorder, err := metering.New(&cfg.Metering, db.Connection(), logger)
	if err != nil {
		return nil, fmt.Errorf("metering init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Ledger:    runs,
		Metering:  recorder,
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
// Database and storage hooks are registered for startup and shutdown coordination.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	return nil
}
