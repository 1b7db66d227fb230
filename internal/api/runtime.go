package api

import (
	"database/sql"
	"log/slog"

	"github.com/JaimeStill/receipts/internal/config"
	"github.com/JaimeStill/receipts/internal/infrastructure"
	"github.com/JaimeStill/receipts/pkg/pagination"
)

// Runtime is the shared infrastructure as the API module sees it. Logger
// shadows the infrastructure logger with one tagged module=api; every
// other system is the shared instance.
type Runtime struct {
	*infrastructure.Infrastructure
	Logger     *slog.Logger
	Pagination pagination.Config
}

func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: infra,
		Logger:         infra.Logger.With("module", "api"),
		Pagination:     cfg.API.Pagination,
	}
}

// DB returns the service database connection pool.
func (r *Runtime) DB() *sql.DB {
	return r.Database.Connection()
}
