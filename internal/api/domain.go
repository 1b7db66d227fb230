package api

import (
	"github.com/JaimeStill/receipts/internal/config"
	"github.com/JaimeStill/receipts/internal/ledger"
	"github.com/JaimeStill/receipts/internal/prompts"
	"github.com/JaimeStill/receipts/internal/receipts"
	"github.com/JaimeStill/receipts/internal/runs"
)

// Domain holds all domain systems that comprise the API.
// Runs is nil unless the step ledger is stored in the service database.
type Domain struct {
	Receipts receipts.System
	Prompts  prompts.System
	Runs     runs.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(cfg *config.Config, runtime *Runtime) *Domain {
	receiptsSystem := receipts.New(
		runtime.DB(),
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
	)

	promptsSystem := prompts.New(
		runtime.DB(),
		runtime.Logger,
		runtime.Pagination,
	)

	domain := &Domain{
		Receipts: receiptsSystem,
		Prompts:  promptsSystem,
	}

	if cfg.Ledger.Provider == ledger.ProviderSQL {
		domain.Runs = runs.New(
			runtime.DB(),
			runtime.Ledger,
			runtime.Logger,
			runtime.Pagination,
		)
	}

	return domain
}
