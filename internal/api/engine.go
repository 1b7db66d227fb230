package api

import (
	"context"
	"fmt"

	"github.com/JaimeStill/receipts/internal/config"
	"github.com/JaimeStill/receipts/internal/dispatch"
	"github.com/JaimeStill/receipts/internal/inference"
	"github.com/JaimeStill/receipts/internal/persistence"
	"github.com/JaimeStill/receipts/internal/workflow"
	contract "github.com/JaimeStill/receipts/workflow"
)

// Engine is the workflow runtime wired to the domain systems.
type Engine struct {
	Workflow    *workflow.Runtime
	Persistence persistence.Gateway
}

// Execute runs t to completion on the engine.
func (e *Engine) Execute(ctx context.Context, t contract.Trigger) (*contract.Result, error) {
	return workflow.Execute(ctx, e.Workflow, t)
}

// NewEngine builds the inference and persistence gateways over the domain
// systems and binds them to the step ledger.
func NewEngine(cfg *config.Config, runtime *Runtime, domain *Domain) (*Engine, error) {
	gw, err := inference.New(
		runtime.Lifecycle.Context(),
		&cfg.Inference,
		domain.Prompts,
		runtime.Logger,
	)
	if err != nil {
		return nil, fmt.Errorf("inference init failed: %w", err)
	}

	pg := persistence.New(
		domain.Receipts,
		runtime.Metering,
		cfg.Metering.TimeoutDuration(),
		runtime.Logger,
	)

	return &Engine{
		Workflow: workflow.NewRuntime(
			cfg.Workflow,
			gw,
			pg,
			runtime.Ledger,
			runtime.Logger,
		),
		Persistence: pg,
	}, nil
}

// NewDispatcher selects the trigger runner. Local workers execute on the
// engine; usage events still in flight are flushed after the workers stop.
func NewDispatcher(cfg *config.Config, runtime *Runtime, engine *Engine) (dispatch.Dispatcher, error) {
	d, err := dispatch.New(&cfg.Dispatch, engine.Execute, runtime.Lifecycle, runtime.Logger)
	if err != nil {
		return nil, fmt.Errorf("dispatch init failed: %w", err)
	}

	runtime.Lifecycle.AfterShutdown(engine.Persistence.Wait)
	return d, nil
}
