package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/JaimeStill/receipts/internal/api"
	"github.com/JaimeStill/receipts/internal/config"
	"github.com/JaimeStill/receipts/internal/infrastructure"
	"github.com/JaimeStill/receipts/workflow"
)

type function struct {
	infra  *infrastructure.Infrastructure
	engine *api.Engine
}

var (
	instance *function
	once     sync.Once
	initErr  error
)

func setup() (*function, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := infra.Start(); err != nil {
		return nil, err
	}
	infra.Lifecycle.WaitForStartup()

	runtime := api.NewRuntime(cfg, infra)
	engine, err := api.NewEngine(cfg, runtime, api.NewDomain(cfg, runtime))
	if err != nil {
		return nil, err
	}

	infra.Logger.Info("function initialized", "version", cfg.Version, "env", cfg.Env())
	return &function{infra: infra, engine: engine}, nil
}

// processReceipt runs the workflow for one upload event. Returning an
// error asks the platform to redeliver, so only runs that did not reach
// a terminal state report one. A failed run is final and acknowledged.
func processReceipt(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		instance, initErr = setup()
	})
	if initErr != nil {
		return initErr
	}

	logger := instance.infra.Logger.With("event_id", e.ID())

	trigger, err := workflow.FromEvent(e)
	if err != nil {
		logger.ErrorContext(ctx, "event rejected", "error", err)
		return nil
	}

	res, err := instance.engine.Execute(ctx, trigger)
	if errors.Is(err, workflow.ErrInvalidTrigger) {
		logger.ErrorContext(ctx, "trigger rejected", "receipt_id", trigger.ReceiptID, "error", err)
		return nil
	}
	if res == nil {
		logger.WarnContext(ctx, "run not finished, requesting redelivery", "receipt_id", trigger.ReceiptID, "error", err)
		return err
	}

	if err != nil {
		logger.WarnContext(ctx, "run failed", "run_id", res.RunID, "error", res.Error)
		return nil
	}

	logger.InfoContext(ctx, "run finished", "run_id", res.RunID, "iterations", res.Iterations)
	return nil
}
