// Package dispatch hands workflow triggers to a runner: an in-process
// worker pool, or a CloudEvents sink that runs the workflow elsewhere.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/receipts/pkg/lifecycle"
	"github.com/JaimeStill/receipts/workflow"
)

var (
	ErrQueueFull   = errors.New("dispatch queue full")
	ErrClosed      = errors.New("dispatcher closed")
	ErrUndelivered = errors.New("trigger event undelivered")
	ErrUnknownMode = errors.New("unknown dispatch mode")
)

// Dispatcher accepts a trigger for asynchronous execution.
type Dispatcher interface {
	Dispatch(ctx context.Context, t workflow.Trigger) error
}

// Executor runs one trigger to completion.
type Executor func(ctx context.Context, t workflow.Trigger) (*workflow.Result, error)

// New returns the Dispatcher selected by cfg.Mode. A local dispatcher
// starts its workers with lc and drains them on shutdown.
func New(cfg *Config, exec Executor, lc *lifecycle.Coordinator, logger *slog.Logger) (Dispatcher, error) {
	switch cfg.Mode {
	case ModeLocal:
		d := NewLocal(exec, cfg.Workers, cfg.QueueSize, cfg.RunTimeoutDuration(), logger)
		d.Start(lc)
		return d, nil
	case ModeCloudEvents:
		return NewPublisher(cfg.Sink, cfg.TimeoutDuration(), logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}
}
