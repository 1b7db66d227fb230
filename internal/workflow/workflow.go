// Package workflow runs the receipt extraction workflow: an orchestrator
// routes a run between the extraction and persistence agents over a
// run-scoped ledger until the receipt is committed or the run fails.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/receipts/internal/ledger"
	"github.com/JaimeStill/receipts/internal/receipts"
	"github.com/JaimeStill/receipts/pkg/auth"
	"github.com/JaimeStill/receipts/workflow"
)

// Execute starts or resumes the run identified by t and drives it to a
// terminal status. On failure the returned Result is still populated and
// the error wraps ErrRunFailed. When ctx is cancelled mid-run the run is
// left resumable and the result is nil.
func Execute(ctx context.Context, rt *Runtime, t workflow.Trigger) (*workflow.Result, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	ctx = auth.WithIdentity(ctx, &auth.Identity{Subject: t.Owner})
	id := ledger.RunID(t.ReceiptID, t.DeliveryID)

	release, err := rt.locks.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	run, created, err := rt.Ledger.Begin(ctx, ledger.Run{
		ID:          id,
		ReceiptID:   t.ReceiptID,
		Owner:       t.Owner,
		DocumentURL: t.DocumentURL,
		DeliveryID:  t.DeliveryID,
		Status:      ledger.StatusRunning,
	})
	if errors.Is(err, ledger.ErrUnknownReceipt) {
		return nil, fmt.Errorf("%w: receipt %s does not exist", workflow.ErrInvalidTrigger, t.ReceiptID)
	}
	if err != nil {
		return nil, fmt.Errorf("begin run %s: %w", id, err)
	}

	logger := rt.Logger.With("run_id", run.ID, "receipt_id", run.ReceiptID)
	l := ledger.Bind(rt.Ledger, run.ID)

	if run.Status.Terminal() {
		logger.InfoContext(ctx, "run already finished", "status", run.Status)
		return rt.finished(ctx, run, l)
	}

	if created {
		logger.InfoContext(ctx, "run started", "owner", run.Owner)
	} else {
		logger.InfoContext(ctx, "run resumed", "iterations", run.Iterations)
	}

	start := time.Now()
	out := rt.orchestrate(ctx, run, l, logger)

	if out.status == "" {
		logger.WarnContext(ctx, "run abandoned", "error", out.cause)
		return nil, out.cause
	}

	cause := ""
	if out.cause != nil {
		cause = out.cause.Error()
	}

	// The receipt is marked before the run finishes. A crash in between
	// leaves the run running, and the redelivery that resumes it marks again.
	if out.status == ledger.StatusFailed {
		rt.markFailed(ctx, run.ReceiptID, cause, logger)
	}

	run, err = rt.Ledger.Finish(ctx, run.ID, out.status, cause)
	if err != nil {
		return nil, fmt.Errorf("finish run %s: %w", id, err)
	}

	if out.status == ledger.StatusFailed {
		logger.ErrorContext(ctx, "run failed",
			"iterations", run.Iterations,
			"duration", time.Since(start),
			"error", out.cause,
		)
		result := rt.result(run, nil)
		return result, fmt.Errorf("%w: %w", ErrRunFailed, out.cause)
	}

	logger.InfoContext(ctx, "run complete",
		"iterations", run.Iterations,
		"duration", time.Since(start),
	)
	return rt.finished(ctx, run, l)
}

// finished reports the stored outcome of a terminal run.
func (rt *Runtime) finished(ctx context.Context, run *ledger.Run, l *ledger.Ledger) (*workflow.Result, error) {
	if run.Status == ledger.StatusFailed {
		return rt.result(run, nil), fmt.Errorf("%w: %s", ErrRunFailed, run.Cause)
	}

	receipt, ok, err := ledger.Load[uuid.UUID](ctx, l, workflow.KeyReceipt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("completed run %s has no %s entry", run.ID, workflow.KeyReceipt)
	}
	return rt.result(run, &receipt), nil
}

func (rt *Runtime) result(run *ledger.Run, receipt *uuid.UUID) *workflow.Result {
	r := &workflow.Result{
		RunID:      run.ID,
		ReceiptID:  run.ReceiptID,
		Status:     string(run.Status),
		Receipt:    receipt,
		Iterations: run.Iterations,
		Error:      run.Cause,
	}
	if run.FinishedAt != nil {
		r.FinishedAt = *run.FinishedAt
	}
	return r
}

// markFailed records the failure on the receipt when configured to. The
// run outcome stands whether or not the receipt accepts the mark.
func (rt *Runtime) markFailed(ctx context.Context, receiptID uuid.UUID, cause string, logger *slog.Logger) {
	if !rt.Config.MarkFailedEnabled() {
		return
	}
	err := rt.Persistence.MarkFailed(ctx, receiptID, cause)
	switch {
	case err == nil:
	case errors.Is(err, receipts.ErrInvalidStatus):
		logger.InfoContext(ctx, "receipt already out of pending", "error", err)
	default:
		logger.WarnContext(ctx, "receipt not marked failed", "error", err)
	}
}

// IsAbandoned reports whether err from Execute left the run resumable.
func IsAbandoned(err error) bool {
	return err != nil && !errors.Is(err, ErrRunFailed) &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
