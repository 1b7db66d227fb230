package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/receipts/internal/inference"
	"github.com/JaimeStill/receipts/internal/ledger"
	"github.com/JaimeStill/receipts/internal/receipts"
	"github.com/JaimeStill/receipts/pkg/retry"
	"github.com/JaimeStill/receipts/workflow"
)

type phase int

const (
	phaseSelect phase = iota
	phaseActive
	phaseEvaluate
)

// outcome is how the routing loop ended. A nil-status outcome means the
// run was abandoned between or during steps and remains resumable.
type outcome struct {
	status ledger.Status
	cause  error
}

// orchestrate drives run until the completion signal appears, a step
// fails permanently, or the iteration budget is spent. The iteration
// count is persisted before each dispatch so a resumed run keeps its budget.
func (rt *Runtime) orchestrate(ctx context.Context, run *ledger.Run, l *ledger.Ledger, logger *slog.Logger) outcome {
	iterations := run.Iterations
	current := phaseSelect
	var next Agent

	for {
		if err := ctx.Err(); err != nil {
			return outcome{cause: err}
		}

		switch current {
		case phaseSelect:
			if iterations >= rt.Config.MaxIterations {
				return outcome{
					status: ledger.StatusFailed,
					cause:  fmt.Errorf("%w: %d iterations", ErrRoutingExhausted, iterations),
				}
			}

			a, err := rt.selectAgent(ctx, l)
			if err != nil {
				return rt.interrupted(ctx, err)
			}

			iterations++
			if err := rt.Ledger.Advance(ctx, run.ID, iterations); err != nil {
				return rt.interrupted(ctx, err)
			}

			next = a
			current = phaseActive

		case phaseActive:
			logger.DebugContext(ctx, "agent dispatched", "agent", next, "iteration", iterations)

			if err := rt.step(ctx, next, run, l, logger); err != nil {
				logger.WarnContext(ctx, "agent failed", "agent", next, "iteration", iterations, "error", err)
				return rt.interrupted(ctx, err)
			}

			logger.InfoContext(ctx, "agent complete", "agent", next, "iteration", iterations)
			current = phaseEvaluate

		case phaseEvaluate:
			done, err := l.Has(ctx, workflow.KeySavedToDatabase)
			if err != nil {
				return rt.interrupted(ctx, err)
			}
			if done {
				return outcome{status: ledger.StatusCompleted}
			}
			current = phaseSelect
		}
	}
}

// step dispatches one agent, retrying transient failures with backoff.
// Each attempt gets its own step timeout.
func (rt *Runtime) step(ctx context.Context, a Agent, run *ledger.Run, l *ledger.Ledger, logger *slog.Logger) error {
	policy := retry.Policy{
		MaxAttempts: rt.Config.MaxAttempts,
		BaseWait:    rt.Config.RetryBaseWaitDuration(),
		MaxWait:     rt.Config.RetryMaxWaitDuration(),
		Retryable:   transient,
	}

	return retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			logger.InfoContext(ctx, "agent retry", "agent", a, "attempt", attempt)
		}

		if timeout := rt.Config.StepTimeoutDuration(); timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		return rt.dispatch(ctx, a, run, l)
	})
}

// interrupted decides whether err ends the run. Cancellation of the
// caller's context abandons the run without a terminal status.
func (rt *Runtime) interrupted(ctx context.Context, err error) outcome {
	if ctx.Err() != nil {
		return outcome{cause: errors.Join(ctx.Err(), err)}
	}
	return outcome{status: ledger.StatusFailed, cause: err}
}

func transient(err error) bool {
	return inference.IsTransient(err) || errors.Is(err, receipts.ErrStorageFailure)
}

// selectAgent routes on ledger contents alone: persistence once fields
// exist, extraction otherwise.
func (rt *Runtime) selectAgent(ctx context.Context, l *ledger.Ledger) (Agent, error) {
	cached, ok, err := ledger.Load[extraction](ctx, l, workflow.KeyExtractedFields)
	if err != nil {
		return "", err
	}
	if ok && cached.Fields != nil {
		return AgentPersistence, nil
	}
	return AgentExtraction, nil
}

func (rt *Runtime) dispatch(ctx context.Context, a Agent, run *ledger.Run, l *ledger.Ledger) error {
	switch a {
	case AgentExtraction:
		return rt.extract(ctx, run, l)
	case AgentPersistence:
		return rt.persist(ctx, run, l)
	default:
		return fmt.Errorf("unknown agent %q", a)
	}
}
