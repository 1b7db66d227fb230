package workflow

import "errors"

var (
	// ErrRoutingExhausted ends a run whose orchestrator used its iteration
	// budget without reaching the completion signal.
	ErrRoutingExhausted = errors.New("routing exhausted")
	// ErrMissingFields indicates the persistence step ran before extraction
	// wrote its fields. It signals a routing defect, never bad input.
	ErrMissingFields = errors.New("extracted fields missing from ledger")
	// ErrRunFailed wraps the terminal cause of a failed run.
	ErrRunFailed = errors.New("run failed")
)
