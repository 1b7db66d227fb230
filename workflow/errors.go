// Package workflow defines the public contract of the receipt extraction
// workflow: the trigger that starts a run, the result it reports, the
// CloudEvent type that carries triggers, and the ledger keys a run uses.
package workflow

import "errors"

// ErrInvalidTrigger indicates a trigger that cannot start a run.
var ErrInvalidTrigger = errors.New("invalid trigger")
