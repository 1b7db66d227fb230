// Package ledger records workflow runs and the run-scoped key/value
// entries their steps use to memoize results and signal completion.
//
// Entries are visible to every later read in the same run and never to
// another run. Keys are not removed while a run is live; Delete removes a
// run together with all of its entries.
package ledger

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("run not found")
	ErrInvalidTransition = errors.New("invalid run status transition")
	ErrUnknownProvider   = errors.New("unknown ledger provider")
	ErrUnknownReceipt    = errors.New("run references an unknown receipt")
)

// Status is the lifecycle state of a run. running is the only
// non-terminal state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var transitions = map[Status][]Status{
	StatusRunning: {StatusCompleted, StatusFailed},
}

// CanTransitionTo reports whether s may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Run is one execution of the receipt workflow.
type Run struct {
	ID          uuid.UUID  `json:"id"`
	ReceiptID   uuid.UUID  `json:"receipt_id"`
	Owner       string     `json:"owner"`
	DocumentURL string     `json:"document_url"`
	DeliveryID  string     `json:"delivery_id,omitempty"`
	Status      Status     `json:"status"`
	Iterations  int        `json:"iterations"`
	Cause       string     `json:"cause,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Entry is a single ledger key and its JSON value.
type Entry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

var runNamespace = uuid.MustParse("6f1c1b52-8a47-4f0e-9d2b-3c7a0e5d9b14")

// RunID derives a deterministic run identifier so that redelivery of the
// same trigger resumes the same run. Without a delivery id the receipt
// itself identifies the run.
func RunID(receiptID uuid.UUID, deliveryID string) uuid.UUID {
	name := receiptID.String()
	if deliveryID != "" {
		name += "/" + deliveryID
	}
	return uuid.NewSHA1(runNamespace, []byte(name))
}
