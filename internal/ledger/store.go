package ledger

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Store persists runs and their ledger entries.
type Store interface {
	// Begin records run when no run with the same ID exists and returns it
	// with created set. Otherwise it returns the stored run untouched.
	Begin(ctx context.Context, run Run) (stored *Run, created bool, err error)
	Find(ctx context.Context, id uuid.UUID) (*Run, error)
	// Advance records the iteration count of a running run.
	Advance(ctx context.Context, id uuid.UUID, iterations int) error
	// Finish moves a running run to a terminal status.
	Finish(ctx context.Context, id uuid.UUID, status Status, cause string) (*Run, error)

	Get(ctx context.Context, id uuid.UUID, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, id uuid.UUID, key string, value json.RawMessage) error
	Entries(ctx context.Context, id uuid.UUID) ([]Entry, error)

	Delete(ctx context.Context, id uuid.UUID) error
}
