package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Ledger is a Store bound to a single run.
type Ledger struct {
	store Store
	run   uuid.UUID
}

// Bind scopes store to run. Reads and writes through the result never
// touch another run's entries.
func Bind(store Store, run uuid.UUID) *Ledger {
	return &Ledger{store: store, run: run}
}

// RunID returns the run the ledger is bound to.
func (l *Ledger) RunID() uuid.UUID {
	return l.run
}

// Has reports whether key has been written.
func (l *Ledger) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := l.store.Get(ctx, l.run, key)
	return ok, err
}

// Load decodes the value stored under key into T. ok is false when the
// key has not been written.
func Load[T any](ctx context.Context, l *Ledger, key string) (value T, ok bool, err error) {
	raw, ok, err := l.store.Get(ctx, l.run, key)
	if err != nil || !ok {
		return value, ok, err
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, fmt.Errorf("decode ledger %s: %w", key, err)
	}
	return value, true, nil
}

// Save encodes value as JSON and stores it under key.
func Save(ctx context.Context, l *Ledger, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode ledger %s: %w", key, err)
	}
	return l.store.Set(ctx, l.run, key, raw)
}
