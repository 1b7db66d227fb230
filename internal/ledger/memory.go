package ledger

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRun struct {
	run     Run
	entries map[string]Entry
}

type memory struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*memoryRun
	now  func() time.Time
}

// NewMemory returns a process-local Store. Runs do not survive a restart.
func NewMemory() Store {
	return &memory{
		runs: make(map[uuid.UUID]*memoryRun),
		now:  time.Now,
	}
}

func (m *memory) Begin(_ context.Context, run Run) (*Run, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.runs[run.ID]; ok {
		r := existing.run
		return &r, false, nil
	}

	now := m.now().UTC()
	run.Status = StatusRunning
	run.StartedAt = now
	run.UpdatedAt = now
	run.FinishedAt = nil
	m.runs[run.ID] = &memoryRun{run: run, entries: make(map[string]Entry)}

	r := run
	return &r, true, nil
}

func (m *memory) Find(_ context.Context, id uuid.UUID) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mr, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	r := mr.run
	return &r, nil
}

func (m *memory) Advance(_ context.Context, id uuid.UUID, iterations int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mr, ok := m.runs[id]
	if !ok {
		return ErrNotFound
	}
	if mr.run.Status != StatusRunning {
		return ErrInvalidTransition
	}
	mr.run.Iterations = iterations
	mr.run.UpdatedAt = m.now().UTC()
	return nil
}

func (m *memory) Finish(_ context.Context, id uuid.UUID, status Status, cause string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mr, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !mr.run.Status.CanTransitionTo(status) {
		return nil, ErrInvalidTransition
	}

	now := m.now().UTC()
	mr.run.Status = status
	mr.run.Cause = cause
	mr.run.UpdatedAt = now
	mr.run.FinishedAt = &now

	r := mr.run
	return &r, nil
}

func (m *memory) Get(_ context.Context, id uuid.UUID, key string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mr, ok := m.runs[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	e, ok := mr.entries[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(e.Value), true, nil
}

func (m *memory) Set(_ context.Context, id uuid.UUID, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mr, ok := m.runs[id]
	if !ok {
		return ErrNotFound
	}
	mr.entries[key] = Entry{
		Key:       key,
		Value:     slices.Clone(value),
		UpdatedAt: m.now().UTC(),
	}
	return nil
}

func (m *memory) Entries(_ context.Context, id uuid.UUID) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mr, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}

	entries := make([]Entry, 0, len(mr.entries))
	for _, e := range mr.entries {
		e.Value = slices.Clone(e.Value)
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Key, b.Key)
	})
	return entries, nil
}

func (m *memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[id]; !ok {
		return ErrNotFound
	}
	delete(m.runs, id)
	return nil
}
