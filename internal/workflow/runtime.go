package workflow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/JaimeStill/receipts/internal/inference"
	"github.com/JaimeStill/receipts/internal/ledger"
	"github.com/JaimeStill/receipts/internal/persistence"
)

// Runtime bundles the dependencies a run needs.
type Runtime struct {
	Inference   inference.Gateway
	Persistence persistence.Gateway
	Ledger      ledger.Store
	Config      Config
	Logger      *slog.Logger

	locks runLocks
}

// NewRuntime returns a Runtime ready to execute runs.
func NewRuntime(cfg Config, gw inference.Gateway, pg persistence.Gateway, store ledger.Store, logger *slog.Logger) *Runtime {
	return &Runtime{
		Inference:   gw,
		Persistence: pg,
		Ledger:      store,
		Config:      cfg,
		Logger:      logger.With("system", "workflow"),
	}
}

// runLocks serializes executions of the same run within the process.
type runLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*runLock
}

type runLock struct {
	ch   chan struct{}
	refs int
}

// acquire blocks until the caller holds the lock for id or ctx is done.
func (l *runLocks) acquire(ctx context.Context, id uuid.UUID) (release func(), err error) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[uuid.UUID]*runLock)
	}
	lk, ok := l.locks[id]
	if !ok {
		lk = &runLock{ch: make(chan struct{}, 1)}
		l.locks[id] = lk
	}
	lk.refs++
	l.mu.Unlock()

	drop := func() {
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}

	select {
	case lk.ch <- struct{}{}:
		return func() {
			<-lk.ch
			drop()
		}, nil
	case <-ctx.Done():
		drop()
		return nil, ctx.Err()
	}
}
