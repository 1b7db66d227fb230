package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/receipts/internal/workflow"
	"github.com/JaimeStill/receipts/pkg/lifecycle"
	contract "github.com/JaimeStill/receipts/workflow"
)

// Local runs triggers on a fixed pool of workers fed by a bounded queue.
// Runs for the same trigger are serialized by the workflow runtime.
type Local struct {
	exec    Executor
	queue   chan contract.Trigger
	workers int
	timeout time.Duration
	logger  *slog.Logger
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewLocal returns a Local dispatcher. Each run is bounded by timeout
// when it is positive.
func NewLocal(exec Executor, workers, queueSize int, timeout time.Duration, logger *slog.Logger) *Local {
	return &Local{
		exec:    exec,
		queue:   make(chan contract.Trigger, max(queueSize, 1)),
		workers: max(workers, 1),
		timeout: timeout,
		logger:  logger.With("system", "dispatch", "mode", ModeLocal),
		done:    make(chan struct{}),
	}
}

// Dispatch enqueues t without blocking. A full queue returns ErrQueueFull.
func (d *Local) Dispatch(ctx context.Context, t contract.Trigger) error {
	if err := t.Validate(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- t:
		d.logger.DebugContext(ctx, "trigger queued", "receipt_id", t.ReceiptID, "delivery_id", t.DeliveryID)
		return nil
	default:
		return ErrQueueFull
	}
}

// Run processes queued triggers until ctx is done. Runs in flight at
// cancellation are abandoned and resume on redelivery. Run may be
// called once.
func (d *Local) Run(ctx context.Context) error {
	defer close(d.done)

	g, ctx := errgroup.WithContext(ctx)
	for range d.workers {
		g.Go(func() error {
			d.work(ctx)
			return nil
		})
	}
	err := g.Wait()
	d.close()
	return err
}

// Start runs the workers for the lifetime of lc.
func (d *Local) Start(lc *lifecycle.Coordinator) {
	lc.OnStartup(func() {
		go d.Run(lc.Context())
		d.logger.Info("workers started", "workers", d.workers, "queue_size", cap(d.queue))
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		<-d.done
		d.logger.Info("workers stopped")
	})
}

func (d *Local) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-d.queue:
			d.process(ctx, t)
		}
	}
}

func (d *Local) process(ctx context.Context, t contract.Trigger) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	logger := d.logger.With("receipt_id", t.ReceiptID, "delivery_id", t.DeliveryID)

	res, err := d.exec(ctx, t)
	switch {
	case err == nil:
		logger.InfoContext(ctx, "run finished", "run_id", res.RunID, "status", res.Status)
	case res != nil:
		logger.WarnContext(ctx, "run failed", "run_id", res.RunID, "error", res.Error)
	case workflow.IsAbandoned(err):
		logger.InfoContext(ctx, "run abandoned", "error", err)
	default:
		logger.ErrorContext(ctx, "run not executed", "error", err)
	}
}

func (d *Local) close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true

	if n := len(d.queue); n > 0 {
		d.logger.Warn("queued triggers dropped", "count", n)
	}
}
