// Package lifecycle coordinates subsystem startup, readiness, and
// ordered shutdown for a long-running process.
package lifecycle

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"
)

// ReadinessChecker reports whether a subsystem is ready to serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// ReadinessFunc adapts a function to ReadinessChecker.
type ReadinessFunc func() bool

func (f ReadinessFunc) Ready() bool { return f() }

// Report is a point-in-time readiness snapshot. Ready is true only when
// startup has completed and every registered check passes.
type Report struct {
	Ready  bool            `json:"ready"`
	Checks map[string]bool `json:"checks,omitempty"`
}

// Coordinator manages startup and shutdown hooks for the application lifecycle.
// Shutdown runs in two phases: every OnShutdown hook concurrently, then
// every AfterShutdown hook in registration order.
type Coordinator struct {
	ctx        context.Context
	cancel     context.CancelFunc
	startupWg  sync.WaitGroup
	shutdownWg sync.WaitGroup

	mu      sync.RWMutex
	started bool
	checks  map[string]ReadinessChecker
	after   []func()
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
		checks: make(map[string]ReadinessChecker),
	}
}

// Context returns the coordinator's context, cancelled on shutdown.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup runs fn concurrently with other startup hooks.
func (c *Coordinator) OnStartup(fn func()) {
	c.startupWg.Go(fn)
}

// OnShutdown runs fn concurrently with other shutdown hooks.
// Hooks should block on <-c.Context().Done() before executing cleanup.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdownWg.Go(fn)
}

// AfterShutdown registers fn to run once every OnShutdown hook has
// returned. Use it for work that must not race subsystems still draining.
func (c *Coordinator) AfterShutdown(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.after = append(c.after, fn)
}

// Check registers a named readiness check. Registering a name twice
// replaces the earlier check.
func (c *Coordinator) Check(name string, rc ReadinessChecker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = rc
}

// Ready reports whether startup has completed and all checks pass.
func (c *Coordinator) Ready() bool {
	return c.Status().Ready
}

// Status evaluates every readiness check.
func (c *Coordinator) Status() Report {
	c.mu.RLock()
	started := c.started
	checks := maps.Clone(c.checks)
	c.mu.RUnlock()

	r := Report{Ready: started}
	if len(checks) > 0 {
		r.Checks = make(map[string]bool, len(checks))
	}
	for name, rc := range checks {
		ok := rc.Ready()
		r.Checks[name] = ok
		r.Ready = r.Ready && ok
	}
	return r
}

// WaitForStartup blocks until all startup hooks have completed and marks
// startup done.
func (c *Coordinator) WaitForStartup() {
	c.startupWg.Wait()
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
}

// Shutdown cancels the context, waits for shutdown hooks, then runs
// AfterShutdown hooks, all within timeout.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.shutdownWg.Wait()

		c.mu.RLock()
		after := c.after
		c.mu.RUnlock()
		for _, fn := range after {
			fn()
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}
