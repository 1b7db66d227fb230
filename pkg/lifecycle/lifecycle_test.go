package lifecycle_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/receipts/pkg/lifecycle"
)

func TestStatusReflectsStartupAndChecks(t *testing.T) {
	lc := lifecycle.New()

	var db atomic.Bool
	lc.Check("database", lifecycle.ReadinessFunc(db.Load))
	lc.Check("storage", lifecycle.ReadinessFunc(func() bool { return true }))

	steps := []struct {
		name   string
		act    func()
		ready  bool
		checks map[string]bool
	}{
		{"before startup", func() {}, false, map[string]bool{"database": false, "storage": true}},
		{"started with failing check", lc.WaitForStartup, false, map[string]bool{"database": false, "storage": true}},
		{"all checks pass", func() { db.Store(true) }, true, map[string]bool{"database": true, "storage": true}},
		{"check regresses", func() { db.Store(false) }, false, map[string]bool{"database": false, "storage": true}},
	}

	for _, s := range steps {
		s.act()
		r := lc.Status()
		if r.Ready != s.ready || lc.Ready() != s.ready {
			t.Errorf("%s: ready = %v, want %v", s.name, r.Ready, s.ready)
		}
		for name, want := range s.checks {
			if r.Checks[name] != want {
				t.Errorf("%s: check %s = %v, want %v", s.name, name, r.Checks[name], want)
			}
		}
	}
}

func TestStatusWithoutChecks(t *testing.T) {
	lc := lifecycle.New()
	lc.WaitForStartup()

	r := lc.Status()
	if !r.Ready {
		t.Error("no checks registered should be ready after startup")
	}
	if r.Checks != nil {
		t.Errorf("checks = %v, want nil", r.Checks)
	}
}

func TestCheckReplacesByName(t *testing.T) {
	lc := lifecycle.New()
	lc.Check("http", lifecycle.ReadinessFunc(func() bool { return false }))
	lc.Check("http", lifecycle.ReadinessFunc(func() bool { return true }))
	lc.WaitForStartup()

	if r := lc.Status(); !r.Ready || len(r.Checks) != 1 {
		t.Errorf("status = %+v", r)
	}
}

func TestWaitForStartupJoinsHooks(t *testing.T) {
	lc := lifecycle.New()

	var finished atomic.Int32
	for range 3 {
		lc.OnStartup(func() {
			time.Sleep(5 * time.Millisecond)
			finished.Add(1)
		})
	}
	lc.WaitForStartup()

	if n := finished.Load(); n != 3 {
		t.Errorf("finished hooks = %d, want 3", n)
	}
}

func TestShutdownPhases(t *testing.T) {
	lc := lifecycle.New()

	var mu sync.Mutex
	var events []string
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		time.Sleep(10 * time.Millisecond)
		record("http closed")
	})
	lc.AfterShutdown(func() { record("runs drained") })
	lc.AfterShutdown(func() { record("database closed") })

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if lc.Context().Err() == nil {
		t.Error("context not cancelled")
	}

	want := []string{"http closed", "runs drained", "database closed"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events = %v, want %v", events, want)
			break
		}
	}
}

func TestShutdownTimesOut(t *testing.T) {
	lc := lifecycle.New()
	release := make(chan struct{})
	defer close(release)

	lc.AfterShutdown(func() { <-release })

	start := time.Now()
	if err := lc.Shutdown(30 * time.Millisecond); err == nil {
		t.Error("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Shutdown took %v", elapsed)
	}
}
