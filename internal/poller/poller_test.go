package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	p := New()

	if p == nil {
		t.Fatal("New() returned nil")
	}
	if p.cron == nil {
		t.Error("cron is nil")
	}
	if p.jobs == nil {
		t.Error("jobs map is nil")
	}
}

func TestAddLoop(t *testing.T) {
	p := New()

	if err := p.AddLoop("roster", 5*time.Second, func(ctx context.Context) {}); err != nil {
		t.Errorf("AddLoop() = %v, want nil", err)
	}

	p.mu.Lock()
	_, exists := p.jobs["roster"]
	p.mu.Unlock()

	if !exists {
		t.Error("loop was not added to jobs map")
	}
}

func TestAddLoopInvalidInterval(t *testing.T) {
	p := New()

	if err := p.AddLoop("roster", 0, func(ctx context.Context) {}); err == nil {
		t.Error("AddLoop() with zero interval = nil, want error")
	}
	if err := p.AddLoop("roster", -time.Second, func(ctx context.Context) {}); err == nil {
		t.Error("AddLoop() with negative interval = nil, want error")
	}
}

func TestAddLoopReplacesExisting(t *testing.T) {
	p := New()

	if err := p.AddLoop("roster", 5*time.Second, func(ctx context.Context) {}); err != nil {
		t.Fatalf("AddLoop() = %v", err)
	}

	p.mu.Lock()
	firstID := p.jobs["roster"]
	p.mu.Unlock()

	if err := p.AddLoop("roster", 10*time.Second, func(ctx context.Context) {}); err != nil {
		t.Fatalf("AddLoop() replacement = %v", err)
	}

	p.mu.Lock()
	secondID := p.jobs["roster"]
	interval := p.intervals["roster"]
	p.mu.Unlock()

	if firstID == secondID {
		t.Error("entry ID was not updated after replacement")
	}
	if interval != 10*time.Second {
		t.Errorf("interval = %s, want 10s", interval)
	}
}

func TestRemoveLoop(t *testing.T) {
	p := New()

	if err := p.AddLoop("roster", 5*time.Second, func(ctx context.Context) {}); err != nil {
		t.Fatalf("AddLoop: %v", err)
	}
	p.RemoveLoop("roster")

	p.mu.Lock()
	_, exists := p.jobs["roster"]
	p.mu.Unlock()

	if exists {
		t.Error("loop still exists after RemoveLoop()")
	}
}

func TestRemoveLoopNonExistent(t *testing.T) {
	p := New()

	// Should not panic
	p.RemoveLoop("nonexistent")
}

func TestTrigger(t *testing.T) {
	var ticks atomic.Int32
	done := make(chan struct{})

	p := New()
	if err := p.AddLoop("roster", time.Hour, func(ctx context.Context) {
		ticks.Add(1)
		close(done)
	}); err != nil {
		t.Fatalf("AddLoop: %v", err)
	}

	if err := p.Trigger("roster"); err != nil {
		t.Fatalf("Trigger() = %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("triggered tick did not run")
	}

	if got := ticks.Load(); got != 1 {
		t.Errorf("ticks = %d, want 1", got)
	}
}

func TestTriggerUnknownLoop(t *testing.T) {
	p := New()

	if err := p.Trigger("nonexistent"); err == nil {
		t.Error("Trigger() for unknown loop = nil, want error")
	}
}

func TestTriggerSkipsOverlappingTick(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	p := New()
	if err := p.AddLoop("roster", time.Hour, func(ctx context.Context) {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("AddLoop: %v", err)
	}

	if err := p.Trigger("roster"); err != nil {
		t.Fatalf("Trigger() = %v", err)
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("tick did not start")
	}

	// A second trigger while the first tick is mid-flight must be refused,
	// never queued.
	if err := p.Trigger("roster"); err == nil {
		t.Error("Trigger() during running tick = nil, want error")
	}

	close(release)
}

func TestStartStop(t *testing.T) {
	p := New()

	p.Start()
	ctx := p.Stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("Stop() did not complete in time")
	}
}

func TestIsRunning(t *testing.T) {
	p := New()

	if p.IsRunning() {
		t.Error("IsRunning() = true before Start()")
	}

	p.Start()

	if !p.IsRunning() {
		t.Error("IsRunning() = false after Start()")
	}

	ctx := p.Stop()

	if p.IsRunning() {
		t.Error("IsRunning() = true after Stop()")
	}

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("Stop() did not complete in time")
	}
}

func TestStopCancelsRunningTick(t *testing.T) {
	started := make(chan struct{})
	var sawCancel atomic.Bool

	p := New()
	if err := p.AddLoop("active-messages", time.Hour, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
	}); err != nil {
		t.Fatalf("AddLoop: %v", err)
	}

	if err := p.Trigger("active-messages"); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("tick did not start")
	}

	ctx := p.Stop()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Error("Stop() did not complete after cancelling tick")
	}

	if !sawCancel.Load() {
		t.Error("tick context was not cancelled by Stop()")
	}
}

func TestAddLoopAfterStop(t *testing.T) {
	p := New()
	p.Stop()

	if err := p.AddLoop("roster", time.Second, func(ctx context.Context) {}); err == nil {
		t.Error("AddLoop() after Stop() = nil, want error")
	}
}

func TestStatus(t *testing.T) {
	p := New()

	if err := p.AddLoop("roster", 5*time.Second, func(ctx context.Context) {}); err != nil {
		t.Fatalf("AddLoop: %v", err)
	}
	if err := p.AddLoop("unread-scan", 3*time.Second, func(ctx context.Context) {}); err != nil {
		t.Fatalf("AddLoop: %v", err)
	}

	statuses := p.Status()
	if len(statuses) != 2 {
		t.Fatalf("len(Status()) = %d, want 2", len(statuses))
	}
	for _, s := range statuses {
		if s.Running {
			t.Errorf("loop %s reported running with no tick in flight", s.Name)
		}
	}
}
