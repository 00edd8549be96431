// Package poller runs named periodic loops against the chat backend. It is
// the single owner of all timers: every loop lives in its registry, no loop
// tick overlaps itself, and Stop cancels and drains everything, so no
// interval survives a logout or view teardown.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// LoopFunc is one tick of a periodic loop. The context is cancelled when
// the poller stops; implementations should pass it to their network calls.
type LoopFunc func(ctx context.Context)

// LoopStatus describes one registered loop.
type LoopStatus struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	Running  bool          `json:"running"`
	LastRun  time.Time     `json:"last_run,omitempty"`
	NextRun  time.Time     `json:"next_run"`
}

// Poller schedules interval loops.
type Poller struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu        sync.Mutex
	jobs      map[string]cron.EntryID
	intervals map[string]time.Duration
	loops     map[string]LoopFunc
	running   map[string]bool // tick currently executing
	lastRun   map[string]time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// New creates an empty poller.
func New() *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		cron:      cron.New(),
		logger:    slog.Default(),
		jobs:      make(map[string]cron.EntryID),
		intervals: make(map[string]time.Duration),
		loops:     make(map[string]LoopFunc),
		running:   make(map[string]bool),
		lastRun:   make(map[string]time.Time),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// WithLogger sets the logger for the poller.
func (p *Poller) WithLogger(logger *slog.Logger) *Poller {
	p.logger = logger
	return p
}

// AddLoop registers a loop that runs fn every interval. A loop with the
// same name is replaced. A tick is skipped entirely when the previous tick
// of the same loop has not finished; ticks are never queued.
func (p *Poller) AddLoop(name string, interval time.Duration, fn LoopFunc) error {
	if interval <= 0 {
		return fmt.Errorf("loop %q: interval must be positive, got %s", name, interval)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return fmt.Errorf("loop %q: poller is stopped", name)
	}

	if entryID, exists := p.jobs[name]; exists {
		p.cron.Remove(entryID)
		delete(p.jobs, name)
		delete(p.intervals, name)
		delete(p.loops, name)
	}

	entryID, err := p.cron.AddFunc("@every "+interval.String(), func() {
		p.mu.Lock()
		if p.stopped || p.running[name] {
			p.mu.Unlock()
			return
		}
		p.running[name] = true
		p.wg.Add(1)
		p.mu.Unlock()
		p.runTick(name, fn)
	})
	if err != nil {
		return fmt.Errorf("loop %q: %w", name, err)
	}

	p.jobs[name] = entryID
	p.intervals[name] = interval
	p.loops[name] = fn
	p.logger.Debug("loop registered", "loop", name, "interval", interval)
	return nil
}

// RemoveLoop unregisters a loop. An in-flight tick finishes but no further
// ticks fire.
func (p *Poller) RemoveLoop(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entryID, exists := p.jobs[name]; exists {
		p.cron.Remove(entryID)
		delete(p.jobs, name)
		delete(p.intervals, name)
		delete(p.loops, name)
		p.logger.Debug("loop removed", "loop", name)
	}
}

// Trigger runs one tick of the named loop immediately, outside its
// schedule. It is a no-op error if the loop is unknown, already mid-tick,
// or the poller is stopped.
func (p *Poller) Trigger(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return fmt.Errorf("poller is stopped")
	}
	fn, exists := p.loops[name]
	if !exists {
		return fmt.Errorf("loop %q is not registered", name)
	}
	if p.running[name] {
		return fmt.Errorf("loop %q is already running", name)
	}

	p.running[name] = true
	p.wg.Add(1)
	go p.runTick(name, fn)
	return nil
}

// Start begins executing registered loops.
func (p *Poller) Start() {
	p.mu.Lock()
	p.started = true
	p.stopped = false
	p.mu.Unlock()

	p.cron.Start()
	p.logger.Debug("poller started", "loops", len(p.jobs))
}

// IsRunning reports whether the poller has been started and not stopped.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started && !p.stopped
}

// Stop cancels the loop context, stops the schedule, and clears the
// registry. The returned context is done once every in-flight tick has
// finished.
func (p *Poller) Stop() context.Context {
	p.mu.Lock()
	p.stopped = true
	for name, entryID := range p.jobs {
		p.cron.Remove(entryID)
		delete(p.jobs, name)
		delete(p.intervals, name)
		delete(p.loops, name)
	}
	p.mu.Unlock()

	cronCtx := p.cron.Stop()
	p.cancel()

	done := make(chan struct{})
	go func() {
		<-cronCtx.Done()
		p.wg.Wait()
		close(done)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-done
		cancel()
	}()
	return ctx
}

// runTick executes one tick. The caller must have set running[name] and
// called wg.Add(1).
func (p *Poller) runTick(name string, fn LoopFunc) {
	defer p.wg.Done()
	defer func() {
		p.mu.Lock()
		p.running[name] = false
		p.lastRun[name] = time.Now()
		p.mu.Unlock()
	}()

	fn(p.ctx)
}

// Status returns the current state of all registered loops.
func (p *Poller) Status() []LoopStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	var statuses []LoopStatus
	for name, entryID := range p.jobs {
		statuses = append(statuses, LoopStatus{
			Name:     name,
			Interval: p.intervals[name],
			Running:  p.running[name],
			LastRun:  p.lastRun[name],
			NextRun:  p.cron.Entry(entryID).Next,
		})
	}
	return statuses
}
