// Package schedule fires pipeline passes on a fixed interval without ever
// running two at once.
package schedule

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 30 * time.Second

// Runner runs one pass if none is in flight and reports whether it did.
// mover.Pipeline satisfies it.
type Runner interface {
	TryRun(ctx context.Context) bool
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) bool

// TryRun implements Runner.
func (f RunnerFunc) TryRun(ctx context.Context) bool { return f(ctx) }

// Scheduler drives a Runner from a ticker.
//
// Every firing runs on its own goroutine so the ticker never waits on a pass.
// A firing that finds a pass in flight is dropped; nothing is queued.
//
// Thread-safety: all methods are safe for concurrent use.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	ctx     context.Context

	passes  sync.WaitGroup
	fired   atomic.Int64
	dropped atomic.Int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a stopped scheduler. interval <= 0 selects DefaultInterval.
func New(r Runner, interval time.Duration, opts ...Option) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Scheduler{
		runner:   r,
		interval: interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scheduler")
	return s
}

// Interval returns the effective firing interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start fires one pass immediately and then one per interval.
// Calling Start on a running scheduler does nothing.
//
// Cancelling ctx stops future firings like Stop does. Passes receive a
// context detached from ctx's cancellation, so a running pass always
// completes.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx = context.WithoutCancel(ctx)
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	s.logger.Info("scheduler started", "interval", s.interval)
	s.fire("start")
	go s.loop(ctx, stop)
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			s.Stop()
			return
		case <-ticker.C:
			s.fire("tick")
		}
	}
}

// Stop disables future firings. It does not wait for, or cancel, a pass in
// flight; use Wait for that. Calling Stop on a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	s.logger.Info("scheduler stopped")
}

// Nudge fires a pass now, with the same drop semantics as a tick.
// It does nothing while the scheduler is stopped.
func (s *Scheduler) Nudge() {
	s.fire("nudge")
}

// Wait blocks until every pass launched by the scheduler has returned.
// Call it after Stop.
func (s *Scheduler) Wait() {
	s.passes.Wait()
}

// Running reports whether the scheduler is started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Fired returns the number of firings so far, dropped ones included.
func (s *Scheduler) Fired() int64 {
	return s.fired.Load()
}

// Dropped returns the number of firings that found a pass in flight.
func (s *Scheduler) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Scheduler) fire(trigger string) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.passes.Add(1)
	s.mu.Unlock()

	s.fired.Add(1)
	go func() {
		defer s.passes.Done()
		if !s.runner.TryRun(ctx) {
			s.dropped.Add(1)
			s.logger.Debug("firing dropped, pass in flight", "trigger", trigger)
		}
	}()
}
