package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is where a FakeClock starts unless told otherwise.
var DefaultEpoch = time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)

// FakeClock is a deterministic wall clock for tests.
//
// Every call to Now() returns the current instant and then advances it by
// Step, so consecutive assignments get strictly increasing creation instants
// without sleeping. A Step of zero freezes the clock, which is how tests
// exercise tie-breaking by insertion order.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewFakeClock creates a clock at DefaultEpoch that advances one millisecond per read.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: DefaultEpoch, step: time.Millisecond}
}

// NewFrozenClock creates a clock that always returns at.
func NewFrozenClock(at time.Time) *FakeClock {
	return &FakeClock{now: at}
}

// Now returns the current instant and advances the clock by its step.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Peek returns the current instant without advancing.
func (c *FakeClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Reset moves the clock back to DefaultEpoch.
func (c *FakeClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = DefaultEpoch
}
