package mover

import (
	"sync/atomic"
	"time"
)

// Stamper issues strictly increasing unix-nanosecond stamps for quarantine names.
//
// Wall-clock readings that do not advance (coarse clocks, frozen test clocks,
// or a step backwards) are bumped to one past the previous stamp, so two
// quarantined files with the same base name never get the same suffix.
//
// Thread-safety: Stamper is safe for concurrent use (atomic operations).
type Stamper struct {
	last  atomic.Int64
	clock Clock
}

// NewStamper creates a stamper reading from clock.
func NewStamper(clock Clock) *Stamper {
	return &Stamper{clock: clock}
}

// Next returns a stamp greater than every stamp returned before.
func (s *Stamper) Next() int64 {
	for {
		prev := s.last.Load()
		n := s.clock.Now().UnixNano()
		if n <= prev {
			n = prev + 1
		}
		if s.last.CompareAndSwap(prev, n) {
			return n
		}
	}
}

// Clock supplies wall-clock instants.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
