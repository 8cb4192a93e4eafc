package dedup

import (
	"context"
	"slices"
	"sync"
)

type entryKey struct {
	timestamp string
	subject   string
}

// MemoryEngine keeps the assignment history in process memory.
//
// Thread-safety: all methods are safe for concurrent use. Uniquify holds the
// engine mutex across the offset scan, the insert and the eviction sweep.
type MemoryEngine struct {
	mu      sync.Mutex
	history int
	clock   Clock
	live    map[entryKey]struct{}
	order   []Assignment // creation order, oldest first
}

// NewMemory creates an in-memory engine with the given history capacity.
// A capacity <= 0 disables eviction.
func NewMemory(history int, opts ...Option) *MemoryEngine {
	s := applyOptions(opts)
	return &MemoryEngine{
		history: history,
		clock:   s.clock,
		live:    make(map[entryKey]struct{}),
	}
}

// Uniquify implements Engine.
func (m *MemoryEngine) Uniquify(_ context.Context, date, subject string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts, ok := firstFree(date, func(c string) bool {
		_, taken := m.live[entryKey{timestamp: c, subject: subject}]
		return taken
	})
	if !ok {
		return "", &ExhaustionError{Date: date, Subject: subject}
	}

	m.live[entryKey{timestamp: ts, subject: subject}] = struct{}{}
	m.order = append(m.order, Assignment{Timestamp: ts, Subject: subject, Created: m.clock.Now()})

	if exceedsThreshold(len(m.order), m.history) {
		m.sweep()
	}

	return ts, nil
}

// sweep keeps the m.history most recently created assignments.
// Must be called with m.mu held.
func (m *MemoryEngine) sweep() {
	// Stable sort keeps insertion order for equal creation instants.
	slices.SortStableFunc(m.order, func(a, b Assignment) int {
		return a.Created.Compare(b.Created)
	})

	drop := len(m.order) - m.history
	for _, a := range m.order[:drop] {
		delete(m.live, entryKey{timestamp: a.Timestamp, subject: a.Subject})
	}

	// Copy so the evicted prefix can be collected.
	kept := make([]Assignment, m.history)
	copy(kept, m.order[drop:])
	m.order = kept
}

// Len implements Engine.
func (m *MemoryEngine) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// History implements Engine.
func (m *MemoryEngine) History(_ context.Context) ([]Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Assignment, len(m.order))
	copy(out, m.order)
	slices.SortStableFunc(out, func(a, b Assignment) int {
		return a.Created.Compare(b.Created)
	})
	return out, nil
}

// Close implements Engine. The in-memory history is simply dropped.
func (m *MemoryEngine) Close() error {
	return nil
}
