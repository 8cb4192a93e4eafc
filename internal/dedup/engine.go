package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Offsets is the number of second-level offsets available per minute bucket.
const Offsets = 60

// Assignment is one live (timestamp, subject) pair.
type Assignment struct {
	// Timestamp is the date bucket plus ":" and a two-digit offset.
	Timestamp string
	Subject   string
	Created   time.Time
}

// Engine assigns unique timestamps. Implemented by MemoryEngine and DurableEngine.
type Engine interface {
	// Uniquify returns dateBucket + ":" + the first free offset for subject.
	// dateBucket must not already carry a seconds component.
	Uniquify(ctx context.Context, dateBucket, subject string) (string, error)

	// Len returns the number of live assignments.
	Len() int

	// History returns the live assignments, oldest first.
	History(ctx context.Context) ([]Assignment, error)

	// Close releases resources held by the engine.
	Close() error
}

// Clock supplies creation instants.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the current UTC wall time.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Variant selects an Engine implementation.
type Variant int

const (
	// VariantDurable persists history in SQLite.
	VariantDurable Variant = iota
	// VariantMemory keeps history in process memory.
	VariantMemory
)

// String returns the canonical variant name.
func (v Variant) String() string {
	switch v {
	case VariantMemory:
		return "memory"
	default:
		return "durable"
	}
}

// ParseVariant maps a configuration string to a Variant, ignoring case.
//
// "memory" selects VariantMemory; "db" and "durable" select VariantDurable.
// Anything else, including the empty string, falls back to VariantDurable and
// reports ok=false so the caller can log the fallback.
func ParseVariant(s string) (v Variant, ok bool) {
	// A Caser is stateful, so each call gets its own.
	switch cases.Fold().String(strings.TrimSpace(s)) {
	case "memory":
		return VariantMemory, true
	case "db", "durable":
		return VariantDurable, true
	case "":
		return VariantDurable, true
	default:
		return VariantDurable, false
	}
}

// Option configures an engine.
type Option func(*settings)

type settings struct {
	clock Clock
}

// WithClock overrides the clock used for creation instants.
//
// Default: SystemClock
func WithClock(c Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

func applyOptions(opts []Option) settings {
	s := settings{clock: SystemClock{}}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Options selects and configures an engine for Open.
type Options struct {
	Variant Variant
	// History is the capacity; <= 0 disables eviction.
	History int
	// Database is the SQLite path used by VariantDurable.
	Database string
	Clock    Clock
}

// Open constructs the engine selected by o.Variant.
// The durable variant opens (and on Close, closes) its own store.
func Open(ctx context.Context, o Options) (Engine, error) {
	opts := []Option{WithClock(o.Clock)}

	switch o.Variant {
	case VariantMemory:
		return NewMemory(o.History, opts...), nil
	default:
		if o.Database == "" {
			return nil, ErrNoDatabase
		}
		return OpenDurable(ctx, o.Database, o.History, opts...)
	}
}

// candidate formats the disambiguated timestamp for offset i.
func candidate(date string, i int) string {
	return fmt.Sprintf("%s:%02d", date, i)
}

// firstFree returns the lowest-offset candidate for which taken reports false.
func firstFree(date string, taken func(string) bool) (string, bool) {
	for i := 0; i < Offsets; i++ {
		c := candidate(date, i)
		if !taken(c) {
			return c, true
		}
	}
	return "", false
}

// exceedsThreshold reports whether size is above 110% of history.
// Integer form of size > history*1.1.
func exceedsThreshold(size, history int) bool {
	return history > 0 && size*10 > history*11
}
