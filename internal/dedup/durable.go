package dedup

import (
	"context"
	"sync"

	"github.com/roach88/uniqtime/internal/store"
)

// DurableEngine keeps the assignment history in a SQLite store.
//
// Each Uniquify call is one store unit: read the occupied offsets for the key,
// insert the new row, recount, and evict when over threshold. The unit commits
// before Uniquify returns, so a reported success is always on disk.
//
// Thread-safety: all methods are safe for concurrent use.
type DurableEngine struct {
	mu      sync.Mutex
	store   *store.Store
	owned   bool
	closed  bool
	history int
	clock   Clock

	// count mirrors the persisted row count after the last committed unit.
	count int
}

// NewDurable creates a durable engine over an already open store.
// The caller keeps ownership of st; Close does not close it.
func NewDurable(ctx context.Context, st *store.Store, history int, opts ...Option) (*DurableEngine, error) {
	n, err := st.Count(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "load history count", Err: err}
	}

	s := applyOptions(opts)
	return &DurableEngine{
		store:   st,
		history: history,
		clock:   s.clock,
		count:   n,
	}, nil
}

// OpenDurable opens the store at path and creates a durable engine that owns it.
func OpenDurable(ctx context.Context, path string, history int, opts ...Option) (*DurableEngine, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, &PersistenceError{Op: "open store", Err: err}
	}

	d, err := NewDurable(ctx, st, history, opts...)
	if err != nil {
		st.Close()
		return nil, err
	}
	d.owned = true
	return d, nil
}

// Uniquify implements Engine.
func (d *DurableEngine) Uniquify(ctx context.Context, date, subject string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var (
		assigned string
		size     int
	)

	err := d.store.WithUnit(ctx, func(u *store.Unit) error {
		taken, err := u.Occupied(ctx, date, subject)
		if err != nil {
			return err
		}

		ts, ok := firstFree(date, func(c string) bool { return taken[c] })
		if !ok {
			return &ExhaustionError{Date: date, Subject: subject}
		}

		if _, err := u.Insert(ctx, store.Record{
			EventDate: ts,
			Subject:   subject,
			Created:   d.clock.Now(),
		}); err != nil {
			return err
		}

		n, err := u.Count(ctx)
		if err != nil {
			return err
		}

		if exceedsThreshold(n, d.history) {
			if _, err := u.Evict(ctx, d.history); err != nil {
				return err
			}
			if n, err = u.Count(ctx); err != nil {
				return err
			}
		}

		assigned, size = ts, n
		return nil
	})
	if err != nil {
		if IsExhausted(err) {
			return "", err
		}
		return "", &PersistenceError{Op: "uniquify", Err: err}
	}

	d.count = size
	return assigned, nil
}

// Len implements Engine.
func (d *DurableEngine) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// History implements Engine.
func (d *DurableEngine) History(ctx context.Context) ([]Assignment, error) {
	records, err := d.store.List(ctx, store.Filter{})
	if err != nil {
		return nil, &PersistenceError{Op: "list history", Err: err}
	}

	out := make([]Assignment, len(records))
	for i, rec := range records {
		out[i] = Assignment{Timestamp: rec.EventDate, Subject: rec.Subject, Created: rec.Created}
	}
	return out, nil
}

// Close implements Engine. The store is closed only when the engine opened it.
func (d *DurableEngine) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || !d.owned {
		d.closed = true
		return nil
	}
	d.closed = true
	return d.store.Close()
}
