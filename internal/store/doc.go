// Package store provides SQLite-backed durable storage for timestamp assignments.
//
// The store keeps one row per live assignment:
//   - event_date: the disambiguated timestamp ("2016-01-01T10:15:07")
//   - subject: the opaque subject identifier
//   - created_at: creation instant (unix nanoseconds, UTC)
//   - seq: insertion order, used to break created_at ties
//
// # Units of work
//
// Every mutation happens inside a Unit (one SQL transaction) obtained through
// WithUnit. A unit either commits completely or leaves the database untouched,
// so callers that cache derived state (occupancy counters) can update their
// cache only after WithUnit returns nil.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - single connection: SQLite has one writer anyway
package store
