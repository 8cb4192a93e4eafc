// Package dedup assigns unique second-level offsets to minute-precision timestamps.
//
// A key is a (date bucket, subject) pair such as ("2016-01-01T10:15", "P1").
// Uniquify appends ":00".."59" to the bucket and returns the first offset that
// is not live for that subject. Offsets are tried in increasing order, so the
// same call sequence always yields the same results.
//
// HISTORY:
//
// Live assignments form a bounded history. After every insertion, when the
// history holds more than 110% of its capacity, a sweep keeps only the
// capacity most recently created assignments (ties by insertion order). A
// capacity <= 0 disables eviction. Memory therefore follows a sawtooth that
// never exceeds ceil(capacity*1.1) entries.
//
// VARIANTS:
//
//   - MemoryEngine: history in process memory, lost on restart.
//   - DurableEngine: history in SQLite (internal/store). Each call is one
//     transaction; its in-memory occupancy counter is loaded from the store on
//     construction and only updated after a successful commit.
//
// Both variants serialize check-and-insert-and-evict behind one mutex.
// Contention is bounded by file arrival rate, not request rate.
package dedup
