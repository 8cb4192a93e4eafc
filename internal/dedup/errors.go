package dedup

import (
	"errors"
	"fmt"
)

// ErrNoDatabase is returned by Open when the durable variant has no database path.
var ErrNoDatabase = errors.New("durable uniqueifier requires a database path")

// ExhaustionError reports that all offsets for a key are already assigned.
//
// It is a hard failure: the engine does not retry and nothing is inserted.
// Callers treat the record as unprocessable for this pass.
type ExhaustionError struct {
	Date    string
	Subject string
}

// Error implements the error interface.
func (e *ExhaustionError) Error() string {
	return fmt.Sprintf("unique timestamp cannot be created: all %d offsets of %s taken (subject=%s)",
		Offsets, e.Date, e.Subject)
}

// PersistenceError reports a failed unit of work in the durable variant.
// The failed call made no change to the persisted or cached history.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying storage error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsExhausted returns true if err is (or wraps) an ExhaustionError.
func IsExhausted(err error) bool {
	var ee *ExhaustionError
	return errors.As(err, &ee)
}

// IsPersistence returns true if err is (or wraps) a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
