package mover

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a missing or invalid directory.
// It is returned by New and is fatal at startup.
type ConfigurationError struct {
	// Field names the setting ("source", "destination", "error").
	Field string
	Path  string
	Err   error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("configuration: %s directory: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("configuration: %s directory %q: %v", e.Field, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// CollisionError reports that a relocation target already exists.
// The existing file is never replaced.
type CollisionError struct {
	Path string
}

// Error implements the error interface.
func (e *CollisionError) Error() string {
	return fmt.Sprintf("file already exists at destination: %s", e.Path)
}

// IOError reports a failed filesystem operation on one file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *IOError) Unwrap() error {
	return e.Err
}

// IsConfiguration returns true if err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsCollision returns true if err is (or wraps) a CollisionError.
func IsCollision(err error) bool {
	var ce *CollisionError
	return errors.As(err, &ce)
}
