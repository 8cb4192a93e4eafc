package content

import (
	"errors"
	"fmt"
)

// Sentinel kinds carried by ContentError. Match with errors.Is.
var (
	// ErrMalformed indicates the document is not well-formed XML.
	ErrMalformed = errors.New("malformed document")

	// ErrMissingField indicates a required element or attribute is absent or empty.
	ErrMissingField = errors.New("required field missing")

	// ErrAlreadyDisambiguated indicates the timestamp already has a seconds component.
	ErrAlreadyDisambiguated = errors.New("timestamp already disambiguated")
)

// ContentError reports a record that cannot be patched.
// The pipeline treats it as recoverable and passes the file through unmodified.
type ContentError struct {
	// Kind is one of ErrMalformed, ErrMissingField or ErrAlreadyDisambiguated.
	Kind error

	// Field names the element/attribute involved, if any ("Event/@EventDate").
	Field string

	// Err is the underlying decoder error, if any.
	Err error
}

// Error implements the error interface.
func (e *ContentError) Error() string {
	msg := e.Kind.Error()
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Field)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is reports whether target is this error's Kind.
func (e *ContentError) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying decoder error.
func (e *ContentError) Unwrap() error {
	return e.Err
}

// IsContentError returns true if err is (or wraps) a ContentError.
func IsContentError(err error) bool {
	var ce *ContentError
	return errors.As(err, &ce)
}
