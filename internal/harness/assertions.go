package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/uniqtime/internal/content"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion against the harness state and
// returns one message per failure.
func EvaluateAssertions(h *Harness, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		if err := evaluate(h, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func evaluate(h *Harness, a Assertion) error {
	switch a.Type {
	case AssertDestination:
		return assertDestination(h, a)
	case AssertQuarantined:
		return assertCount(a, fmt.Sprintf("%d quarantined copies of %s", a.Count, a.File), func() (int, error) {
			return h.quarantinedCopies(a.File)
		})
	case AssertRemaining:
		return assertCount(a, fmt.Sprintf("%d files left in source", a.Count), h.remaining)
	case AssertHistory:
		return assertCount(a, fmt.Sprintf("%d live assignments", a.Count), func() (int, error) {
			if h.engine == nil {
				return 0, fmt.Errorf("engine closed")
			}
			return h.engine.Len(), nil
		})
	default:
		return &AssertionError{Type: a.Type, Expected: "a known assertion type", Actual: a.Type}
	}
}

// assertDestination checks the file exists in the destination and, when
// Timestamp is set, that its timestamp field holds that value.
func assertDestination(h *Harness, a Assertion) error {
	path := filepath.Join(h.dirs.Destination, a.File)
	data, err := os.ReadFile(path)
	if err != nil {
		return &AssertionError{
			Type:     AssertDestination,
			Expected: fmt.Sprintf("%s in destination", a.File),
			Actual:   err.Error(),
		}
	}
	if a.Timestamp == "" {
		return nil
	}

	doc, err := content.Parse(data, content.DefaultFields())
	if err != nil {
		return &AssertionError{
			Type:     AssertDestination,
			Expected: fmt.Sprintf("%s with timestamp %s", a.File, a.Timestamp),
			Actual:   err.Error(),
		}
	}
	if doc.Timestamp() != a.Timestamp {
		return &AssertionError{
			Type:     AssertDestination,
			Expected: fmt.Sprintf("%s with timestamp %s", a.File, a.Timestamp),
			Actual:   fmt.Sprintf("timestamp %s", doc.Timestamp()),
		}
	}
	return nil
}

func assertCount(a Assertion, expected string, count func() (int, error)) error {
	n, err := count()
	if err != nil {
		return &AssertionError{Type: a.Type, Expected: expected, Actual: err.Error()}
	}
	if n != a.Count {
		return &AssertionError{Type: a.Type, Expected: expected, Actual: fmt.Sprintf("%d", n)}
	}
	return nil
}
