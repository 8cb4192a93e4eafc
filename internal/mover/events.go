package mover

import (
	"time"
)

// Kind classifies what a pass did with one file.
type Kind string

const (
	// KindPatched means the record was disambiguated and written to the destination.
	KindPatched Kind = "patched"

	// KindPassthrough means the file was moved to the destination unmodified.
	// Event.Err carries the reason when the file was a record that could not be patched.
	KindPassthrough Kind = "passthrough"

	// KindQuarantined means the file was moved to the error directory.
	KindQuarantined Kind = "quarantined"

	// KindSkipped means the file was busy or gone and was left for a later pass.
	KindSkipped Kind = "skipped"

	// KindFailed means the file could not even be quarantined and is still in the source.
	KindFailed Kind = "failed"
)

// Event describes the outcome for one file.
type Event struct {
	Kind   Kind
	PassID string
	// File is the source path as enumerated.
	File string
	// Target is where the file ended up, empty for skipped and failed.
	Target string
	// Assigned is the disambiguated timestamp written into a patched record.
	Assigned string
	Err      error
}

// Observer receives one Event per enumerated file.
// Observe is called synchronously from the pass goroutine.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) { f(e) }

// PassReport summarises one completed pass.
type PassReport struct {
	PassID      string    `json:"pass_id"`
	Started     time.Time `json:"started"`
	Finished    time.Time `json:"finished"`
	Files       int       `json:"files"`
	Patched     int       `json:"patched"`
	Passthrough int       `json:"passthrough"`
	Quarantined int       `json:"quarantined"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
}

func (r *PassReport) add(e Event) {
	r.Files++
	switch e.Kind {
	case KindPatched:
		r.Patched++
	case KindPassthrough:
		r.Passthrough++
	case KindQuarantined:
		r.Quarantined++
	case KindSkipped:
		r.Skipped++
	case KindFailed:
		r.Failed++
	}
}
