package harness

// TraceEvent is one file outcome as recorded by the harness.
type TraceEvent struct {
	Pass     int    `json:"pass"`
	Kind     string `json:"kind"`
	File     string `json:"file"`
	Target   string `json:"target,omitempty"`
	Assigned string `json:"assigned,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every pass expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every file outcome in pass order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// History lists the live assignments after the last pass as
	// "timestamp subject", oldest first.
	History []string `json:"history"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		History: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Count returns the number of trace events of kind in pass, or in all passes when pass is 0.
func (r *Result) Count(kind string, pass int) int {
	n := 0
	for _, ev := range r.Trace {
		if ev.Kind == kind && (pass == 0 || ev.Pass == pass) {
			n++
		}
	}
	return n
}
