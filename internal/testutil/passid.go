package testutil

// FixedPassIDGenerator returns the same pass id every time.
//
// This keeps log lines and reports byte-identical across runs so they can be
// compared against golden output.
//
// Thread-safety: FixedPassIDGenerator is stateless and safe for concurrent use.
type FixedPassIDGenerator struct {
	id string
}

// NewFixedPassIDGenerator creates a generator for id.
// If id is empty, Generate() returns "test-pass-default".
func NewFixedPassIDGenerator(id string) *FixedPassIDGenerator {
	if id == "" {
		id = "test-pass-default"
	}
	return &FixedPassIDGenerator{id: id}
}

// Generate returns the fixed pass id.
func (g *FixedPassIDGenerator) Generate() string {
	return g.id
}
