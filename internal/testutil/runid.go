package testutil

// FixedRunID generates the same run ID every time.
//
// Unlike explore.FixedGenerator which returns ids in sequence, this generator
// never runs out, so one scenario can drive many runs that all render the
// same golden report.
//
// Thread-safety: stateless and safe for concurrent use.
type FixedRunID struct {
	id string
}

// NewFixedRunID creates a fixed run ID generator.
// If id is empty, Generate() returns "test-run-default".
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed run ID.
//
// Implements explore.RunIDGenerator.
func (g *FixedRunID) Generate() string {
	return g.id
}
