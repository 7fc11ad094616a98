package hsm

import "github.com/google/uuid"

// newID generates the unique identifiers tagged onto kernels and captured
// faults for log correlation. Grounded on the reference HSM library's own
// benchmark of google/uuid as a peer for its hand-rolled MUID generator
// (see DESIGN.md); this port uses the real dependency directly instead of
// reimplementing a Snowflake-style generator.
func newID() string {
	return uuid.NewString()
}
