package hsm

// Define is a minimal fluent entry point: it constructs a new root
// machine and hands it to fn to declare states, transitions, and the
// initial state, returning the finished machine. It adds no capability
// over calling NewMachine and the State/TransitionBuilder methods
// directly; it exists so a whole machine definition can read as one
// expression, per spec.md §1's note that a fluent builder is a trivial,
// out-of-scope collaborator. It is deliberately not the reference
// library's declarative Define/State/Transition DSL with its own
// intermediate graph representation.
func Define(name string, fn func(Machine), cfg ...Config) Machine {
	m := NewMachine(name, cfg...)
	fn(m)
	return m
}
