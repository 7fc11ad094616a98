package hsm

// State is a lightweight handle into a tree's state arena. The zero value
// is not valid; States are obtained from a Machine's construction methods
// or from an Info descriptor delivered to a handler.
type State struct {
	tree *tree
	idx  int
}

// IsValid reports whether s refers to an actual state. Info.To is an
// invalid State for transitions that have no destination to report (an
// dynamic transition's guard and selector, for instance).
func (s State) IsValid() bool {
	return s.tree != nil && s.idx >= 0
}

// Name returns the state's name, or "" for an invalid State.
func (s State) Name() string {
	if !s.IsValid() {
		return ""
	}
	return s.tree.states[s.idx].name
}

// Machine returns the machine that owns s.
func (s State) Machine() Machine {
	owner := s.tree.states[s.idx].owner
	return Machine{tree: s.tree, idx: owner}
}

// ChildMachine returns the child machine s owns, if CreateChildMachine was
// called on it.
func (s State) ChildMachine() (Machine, bool) {
	child := s.tree.states[s.idx].child
	if child == -1 {
		return Machine{}, false
	}
	return Machine{tree: s.tree, idx: child}, true
}

// CreateChildMachine gives s a nested sub-machine, making s a composite
// state per spec.md §2's Machine/State hierarchy. A state may own at most
// one child machine; calling this twice replaces the handle returned by
// ChildMachine but leaves the original child tree node in place, since
// states never hold more than a single child machine index.
func (s State) CreateChildMachine(name string) Machine {
	t := s.tree
	child := &machineNode{
		name:        name,
		parentState: s.idx,
		initial:     -1,
		current:     -1,
	}
	t.machines = append(t.machines, child)
	t.states[s.idx].child = len(t.machines) - 1
	return Machine{tree: t, idx: len(t.machines) - 1}
}

// WithEntry installs s's entry handler, run whenever s becomes active
// (spec.md §4.3).
func (s State) WithEntry(h Handler) State {
	s.tree.states[s.idx].entry = h
	return s
}

// WithExit installs s's exit handler, run whenever s stops being active.
func (s State) WithExit(h Handler) State {
	s.tree.states[s.idx].exit = h
	return s
}

// Defer marks e as deferred while s (or a descendant of s) is active: a
// fire of e found no matching transition reachable, but instead of being
// reported as not-found it is held and retried once any other transition
// succeeds. This is an additive feature beyond the base hierarchical
// search; it has no effect on events that already match a transition.
func (s State) Defer(e *Event) State {
	st := s.tree.states[s.idx]
	if st.deferred == nil {
		st.deferred = make(map[uint64]bool)
	}
	st.deferred[e.id] = true
	return s
}

// TransitionOn begins building a transition out of s for e. The
// transition is registered on s's outbound table as soon as a destination
// is chosen via the returned builder.
func (s State) TransitionOn(e *Event) *TransitionBuilder {
	return &TransitionBuilder{tree: s.tree, from: s.idx, event: e.id}
}
