package hsm

// Machine is a lightweight handle into a tree's machine arena. NewMachine
// creates the root; State.CreateChildMachine creates every other one,
// nesting it under the owning state.
type Machine struct {
	tree *tree
	idx  int
}

// NewMachine constructs a new tree and returns its root machine. cfg is
// optional; at most the first value is used.
func NewMachine(name string, cfg ...Config) Machine {
	var c Config
	if len(cfg) > 0 {
		c = cfg[0]
	}
	if c.Name == "" {
		c.Name = name
	}
	t := newTree(c.Name, c)
	return Machine{tree: t, idx: t.rootIdx()}
}

// Name returns the machine's name.
func (m Machine) Name() string {
	return m.tree.machines[m.idx].name
}

// CreateState adds a new, non-initial state to m.
func (m Machine) CreateState(name string) State {
	t := m.tree
	t.states = append(t.states, &stateNode{
		name:  name,
		owner: m.idx,
		child: -1,
	})
	idx := len(t.states) - 1
	t.machines[m.idx].states = append(t.machines[m.idx].states, idx)
	return State{tree: t, idx: idx}
}

// CreateInitialState adds m's initial state: the state entered by Start
// and by any ancestor transition that activates m via its owning state's
// entry. A machine may have exactly one initial state; a second call
// panics with *AlreadyInitialized, since this is a construction-time
// programming error rather than a runtime condition callers should have
// to check for.
func (m Machine) CreateInitialState(name string) State {
	if m.tree.machines[m.idx].initial != -1 {
		panic(&AlreadyInitialized{Machine: m.Name()})
	}
	s := m.CreateState(name)
	m.tree.machines[m.idx].initial = s.idx
	return s
}

// CurrentState returns m's own current state, not descending into any
// child machine.
func (m Machine) CurrentState() (State, bool) {
	cur := m.tree.machines[m.idx].current
	if cur == -1 {
		return State{}, false
	}
	return State{tree: m.tree, idx: cur}, true
}

// CurrentStateRecursive returns the deepest active state reachable from m,
// descending through every active child machine.
func (m Machine) CurrentStateRecursive() (State, bool) {
	t := m.tree
	cur := t.machines[m.idx].current
	if cur == -1 {
		return State{}, false
	}
	for {
		child := t.states[cur].child
		if child == -1 {
			return State{tree: t, idx: cur}, true
		}
		childCur := t.machines[child].current
		if childCur == -1 {
			return State{tree: t, idx: cur}, true
		}
		cur = childCur
	}
}

// IsActive reports whether m currently has a current state.
func (m Machine) IsActive() bool {
	return m.tree.machines[m.idx].current != -1
}

// Start activates the root machine's initial chain, entering the initial
// state and, transitively, the initial state of any child machine it owns.
// Calling Start on a non-root machine, or on a root whose initial state
// was never set, reports *InvalidState. Calling it again once already
// active is a no-op.
func (m Machine) Start(data any) error {
	t := m.tree
	if m.idx != t.rootIdx() {
		return &InvalidState{Machine: m.Name()}
	}
	found, err := t.kernel.start(t, func() (bool, bool) { return t.performStart(data) })
	if err != nil {
		return err
	}
	if !found {
		return &InvalidState{Machine: t.rootName()}
	}
	return nil
}

// Reset clears any latched fault and queued dispatches and sets the root
// machine, and every child machine whose owning state is current, to its
// initial state; every other child machine is left with no current state.
// No handlers run (spec.md §4.5). It may be called on any Machine handle in the tree; it
// always resets the whole tree.
func (m Machine) Reset() {
	m.tree.kernel.reset(m.tree)
}

// ForceTransition commands the tree's active leaf directly to target,
// bypassing the event table and guard entirely, and running the full
// exit/entry sequence between the active leaf and target regardless of
// whether target lies on an unrelated branch of the hierarchy (spec.md §9,
// resolving the corresponding Open Question in favor of always running the
// full LCA sequence). event, if non-nil, is reported to handlers as the
// triggering event but is never matched against any transition table.
func (m Machine) ForceTransition(target State, event *Event) error {
	t := m.tree
	found, err := t.kernel.submit(t, MethodFire, func() (bool, bool) {
		return t.performForced(target.idx, event, nil)
	})
	if err != nil {
		return err
	}
	if !found {
		return &InvalidState{Machine: t.rootName()}
	}
	return nil
}

// IsChildOf reports whether m is nested, directly or transitively, under a
// state owned by other.
func (m Machine) IsChildOf(other Machine) bool {
	t := m.tree
	for cur := t.machines[m.idx].parentState; cur != -1; cur = t.parentStateOf(cur) {
		if t.states[cur].owner == other.idx {
			return true
		}
	}
	return false
}

// TopmostMachine returns the root machine of m's tree.
func (m Machine) TopmostMachine() Machine {
	return Machine{tree: m.tree, idx: m.tree.rootIdx()}
}

// Fault returns the fault currently latched on m's tree, if any. A fault
// is tree-wide: it is visible from every Machine handle sharing the tree.
func (m Machine) Fault() (*StateMachineFault, bool) {
	return m.tree.kernel.Fault()
}

// Snapshot is a read-only diagnostic view of a tree's active chain. It is
// a point-in-time copy, not a live handle, and is not a substitute for
// persistence or replay (spec.md's Non-goals).
type Snapshot struct {
	Machine     string
	Active      []string
	Faulted     bool
	QueueLength int
}

// Snapshot captures m's tree's current active chain, from the root down
// to the deepest active leaf, for logging or inspection.
func (m Machine) Snapshot() Snapshot {
	t := m.tree
	root := m.TopmostMachine()
	snap := Snapshot{Machine: t.rootName()}
	_, faulted := t.kernel.Fault()
	snap.Faulted = faulted
	snap.QueueLength = len(t.kernel.queue)
	cur := t.machines[root.idx].current
	for cur != -1 {
		snap.Active = append(snap.Active, t.states[cur].name)
		child := t.states[cur].child
		if child == -1 {
			break
		}
		cur = t.machines[child].current
	}
	return snap
}

// NewEvent declares a new plain event against m's tree. Events are tree-
// scoped: firing one against a machine in a different tree is a
// programming error not guarded against here, mirroring the reference
// library's own untyped event identity model.
func (m Machine) NewEvent(name string) *Event {
	t := m.tree
	id := t.nextEventID
	t.nextEventID++
	t.eventNames[id] = name
	return &Event{tree: t, id: id, name: name}
}

// Any returns the reserved wildcard event handle for m's tree. Firing it
// directly runs only the wildcard fallback pass; registering a transition
// on it makes that transition match any event that no transition claims at
// any level of the active chain (SPEC_FULL.md's additive AnyEvent fallback).
func (m Machine) Any() *Event {
	return &Event{tree: m.tree, id: anyEventID, name: "*"}
}

// NewTypedEvent declares a new event carrying a T payload. It is a
// package-level function, not a Machine method, because Go methods
// cannot take their own type parameters.
func NewTypedEvent[T any](m Machine, name string) *TypedEvent[T] {
	return &TypedEvent[T]{Event: *m.NewEvent(name)}
}
