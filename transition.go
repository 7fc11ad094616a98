package hsm

import "github.com/arborhsm/hsm/kind"

// TransitionBuilder accumulates a guard and handler before a terminal call
// (To, Inner, or ToDynamic) registers the transition. It is returned by
// State.TransitionOn and is not reusable once a terminal method is called.
type TransitionBuilder struct {
	tree    *tree
	from    int
	event   uint64
	guard   Guard
	handler Handler
}

// WithGuard installs a predicate that must accept the firing event's data
// for this transition to match. A nil guard (the default) always accepts.
func (b *TransitionBuilder) WithGuard(g Guard) *TransitionBuilder {
	b.guard = g
	return b
}

// WithHandler installs the transition's own handler, run between the exit
// and entry sequences (or, for Inner, run in their place).
func (b *TransitionBuilder) WithHandler(h Handler) *TransitionBuilder {
	b.handler = h
	return b
}

// Transition is a read-only handle to a registered transition, returned by
// a TransitionBuilder's terminal method.
type Transition struct {
	tree *tree
	from int
	to   int
	kind kind.Kind
}

// Kind reports which transition variant this is: NormalKind, InnerKind,
// DynamicKind, or ForcedKind.
func (tr Transition) Kind() kind.Kind { return tr.kind }

// From returns the transition's source state.
func (tr Transition) From() State { return State{tree: tr.tree, idx: tr.from} }

// To returns the transition's static destination. It is invalid for a
// Dynamic transition, whose destination is computed at fire time.
func (tr Transition) To() State {
	if tr.to == -1 {
		return State{}
	}
	return State{tree: tr.tree, idx: tr.to}
}

func (b *TransitionBuilder) register(n *transitionNode) Transition {
	st := b.tree.states[b.from]
	if st.outbound == nil {
		st.outbound = make(map[uint64]*transitionNode)
	}
	st.outbound[b.event] = n
	return Transition{tree: b.tree, from: b.from, to: n.to, kind: n.kind}
}

// To registers a Normal transition from the builder's source state to
// target. This also covers the self-transition case (target == the
// source state): the full exit/handler/entry sequence still runs, which is
// what distinguishes Normal self-transitions from Inner.
func (b *TransitionBuilder) To(target State) Transition {
	return b.register(&transitionNode{
		kind:    NormalKind,
		from:    b.from,
		to:      target.idx,
		guard:   b.guard,
		handler: b.handler,
		event:   b.event,
	})
}

// Inner registers an Inner(-self) transition: the event's handler runs,
// but no exit or entry handler does, and the active state does not
// change. Useful for handling an event within a state without treating it
// as leaving and re-entering that state.
func (b *TransitionBuilder) Inner() Transition {
	return b.register(&transitionNode{
		kind:    InnerKind,
		from:    b.from,
		to:      b.from,
		guard:   b.guard,
		handler: b.handler,
		event:   b.event,
	})
}

// ToDynamic registers a Dynamic transition: once the guard (if any)
// accepts, selector computes the actual destination at fire time. A
// selector returning ok=false behaves like a guard rejection, letting the
// hierarchical search continue at the next ancestor.
func (b *TransitionBuilder) ToDynamic(selector Selector) Transition {
	return b.register(&transitionNode{
		kind:     DynamicKind,
		from:     b.from,
		to:       -1,
		guard:    b.guard,
		selector: selector,
		handler:  b.handler,
		event:    b.event,
	})
}
