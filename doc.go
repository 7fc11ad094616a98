// Package hsm implements the runtime core of a hierarchical finite-state
// machine: a tree of nested sub-machines with typed events, guarded
// transitions, entry/exit/transition handlers, forced transitions,
// reentrancy-safe dispatch, and fault containment.
//
// # Overview
//
// A Machine owns a set of States. A State may in turn own a child Machine,
// giving the tree its hierarchy. Events are fired against the tree; the
// dispatcher searches the currently active chain of machines from the
// deepest active state upward, looking for a transition whose guard
// accepts the event. Firing a transition runs exit handlers from the
// previous leaf up to (but not including) the least common ancestor,
// the transition's own handler, and entry handlers back down into the
// new leaf, activating any child machine the destination state owns.
//
// # Usage
//
//	root := hsm.NewMachine("door")
//	closed := root.CreateInitialState("closed")
//	open := root.CreateState("open")
//	toggle := root.NewEvent("toggle")
//	closed.TransitionOn(toggle).To(open)
//	open.TransitionOn(toggle).To(closed)
//	root.Start(nil)
//	err := toggle.Fire()
package hsm
