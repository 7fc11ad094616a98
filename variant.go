package hsm

import "github.com/arborhsm/hsm/kind"

// Transition variants, tagged per spec.md's design note (§9): the
// dispatcher switches on the tag once instead of dispatching
// polymorphically per variant.
var (
	transitionBase = kind.Make()
	// NormalKind is a from->to transition running the full exit/handler/entry
	// sequence, including the from==to self-transition case.
	NormalKind = kind.Make(transitionBase)
	// InnerKind is a from->from transition that suppresses exit/entry and
	// only runs the transition handler.
	InnerKind = kind.Make(transitionBase)
	// DynamicKind computes its destination via a Selector at fire time.
	DynamicKind = kind.Make(transitionBase)
	// ForcedKind is an externally commanded transition to an arbitrary
	// state in the tree, bypassing the event table and guard.
	ForcedKind = kind.Make(transitionBase)
)
