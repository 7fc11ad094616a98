package hsm

import (
	"context"
	"fmt"
)

// Operation fires e and reports whether the tree settled into target.
// Because dispatch is synchronous (spec.md §5: single-threaded, no
// suspension points), there is no async continuation to await; Operation
// only checks ctx for cancellation before firing, then fires and inspects
// the result immediately. This is a thin, direct stand-in for the
// reference library's general completion-future framework (its own
// context.Context use bounds a channel receive; here it bounds nothing
// more than the precondition check, since Fire never blocks).
func Operation(ctx context.Context, e *Event, target State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.Fire(); err != nil {
		return err
	}
	leaf, ok := target.Machine().TopmostMachine().CurrentStateRecursive()
	if !ok || leaf.idx != target.idx {
		return fmt.Errorf("hsm: operation did not reach state %q", target.Name())
	}
	return nil
}
