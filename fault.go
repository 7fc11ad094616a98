package hsm

import (
	"fmt"

	"github.com/arborhsm/hsm/kind"
)

// Fault components, tagged the same way as transition variants (see
// variant.go) so the dispatcher's recover boundary can classify a captured
// panic without a type switch per handler kind.
var (
	componentBase = kind.Make()
	// ComponentEntry tags a fault raised from a state's entry handler.
	ComponentEntry = kind.Make(componentBase)
	// ComponentExit tags a fault raised from a state's exit handler.
	ComponentExit = kind.Make(componentBase)
	// ComponentTransition tags a fault raised from a transition handler.
	ComponentTransition = kind.Make(componentBase)
	// ComponentGuard tags a fault raised from a guard predicate.
	ComponentGuard = kind.Make(componentBase)
	// ComponentDynamic tags a fault raised from a dynamic transition's
	// destination selector.
	ComponentDynamic = kind.Make(componentBase)
)

func componentName(c kind.Kind) string {
	switch {
	case kind.Is(c, ComponentEntry):
		return "entry"
	case kind.Is(c, ComponentExit):
		return "exit"
	case kind.Is(c, ComponentTransition):
		return "transition"
	case kind.Is(c, ComponentGuard):
		return "guard"
	case kind.Is(c, ComponentDynamic):
		return "dynamic"
	default:
		return "unknown"
	}
}

// StateMachineFault is the captured record of a handler panic. It latches
// the kernel (spec.md §4.5) until Reset clears it.
type StateMachineFault struct {
	ID        string
	Machine   string
	Component kind.Kind
	Err       error
	From      State
	To        State
	Event     *Event
}

func (f *StateMachineFault) Error() string {
	eventName := ""
	if f.Event != nil {
		eventName = f.Event.name
	}
	return fmt.Sprintf(
		"hsm: fault [%s] in machine %q during %s (from=%s to=%s event=%s): %v",
		f.ID, f.Machine, componentName(f.Component), f.From.Name(), f.To.Name(), eventName, f.Err,
	)
}

func (f *StateMachineFault) Unwrap() error {
	return f.Err
}

func normalizeRecovered(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
