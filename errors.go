package hsm

import "fmt"

// TransitionNotFound is raised by Fire (never by TryFire, which reports the
// same condition as a false return) when no transition at any level of the
// currently active hierarchy accepts the event.
type TransitionNotFound struct {
	Machine string
	Event   string
}

func (e *TransitionNotFound) Error() string {
	return fmt.Sprintf("hsm: no transition for event %q in machine %q", e.Event, e.Machine)
}

// TransitionFailed is raised by the fire call whose own handler chain
// raised the fault now latched on the kernel.
type TransitionFailed struct {
	Fault *StateMachineFault
}

func (e *TransitionFailed) Error() string {
	return fmt.Sprintf("hsm: transition failed: %v", e.Fault)
}

func (e *TransitionFailed) Unwrap() error {
	return e.Fault
}

// MachineFaulted is raised by any public operation, except Reset, on a
// kernel that already carries a fault from an earlier dispatch.
type MachineFaulted struct {
	Fault *StateMachineFault
}

func (e *MachineFaulted) Error() string {
	return fmt.Sprintf("hsm: machine is faulted: %v", e.Fault)
}

func (e *MachineFaulted) Unwrap() error {
	return e.Fault
}

// InvalidState is raised when firing against a machine that has no current
// state: its initial state was never set, or the path to it is not active.
type InvalidState struct {
	Machine string
}

func (e *InvalidState) Error() string {
	return fmt.Sprintf("hsm: machine %q has no current state", e.Machine)
}

// AlreadyInitialized is raised by a second CreateInitialState call on the
// same machine.
type AlreadyInitialized struct {
	Machine string
}

func (e *AlreadyInitialized) Error() string {
	return fmt.Sprintf("hsm: machine %q already has an initial state", e.Machine)
}
