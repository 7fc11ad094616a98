package hsm

// Event is a handle to a declared event against a specific tree. The zero
// value is not valid; obtain one from Machine.NewEvent, Machine.Any, or
// NewTypedEvent.
type Event struct {
	tree *tree
	id   uint64
	name string
}

// Name returns the event's declared name.
func (e *Event) Name() string {
	return e.name
}

func (e *Event) fire(method DispatchMethod, data any) (bool, error) {
	t := e.tree
	found, err := t.kernel.submit(t, method, func() (bool, bool) {
		return t.performFire(e, data)
	})
	if err != nil {
		return false, err
	}
	if !found && method == MethodFire {
		return false, &TransitionNotFound{Machine: t.rootName(), Event: e.name}
	}
	return found, nil
}

// TryFire attempts to dispatch e. It never reports *TransitionNotFound:
// a false, nil result means no transition matched. If the dispatch is
// reentrant (issued from inside another handler's call chain) the kernel
// reports an optimistic true without yet knowing the real outcome
// (spec.md §4.4's run-to-completion queueing, and the corresponding Open
// Question, resolved in favor of optimism to keep the calling handler from
// blocking on its own enqueued work).
func (e *Event) TryFire() (bool, error) {
	return e.fire(MethodTryFire, nil)
}

// Fire dispatches e, returning *TransitionNotFound if no transition in the
// active hierarchy accepts it.
func (e *Event) Fire() error {
	_, err := e.fire(MethodFire, nil)
	return err
}

// TypedEvent is an Event that additionally carries a typed payload,
// delivered to handlers, guards, and selectors as Info.Data.
type TypedEvent[T any] struct {
	Event
}

// TryFire behaves like Event.TryFire, passing data through as Info.Data.
func (e *TypedEvent[T]) TryFire(data T) (bool, error) {
	return e.Event.fire(MethodTryFire, data)
}

// Fire behaves like Event.Fire, passing data through as Info.Data.
func (e *TypedEvent[T]) Fire(data T) error {
	_, err := e.Event.fire(MethodFire, data)
	return err
}
