package hsm

import "github.com/arborhsm/hsm/kind"

// callHandler, callGuard, and callSelector each wrap a single handler
// invocation with a recover that turns any panic into a *StateMachineFault
// carrying the component and from/to/event context at the point of
// failure, then re-panics it. The kernel's outermost recover (kernel.go's
// runGuarded) is the only place that actually stops the unwind; this
// mirrors the reference HSM library's recover-and-convert idiom
// (hsm.go's cleanup/process), but converts into a structured fault instead
// of redispatching an error event, per spec.md §4.5.
func callHandler(machine string, component kind.Kind, h Handler, info Info) {
	if h == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			panic(&StateMachineFault{
				Machine:   machine,
				Component: component,
				Err:       normalizeRecovered(r),
				From:      info.From,
				To:        info.To,
				Event:     info.Event,
			})
		}
	}()
	h(info)
}

func callGuard(machine string, g Guard, info Info) (ok bool) {
	if g == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			panic(&StateMachineFault{
				Machine:   machine,
				Component: ComponentGuard,
				Err:       normalizeRecovered(r),
				From:      info.From,
				To:        info.To,
				Event:     info.Event,
			})
		}
	}()
	return g(info)
}

func callSelector(machine string, s Selector, info Info) (State, bool) {
	defer func() {
		if r := recover(); r != nil {
			panic(&StateMachineFault{
				Machine:   machine,
				Component: ComponentDynamic,
				Err:       normalizeRecovered(r),
				From:      info.From,
				To:        info.To,
				Event:     info.Event,
			})
		}
	}()
	return s(info)
}

// search implements spec.md §4.2: walk the active chain from the deepest
// active state upward, consulting each level's outbound table for event,
// then (if nothing matched) run the same walk again against the reserved
// wildcard event (SPEC_FULL.md's additive "AnyEvent-style wildcard
// fallback"). Guards failing, or a dynamic selector returning not-ok,
// continue the walk to the next ancestor rather than aborting it.
func (t *tree) search(leaf int, e *Event, data any) (node *transitionNode, resolvedTo int, ok bool) {
	machine := t.rootName()
	leafState := State{tree: t, idx: leaf}
	for _, pass := range [2]uint64{e.id, anyEventID} {
		if pass == anyEventID && e.id == anyEventID {
			break // the wildcard event itself doesn't get a second wildcard pass
		}
		for cur := leaf; cur != -1; cur = t.parentStateOf(cur) {
			n, exists := t.states[cur].outbound[pass]
			if !exists {
				continue
			}
			if kind.Is(n.kind, DynamicKind) {
				guardInfo := Info{From: leafState, Event: e, Data: data}
				if !callGuard(machine, n.guard, guardInfo) {
					continue
				}
				selectInfo := Info{From: leafState, Event: e, Data: data}
				to, selected := callSelector(machine, n.selector, selectInfo)
				if !selected {
					continue
				}
				return n, to.idx, true
			}
			toState := State{tree: t, idx: n.to}
			guardInfo := Info{From: leafState, To: toState, Event: e, Data: data}
			if !callGuard(machine, n.guard, guardInfo) {
				continue
			}
			return n, n.to, true
		}
	}
	return nil, -1, false
}

func (t *tree) isDeferred(leaf int, eventID uint64) bool {
	for cur := leaf; cur != -1; cur = t.parentStateOf(cur) {
		if t.states[cur].deferred[eventID] {
			return true
		}
	}
	return false
}

// performFire is the attempt closure for a typed/untyped event fire: it
// resolves the active leaf, searches for a matching transition, checks
// deferral when none matched, and runs the handler sequence.
func (t *tree) performFire(e *Event, data any) (found bool, deferred bool) {
	leaf := t.activeLeaf()
	if leaf == -1 {
		return false, false
	}
	node, resolvedTo, ok := t.search(leaf, e, data)
	if !ok {
		if t.isDeferred(leaf, e.id) {
			return false, true
		}
		return false, false
	}
	t.runSequencing(leaf, resolvedTo, e, data, node.handler, kind.Is(node.kind, InnerKind))
	return true, false
}

// performForced is the attempt closure for Machine.ForceTransition: it
// bypasses the event table and guard entirely (spec.md §4.2).
func (t *tree) performForced(targetIdx int, e *Event, data any) (found bool, deferred bool) {
	leaf := t.activeLeaf()
	if leaf == -1 {
		return false, false
	}
	t.runSequencing(leaf, targetIdx, e, data, nil, false)
	return true, false
}

// runSequencing implements spec.md §4.3's LCA handler-sequencing algorithm.
func (t *tree) runSequencing(fromIdx, toIdx int, e *Event, data any, handler Handler, isInner bool) {
	machine := t.rootName()
	from := State{tree: t, idx: fromIdx}
	to := State{tree: t, idx: toIdx}

	if isInner {
		callHandler(machine, ComponentTransition, handler, Info{From: from, To: to, Event: e, IsInner: true, Data: data})
		return
	}

	lca := t.lca(fromIdx, toIdx)

	for cur := fromIdx; cur != lca; cur = t.parentStateOf(cur) {
		exitingState := State{tree: t, idx: cur}
		info := Info{From: exitingState, To: to, Event: e, Data: data}
		callHandler(machine, ComponentExit, t.states[cur].exit, info)
	}

	callHandler(machine, ComponentTransition, handler, Info{From: from, To: to, Event: e, Data: data})

	for _, idx := range t.pathFromTo(lca, toIdx) {
		t.enterState(idx, from, e, data)
	}

	t.activateChildren(toIdx, from, e, data)
}

// enterState marks idx current on its owning machine and runs its entry
// handler.
func (t *tree) enterState(idx int, from State, e *Event, data any) {
	t.setCurrent(idx)
	entering := State{tree: t, idx: idx}
	info := Info{From: from, To: entering, Event: e, Data: data}
	callHandler(t.rootName(), ComponentEntry, t.states[idx].entry, info)
}

// activateChildren descends into any chain of child machines owned by leaf
// (and by each machine's own initial state in turn), entering each down to
// its initial leaf. Used both after an ordinary transition and by Start.
func (t *tree) activateChildren(leaf int, from State, e *Event, data any) {
	for {
		childMachine := t.states[leaf].child
		if childMachine == -1 {
			return
		}
		initial := t.machines[childMachine].initial
		if initial == -1 {
			return
		}
		t.machines[childMachine].current = initial
		t.enterState(initial, from, e, data)
		leaf = initial
	}
}

// performStart is the attempt closure for Machine.Start: it activates the
// root's initial chain if the root has no current state yet, and is a
// no-op if Start has already run.
func (t *tree) performStart(data any) (found bool, deferred bool) {
	root := t.machines[t.rootIdx()]
	if root.current != -1 {
		return true, false
	}
	if root.initial == -1 {
		return false, false
	}
	none := State{tree: t, idx: -1}
	t.enterState(root.initial, none, nil, data)
	t.activateChildren(root.initial, none, nil, data)
	return true, false
}
