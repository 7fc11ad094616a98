package hsm_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/arborhsm/hsm"
)

// trace collects handler-call labels in order, guarded by a mutex since a
// handler firing a reentrant event runs on the same goroutine but the
// drain loop can call into it from a deferred queue entry.
type trace struct {
	mu  sync.Mutex
	log []string
}

func (tr *trace) add(label string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.log = append(tr.log, label)
}

func (tr *trace) snapshot() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.log...)
}

func equalLog(t *testing.T, got []string, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("log = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("log = %v, want %v", got, want)
		}
	}
}

// TestSimpleTransitionOrder covers S1: A --e--> B runs [A.exit, trans,
// B.entry] and leaves current-state at B.
func TestSimpleTransitionOrder(t *testing.T) {
	tr := &trace{}
	m := hsm.NewMachine("s1")
	a := m.CreateInitialState("A").
		WithEntry(func(hsm.Info) { tr.add("A.entry") }).
		WithExit(func(hsm.Info) { tr.add("A.exit") })
	b := m.CreateState("B").
		WithEntry(func(hsm.Info) { tr.add("B.entry") }).
		WithExit(func(hsm.Info) { tr.add("B.exit") })
	e := m.NewEvent("e")
	a.TransitionOn(e).WithHandler(func(hsm.Info) { tr.add("trans") }).To(b)

	if err := m.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Fire(); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	equalLog(t, tr.snapshot(), []string{"A.entry", "A.exit", "trans", "B.entry"})

	cur, ok := m.CurrentState()
	if !ok || cur.Name() != "B" {
		t.Fatalf("current state = %v (ok=%v), want B", cur.Name(), ok)
	}
}

// TestInnerSelfTransition covers S2: inner-self on e runs only [trans] and
// current-state remains A.
func TestInnerSelfTransition(t *testing.T) {
	tr := &trace{}
	m := hsm.NewMachine("s2")
	a := m.CreateInitialState("A").
		WithEntry(func(hsm.Info) { tr.add("A.entry") }).
		WithExit(func(hsm.Info) { tr.add("A.exit") })
	e := m.NewEvent("e")
	a.TransitionOn(e).WithHandler(func(hsm.Info) { tr.add("trans") }).Inner()

	if err := m.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	tr.log = nil
	if err := e.Fire(); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	equalLog(t, tr.snapshot(), []string{"trans"})

	cur, _ := m.CurrentState()
	if cur.Name() != "A" {
		t.Fatalf("current state = %v, want A", cur.Name())
	}
}

// TestChildMachineEntryOnParentEntry covers S3: P1 --e--> P2 where P2 owns
// a child machine with initial C1; firing e enters both P2 and C1, and
// C1's Info shows from=P1, to=C1, event=e.
func TestChildMachineEntryOnParentEntry(t *testing.T) {
	var c1From, c1To string
	var c1Event string

	m := hsm.NewMachine("s3")
	p1 := m.CreateInitialState("P1")
	p2 := m.CreateState("P2")
	child := p2.CreateChildMachine("P2.child")
	c1 := child.CreateInitialState("C1").WithEntry(func(info hsm.Info) {
		c1From = info.From.Name()
		c1To = info.To.Name()
		c1Event = info.Event.Name()
	})
	_ = c1

	e := m.NewEvent("e")
	p1.TransitionOn(e).To(p2)

	if err := m.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Fire(); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	leaf, ok := m.CurrentStateRecursive()
	if !ok || leaf.Name() != "C1" {
		t.Fatalf("leaf = %v (ok=%v), want C1", leaf.Name(), ok)
	}
	if c1From != "P1" || c1To != "C1" || c1Event != "e" {
		t.Fatalf("C1 entry info = from=%s to=%s event=%s, want from=P1 to=C1 event=e", c1From, c1To, c1Event)
	}
}

// TestExitFromDescendantOnAncestorTransition covers S4: with the S3 tree
// plus C1 --e'--> C2 in the child and P2 --e''--> P1, after e and e',
// firing e'' produces [C2.exit, P2.exit, trans, P1.entry] and C2's exit
// Info.To is P1.
func TestExitFromDescendantOnAncestorTransition(t *testing.T) {
	tr := &trace{}
	var c2ExitTo string

	m := hsm.NewMachine("s4")
	p1 := m.CreateInitialState("P1").WithEntry(func(hsm.Info) { tr.add("P1.entry") })
	p2 := m.CreateState("P2").WithExit(func(hsm.Info) { tr.add("P2.exit") })
	child := p2.CreateChildMachine("P2.child")
	c1 := child.CreateInitialState("C1")
	c2 := child.CreateState("C2").WithExit(func(info hsm.Info) {
		tr.add("C2.exit")
		c2ExitTo = info.To.Name()
	})

	e := m.NewEvent("e")
	ePrime := m.NewEvent("e'")
	eDouble := m.NewEvent("e''")

	p1.TransitionOn(e).To(p2)
	c1.TransitionOn(ePrime).To(c2)
	p2.TransitionOn(eDouble).WithHandler(func(hsm.Info) { tr.add("trans") }).To(p1)

	if err := m.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Fire(); err != nil {
		t.Fatalf("Fire e: %v", err)
	}
	if err := ePrime.Fire(); err != nil {
		t.Fatalf("Fire e': %v", err)
	}
	tr.log = nil

	if err := eDouble.Fire(); err != nil {
		t.Fatalf("Fire e'': %v", err)
	}
	equalLog(t, tr.snapshot(), []string{"C2.exit", "P2.exit", "trans", "P1.entry"})
	if c2ExitTo != "P1" {
		t.Fatalf("C2.exit Info.To = %s, want P1", c2ExitTo)
	}
}

// TestReentrancyOrdering covers S5: firing e2 from inside B's entry
// handler (reached via A --e1--> B, with B --e2--> A) enqueues rather
// than interleaves; the outer fire completes first and the queued e2 runs
// after.
func TestReentrancyOrdering(t *testing.T) {
	tr := &trace{}
	m := hsm.NewMachine("s5")
	a := m.CreateInitialState("A").WithEntry(func(hsm.Info) { tr.add("A.entry") })
	b := m.CreateState("B")

	e1 := m.NewEvent("e1")
	var e2 *hsm.Event
	b = b.WithEntry(func(hsm.Info) {
		tr.add("B.entry")
		if found, err := e2.TryFire(); !found || err != nil {
			t.Errorf("reentrant TryFire = (%v, %v), want (true, nil)", found, err)
		}
	})
	e2 = m.NewEvent("e2")
	b = b.WithExit(func(hsm.Info) { tr.add("B.exit") })

	a.TransitionOn(e1).WithHandler(func(hsm.Info) { tr.add("trans1") }).To(b)
	b.TransitionOn(e2).WithHandler(func(hsm.Info) { tr.add("trans2") }).To(a)

	if err := m.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	tr.log = nil

	if err := e1.Fire(); err != nil {
		t.Fatalf("Fire e1: %v", err)
	}
	equalLog(t, tr.snapshot(), []string{"trans1", "B.entry", "B.exit", "trans2", "A.entry"})
}

// TestFaultContainmentAndReset covers S6: an entry handler panics with a
// sentinel error; the firing call reports TransitionFailed wrapping a
// fault with Component == ComponentEntry and the sentinel as its
// underlying error, a subsequent TryFire reports MachineFaulted, and a
// reset restores the initial state so that e is dispatched again (reaching
// the panicking entry handler once more).
func TestFaultContainmentAndReset(t *testing.T) {
	sentinel := errors.New("boom")

	m := hsm.NewMachine("s6")
	a := m.CreateInitialState("A")
	b := m.CreateState("B").WithEntry(func(hsm.Info) { panic(sentinel) })
	e := m.NewEvent("e")
	a.TransitionOn(e).To(b)

	if err := m.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	err := e.Fire()
	var failed *hsm.TransitionFailed
	if !errors.As(err, &failed) {
		t.Fatalf("Fire err = %v, want *TransitionFailed", err)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("Fire err chain does not contain sentinel: %v", err)
	}
	if failed.Fault.Component != hsm.ComponentEntry {
		t.Fatalf("fault component = %v, want ComponentEntry", failed.Fault.Component)
	}

	_, err = e.TryFire()
	var faulted *hsm.MachineFaulted
	if !errors.As(err, &faulted) {
		t.Fatalf("TryFire after fault err = %v, want *MachineFaulted", err)
	}

	m.Reset()
	if _, faulted := m.Fault(); faulted {
		t.Fatalf("fault still latched after Reset")
	}
	cur, ok := m.CurrentState()
	if !ok || cur.Name() != "A" {
		t.Fatalf("current state after Reset = %v (ok=%v), want A", cur.Name(), ok)
	}
	if err := e.Fire(); err == nil {
		t.Fatalf("Fire after Reset unexpectedly succeeded reaching a panicking handler again")
	}
}

// TestAnyEventFallback exercises the additive wildcard pass: an event with
// no specific match still reaches a transition registered on Any().
func TestAnyEventFallback(t *testing.T) {
	m := hsm.NewMachine("wild")
	a := m.CreateInitialState("A")
	b := m.CreateState("B")
	a.TransitionOn(m.Any()).To(b)

	other := m.NewEvent("unmapped")
	if err := m.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := other.Fire(); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	cur, _ := m.CurrentState()
	if cur.Name() != "B" {
		t.Fatalf("current state = %v, want B (via wildcard)", cur.Name())
	}
}

// TestDeferredEvent checks that an event deferred on the active state is
// retried after the next successful transition instead of being reported
// not-found.
func TestDeferredEvent(t *testing.T) {
	m := hsm.NewMachine("deferred")
	a := m.CreateInitialState("A")
	b := m.CreateState("B")
	c := m.CreateState("C")

	wake := m.NewEvent("wake")
	advance := m.NewEvent("advance")

	a.Defer(wake)
	a.TransitionOn(advance).To(b)
	b.TransitionOn(wake).To(c)

	if err := m.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	found, err := wake.TryFire()
	if err != nil || found {
		t.Fatalf("TryFire(wake) while deferred = (%v, %v), want (false, nil)", found, err)
	}

	if err := advance.Fire(); err != nil {
		t.Fatalf("Fire(advance): %v", err)
	}

	cur, _ := m.CurrentState()
	if cur.Name() != "C" {
		t.Fatalf("current state = %v, want C (deferred wake retried after advance)", cur.Name())
	}
}

// TestTransitionNotFound checks Fire's contract of raising
// *TransitionNotFound when no transition at any level accepts the event.
func TestTransitionNotFound(t *testing.T) {
	m := hsm.NewMachine("notfound")
	m.CreateInitialState("A")
	e := m.NewEvent("e")

	if err := m.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := e.Fire()
	var notFound *hsm.TransitionNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("Fire err = %v, want *TransitionNotFound", err)
	}

	found, err := e.TryFire()
	if err != nil || found {
		t.Fatalf("TryFire = (%v, %v), want (false, nil)", found, err)
	}
}

// TestInvalidStateBeforeStart checks that firing before Start reports
// *InvalidState.
func TestInvalidStateBeforeStart(t *testing.T) {
	m := hsm.NewMachine("unstarted")
	m.CreateInitialState("A")
	e := m.NewEvent("e")

	err := e.Fire()
	var invalid *hsm.InvalidState
	if !errors.As(err, &invalid) {
		t.Fatalf("Fire err = %v, want *InvalidState", err)
	}
}

// TestAlreadyInitializedPanics checks that a second CreateInitialState
// call is rejected at construction time.
func TestAlreadyInitializedPanics(t *testing.T) {
	m := hsm.NewMachine("dup")
	m.CreateInitialState("A")

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic on second CreateInitialState")
		}
		var already *hsm.AlreadyInitialized
		if !errors.As(asError(r), &already) {
			t.Fatalf("recovered value = %v, want *AlreadyInitialized", r)
		}
	}()
	m.CreateInitialState("B")
}

func asError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return nil
}

// recordingSynchronizer counts how many times FireEvent and Reset are
// invoked, confirming the kernel brackets both through the hook when one
// is installed (spec.md §4.6).
type recordingSynchronizer struct {
	fireEvents int
	resets     int
}

func (s *recordingSynchronizer) FireEvent(dispatch func() bool, method hsm.DispatchMethod) bool {
	s.fireEvents++
	return dispatch()
}

func (s *recordingSynchronizer) Reset(action func()) {
	s.resets++
	action()
}

func TestSynchronizerBracketsDispatchAndReset(t *testing.T) {
	synchronizer := &recordingSynchronizer{}
	m := hsm.NewMachine("synced", hsm.Config{Synchronizer: synchronizer})
	a := m.CreateInitialState("A")
	b := m.CreateState("B")
	e := m.NewEvent("e")
	a.TransitionOn(e).To(b)

	if err := m.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Fire(); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if synchronizer.fireEvents == 0 {
		t.Fatalf("synchronizer.FireEvent never called")
	}
	m.Reset()
	if synchronizer.resets != 1 {
		t.Fatalf("synchronizer.Reset called %d times, want 1", synchronizer.resets)
	}
}

// TestOperationHelper exercises the trivial completion-future wrapper.
func TestOperationHelper(t *testing.T) {
	m := hsm.NewMachine("op")
	a := m.CreateInitialState("A")
	b := m.CreateState("B")
	e := m.NewEvent("e")
	a.TransitionOn(e).To(b)

	if err := m.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := hsm.Operation(context.Background(), e, b); err != nil {
		t.Fatalf("Operation: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := hsm.Operation(ctx, e, a); !errors.Is(err, context.Canceled) {
		t.Fatalf("Operation with cancelled ctx = %v, want context.Canceled", err)
	}
}

// TestForcedTransitionUnrelatedBranch resolves spec.md §9's Open Question
// about a forced transition whose destination shares no common ancestor
// state with the active leaf: the whole active chain exits down to the
// root machine before the destination chain enters.
func TestForcedTransitionUnrelatedBranch(t *testing.T) {
	tr := &trace{}
	m := hsm.NewMachine("forced")
	left := m.CreateInitialState("Left").WithExit(func(hsm.Info) { tr.add("Left.exit") })
	leftChild := left.CreateChildMachine("Left.child")
	leftLeaf := leftChild.CreateInitialState("LeftLeaf").WithExit(func(hsm.Info) { tr.add("LeftLeaf.exit") })
	_ = leftLeaf

	right := m.CreateState("Right")
	rightChild := right.CreateChildMachine("Right.child")
	rightLeaf := rightChild.CreateInitialState("RightLeaf").WithEntry(func(hsm.Info) { tr.add("RightLeaf.entry") })

	if err := m.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	tr.log = nil

	if err := m.ForceTransition(rightLeaf, nil); err != nil {
		t.Fatalf("ForceTransition: %v", err)
	}
	equalLog(t, tr.snapshot(), []string{"LeftLeaf.exit", "Left.exit", "RightLeaf.entry"})

	leaf, ok := m.CurrentStateRecursive()
	if !ok || leaf.Name() != "RightLeaf" {
		t.Fatalf("current leaf = %v (ok=%v), want RightLeaf", leaf.Name(), ok)
	}
}

// TestDynamicTransitionGuardThenSelector checks that a Dynamic transition
// evaluates its guard (against the nominal Info, with To unset) before
// running its selector, that a rejected guard reports not-found, and that
// an accepting guard lets the selector choose the destination.
func TestDynamicTransitionGuardThenSelector(t *testing.T) {
	m := hsm.NewMachine("dynamic")
	a := m.CreateInitialState("A")
	b := m.CreateState("B")
	c := m.CreateState("C")

	e := m.NewEvent("e")
	allow := false
	a.TransitionOn(e).
		WithGuard(func(info hsm.Info) bool {
			if info.To.IsValid() {
				t.Fatalf("dynamic guard saw a resolved To before the selector ran")
			}
			return allow
		}).
		ToDynamic(func(info hsm.Info) (hsm.State, bool) {
			return b, true
		})
	// Ancestor fallback: the root machine has no further ancestor here, so
	// exercise the "selector declines" path with a second candidate state
	// registered on the same event at the same level is not possible (one
	// transition per event per state); instead confirm a rejected guard
	// simply reports not-found.
	_ = c

	if err := m.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	found, err := e.TryFire()
	if err != nil || found {
		t.Fatalf("TryFire with guard=false = (%v, %v), want (false, nil)", found, err)
	}

	allow = true
	if err := e.Fire(); err != nil {
		t.Fatalf("Fire with guard=true: %v", err)
	}
	cur, _ := m.CurrentState()
	if cur.Name() != "B" {
		t.Fatalf("current state = %v, want B", cur.Name())
	}
}

func TestDefineBuilder(t *testing.T) {
	var entered bool
	var e *hsm.Event
	m := hsm.Define("built", func(m hsm.Machine) {
		a := m.CreateInitialState("A")
		b := m.CreateState("B").WithEntry(func(hsm.Info) { entered = true })
		e = m.NewEvent("e")
		a.TransitionOn(e).To(b)
	})
	if err := m.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Fire(); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if !entered {
		t.Fatalf("B.entry never ran")
	}
}
