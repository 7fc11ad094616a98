package hsm

import "go.uber.org/zap"

// Config configures a machine tree at construction, mirroring the
// reference HSM library's own Config struct (see DESIGN.md).
type Config struct {
	// Name overrides the root machine's name.
	Name string
	// ID identifies the kernel and is logged as kernel_id on reset.
	// Defaults to a generated google/uuid v4 when empty. Captured faults
	// get their own generated IDs; dispatches are logged by sequence number.
	ID string
	// Logger receives dispatch/fault log entries. Defaults to a no-op
	// logger.
	Logger *Logger
	// Synchronizer optionally brackets dispatch and reset.
	Synchronizer Synchronizer
}

type pendingDispatch struct {
	seq     uint64
	method  DispatchMethod
	attempt func() (found bool, deferred bool)
}

// Kernel is the per-machine-tree singleton described in spec.md §3: it
// holds the fault state, the pending-transition queue, the "executing"
// flag, and the optional synchronizer hook. Exactly one Kernel exists per
// tree, shared by every Machine and Event bound to it.
type Kernel struct {
	id           string
	logger       *Logger
	synchronizer Synchronizer

	fault     *StateMachineFault
	executing bool
	queue     []*pendingDispatch
	deferred  []*pendingDispatch
	nextSeq   uint64
}

func newKernel(cfg Config) *Kernel {
	id := cfg.ID
	if id == "" {
		id = newID()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Kernel{
		id:           id,
		logger:       logger,
		synchronizer: cfg.Synchronizer,
	}
}

// Fault returns the fault currently latched on the kernel, if any.
func (k *Kernel) Fault() (*StateMachineFault, bool) {
	return k.fault, k.fault != nil
}

// submit implements spec.md §4.4: a fire issued while the kernel is
// already executing a dispatch is enqueued and reports an optimistic
// "found", never touching the search itself; a top-level fire runs
// immediately (optionally through the Synchronizer) and then drains
// anything reentrant fires queued during its own handler chain.
func (k *Kernel) submit(t *tree, method DispatchMethod, attempt func() (bool, bool)) (bool, error) {
	if k.fault != nil {
		return false, &MachineFaulted{Fault: k.fault}
	}
	if !k.executing && !t.rootActive() {
		return false, &InvalidState{Machine: t.rootName()}
	}
	k.nextSeq++
	pd := &pendingDispatch{seq: k.nextSeq, method: method, attempt: attempt}
	k.queue = append(k.queue, pd)
	k.logger.debug("hsm: queued dispatch", zap.Uint64("seq", pd.seq), zap.String("method", method.String()))

	if k.executing {
		return true, nil
	}
	return k.drain(t, pd.seq)
}

// start submits the root-activation attempt built by Machine.Start. It
// mirrors submit but skips the rootActive precondition, since activating
// the root is precisely what makes rootActive true.
func (k *Kernel) start(t *tree, attempt func() (bool, bool)) (bool, error) {
	if k.fault != nil {
		return false, &MachineFaulted{Fault: k.fault}
	}
	k.nextSeq++
	pd := &pendingDispatch{seq: k.nextSeq, method: MethodFire, attempt: attempt}
	k.queue = append(k.queue, pd)
	k.logger.debug("hsm: queued start", zap.Uint64("seq", pd.seq))

	if k.executing {
		return true, nil
	}
	return k.drain(t, pd.seq)
}

// drain runs the FIFO queue to empty, running each dispatch's attempt
// under the "executing" flag (so nothing it enqueues runs until it
// returns) and tracking the result of the call identified by ourSeq, which
// is always present because the queue is empty whenever !executing.
func (k *Kernel) drain(t *tree, ourSeq uint64) (ourFound bool, ourErr error) {
	k.executing = true
	defer func() { k.executing = false }()

	for len(k.queue) > 0 {
		pd := k.queue[0]
		k.queue = k.queue[1:]

		var run func() bool
		if k.synchronizer != nil {
			run = func() bool { return k.synchronizer.FireEvent(func() bool { return k.runGuarded(t, pd) }, pd.method) }
		} else {
			run = func() bool { return k.runGuarded(t, pd) }
		}
		found := run()

		if pd.seq == ourSeq {
			ourFound = found
			if k.fault != nil {
				ourErr = &TransitionFailed{Fault: k.fault}
			}
		}
		if k.fault != nil {
			k.logger.error("hsm: dispatch stopped, kernel faulted", zap.String("fault_id", k.fault.ID))
			return ourFound, ourErr
		}
		if found && len(k.deferred) > 0 {
			k.queue = append(k.queue, k.deferred...)
			k.deferred = nil
		}
	}
	return ourFound, ourErr
}

// runGuarded runs a single dispatch's attempt, recovering any
// *StateMachineFault panic raised by the handler-calling helpers in
// dispatch.go and latching it on the kernel (spec.md §4.5). A deferred
// result (spec.md SUPPLEMENTED FEATURES, deferred events) re-queues the
// dispatch for retry after the next successful transition instead of
// dropping it.
func (k *Kernel) runGuarded(t *tree, pd *pendingDispatch) (found bool) {
	defer func() {
		if r := recover(); r != nil {
			k.captureFault(r)
			found = false
		}
	}()
	found, deferred := pd.attempt()
	if deferred {
		k.deferred = append(k.deferred, pd)
		return false
	}
	return found
}

func (k *Kernel) captureFault(r any) {
	if fault, ok := r.(*StateMachineFault); ok {
		fault.ID = newID()
		k.fault = fault
		return
	}
	k.fault = &StateMachineFault{
		ID:  newID(),
		Err: normalizeRecovered(r),
	}
}

// reset clears the fault and queue and recursively resets every machine in
// the tree, per spec.md §4.5: no handlers run.
func (k *Kernel) reset(t *tree) {
	action := func() {
		k.fault = nil
		k.queue = nil
		k.deferred = nil
		resetMachine(t, t.rootIdx(), true)
	}
	if k.synchronizer != nil {
		k.synchronizer.Reset(action)
	} else {
		action()
	}
	k.logger.info("hsm: reset", zap.String("kernel_id", k.id))
}

func resetMachine(t *tree, machineIdx int, parentActive bool) {
	m := t.machines[machineIdx]
	if parentActive && m.initial != -1 {
		m.current = m.initial
	} else {
		m.current = -1
	}
	for _, stateIdx := range m.states {
		if child := t.states[stateIdx].child; child != -1 {
			resetMachine(t, child, m.current == stateIdx)
		}
	}
}
