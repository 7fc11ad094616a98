package hsm

import "github.com/arborhsm/hsm/kind"

// tree is the per-machine-tree arena: states and machines are identified by
// stable indices into these slices rather than by pointers to each other,
// removing the machine<->state<->child-machine reference cycle spec.md §9
// calls out, and making reset/traversal allocation-free. The kernel is
// shared identity-equal across the whole tree (spec.md §3, "Ownership").
type tree struct {
	kernel   *Kernel
	machines []*machineNode
	states   []*stateNode

	nextEventID uint64
	eventNames  map[uint64]string
}

// anyEventID is reserved for the wildcard fallback pass (SPEC_FULL.md,
// "AnyEvent-style wildcard fallback"). Real events start at 1.
const anyEventID uint64 = 0

type machineNode struct {
	name        string
	parentState int // -1 for the root machine
	initial     int // -1 until CreateInitialState
	current     int // -1 while inactive
	states      []int
}

type stateNode struct {
	name     string
	owner    int // machine index
	child    int // -1 if this state owns no child machine
	entry    Handler
	exit     Handler
	outbound map[uint64]*transitionNode
	deferred map[uint64]bool
}

type transitionNode struct {
	kind     kind.Kind
	from     int // state index
	to       int // -1 for Dynamic, resolved at fire time
	selector Selector
	guard    Guard
	handler  Handler
	event    uint64
}

func newTree(name string, cfg Config) *tree {
	t := &tree{
		eventNames: map[uint64]string{anyEventID: "*"},
	}
	t.nextEventID = 1
	t.kernel = newKernel(cfg)
	t.machines = append(t.machines, &machineNode{
		name:        name,
		parentState: -1,
		initial:     -1,
		current:     -1,
	})
	return t
}

func (t *tree) rootIdx() int { return 0 }

func (t *tree) rootName() string { return t.machines[t.rootIdx()].name }

// parentStateOf returns the state that owns idx's machine, or -1 if idx's
// machine is the root. Climbing this repeatedly walks the composite spine
// "up" across nested machines, which is what spec.md §4.3's LCA/exit/entry
// algorithm operates over.
func (t *tree) parentStateOf(idx int) int {
	owner := t.states[idx].owner
	return t.machines[owner].parentState
}

func (t *tree) ancestorStates(idx int) []int {
	var chain []int
	for cur := idx; cur != -1; cur = t.parentStateOf(cur) {
		chain = append(chain, cur)
	}
	return chain
}

// lca computes the deepest state common to both spines, or -1 if the only
// common ancestor is the root machine itself (spec.md §4.3).
func (t *tree) lca(fromIdx, toIdx int) int {
	if fromIdx == toIdx {
		return t.parentStateOf(fromIdx)
	}
	ancestors := make(map[int]bool, 8)
	for _, a := range t.ancestorStates(fromIdx) {
		ancestors[a] = true
	}
	for cur := toIdx; cur != -1; cur = t.parentStateOf(cur) {
		if ancestors[cur] {
			return cur
		}
	}
	return -1
}

// pathFromTo returns, top-down, the states strictly between lcaIdx
// (exclusive) and toIdx (inclusive).
func (t *tree) pathFromTo(lcaIdx, toIdx int) []int {
	var rev []int
	for cur := toIdx; cur != lcaIdx; cur = t.parentStateOf(cur) {
		rev = append(rev, cur)
	}
	path := make([]int, len(rev))
	for i, v := range rev {
		path[len(rev)-1-i] = v
	}
	return path
}

// activeLeaf returns the deepest active state on the current chain, or -1
// if the root machine has no current state.
func (t *tree) activeLeaf() int {
	cur := t.machines[t.rootIdx()].current
	for cur != -1 {
		childMachine := t.states[cur].child
		if childMachine == -1 {
			return cur
		}
		childCur := t.machines[childMachine].current
		if childCur == -1 {
			return cur
		}
		cur = childCur
	}
	return -1
}

func (t *tree) setCurrent(stateIdx int) {
	owner := t.states[stateIdx].owner
	t.machines[owner].current = stateIdx
}

func (t *tree) rootActive() bool {
	return t.machines[t.rootIdx()].current != -1
}
