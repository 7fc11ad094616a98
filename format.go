package hsm

import (
	"fmt"
	"strings"
)

// ToString renders a summary of m's tree, one line per state followed by
// one line per outbound transition of that state, marking the active chain
// and indenting nested machines under the state that owns them. It is a direct diagnostic dump, not the reference library's
// general PlantUML/graph export.
func ToString(m Machine) string {
	var b strings.Builder
	root := m.TopmostMachine()
	fmt.Fprintf(&b, "machine %s\n", root.Name())
	writeMachine(&b, root.tree, root.idx, 1)
	return b.String()
}

func writeMachine(b *strings.Builder, t *tree, machineIdx int, depth int) {
	mach := t.machines[machineIdx]
	indent := strings.Repeat("  ", depth)
	for _, stateIdx := range mach.states {
		st := t.states[stateIdx]
		marker := " "
		if mach.current == stateIdx {
			marker = "*"
		}
		initial := ""
		if mach.initial == stateIdx {
			initial = " (initial)"
		}
		fmt.Fprintf(b, "%s%s%s%s\n", indent, marker, st.name, initial)
		for event, n := range st.outbound {
			fmt.Fprintf(b, "%s    on %s -> %s\n", indent, t.eventNames[event], transitionLabel(t, n))
		}
		if st.child != -1 {
			writeMachine(b, t, st.child, depth+1)
		}
	}
}

func transitionLabel(t *tree, n *transitionNode) string {
	if n.to == -1 {
		return "<dynamic>"
	}
	return t.states[n.to].name
}
