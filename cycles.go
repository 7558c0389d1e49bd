// SPDX-License-Identifier: MIT

package unitd

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// CirclesFound is the sanity error returned when the before/after graph
// contains one or more cycles (spec §4.2 step 7, §8 property 3): every
// distinct minimal simple cycle is reported, not just the first found.
type CirclesFound struct {
	Cycles [][]UnitId
}

func (e *CirclesFound) Error() string {
	parts := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		names := make([]string, len(c))
		for j, id := range c {
			names[j] = id.Name
		}
		parts[i] = "[" + strings.Join(names, " -> ") + "]"
	}
	return fmt.Sprintf("%d dependency cycle(s) found: %s", len(e.Cycles), strings.Join(parts, ", "))
}

// detectCycles enumerates every distinct minimal simple cycle in the
// before/after graph (edges read from `before`, since `before` and `after`
// are kept symmetric by Resolve). It uses straightforward DFS-based cycle
// enumeration: Tarjan SCC would find which units participate in a cycle,
// not each individual minimal cycle, which is what spec §8 property 3
// requires ("report all distinct cycles").
func detectCycles(units map[UnitId]*Unit) [][]UnitId {
	var cycles [][]UnitId
	seen := map[uint64]struct{}{} // dedup by rotation-invariant hash

	var stack []UnitId
	onStack := map[UnitId]int{} // id -> index in stack

	var visit func(id UnitId)
	visit = func(id UnitId) {
		if idx, already := onStack[id]; already {
			cycle := append([]UnitId(nil), stack[idx:]...)
			if h := cycleKey(cycle); markSeen(seen, h) {
				cycles = append(cycles, cycle)
			}
			return
		}
		stack = append(stack, id)
		onStack[id] = len(stack) - 1
		for _, next := range units[id].Deps().Before() {
			if _, ok := units[next]; ok {
				visit(next)
			}
		}
		stack = stack[:len(stack)-1]
		delete(onStack, id)
	}

	for id := range units {
		visit(id)
	}
	return cycles
}

// cycleKey hashes a cycle's participant set (order-independent, since the
// same cycle can be discovered starting from any of its members) so
// identical cycles found via different DFS starting points are reported
// only once.
func cycleKey(cycle []UnitId) uint64 {
	var h uint64
	for _, id := range cycle {
		d := xxhash.New()
		_, _ = d.WriteString(id.Name)
		h ^= d.Sum64()
	}
	return h
}

func markSeen(seen map[uint64]struct{}, h uint64) bool {
	if _, ok := seen[h]; ok {
		return false
	}
	seen[h] = struct{}{}
	return true
}
