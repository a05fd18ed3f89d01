package isg

import (
	"sort"
	"time"
)

// FindCycles returns the strongly connected components of the graph
// restricted to the relation kinds chosen with WithCycleKinds (Calls and Uses
// by default). A component is reported when it has more than one member or
// when its single member has an edge to itself. Members are ordered by name
// and the components by their first member, so output is stable across runs.
// An acyclic graph yields an empty, non-nil slice.
func (g *Graph) FindCycles() [][]Fingerprint {
	start := time.Now()
	g.mu.RLock()
	components := g.store.stronglyConnected(g.cycleKinds)
	g.mu.RUnlock()

	for _, comp := range components {
		sortRecords(comp)
	}
	sort.Slice(components, func(i, j int) bool {
		return recordLess(components[i][0], components[j][0])
	})

	out := make([][]Fingerprint, 0, len(components))
	for _, comp := range components {
		fps := make([]Fingerprint, len(comp))
		for i, rec := range comp {
			fps[i] = rec.Fingerprint
		}
		out = append(out, fps)
	}
	recordQueryMetrics("find_cycles", start, len(out))
	return out
}

// stronglyConnected runs Tarjan's algorithm with an explicit call stack so
// deep call chains cannot overflow the goroutine stack.
func (s *graphStore) stronglyConnected(follow [len(relationKindNames)]bool) [][]EntityRecord {
	n := len(s.slots)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}

	type frame struct {
		v    uint32
		next int
	}

	var (
		stack   []uint32
		result  [][]EntityRecord
		counter int
	)

	visit := func(v uint32) {
		index[v] = counter
		low[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true
	}

	for root := 0; root < n; root++ {
		if !s.slots[root].live || index[root] >= 0 {
			continue
		}
		visit(uint32(root))
		calls := []frame{{v: uint32(root)}}

		for len(calls) > 0 {
			top := &calls[len(calls)-1]
			v := top.v
			vid := nodeID{index: v, gen: s.slots[v].gen}
			out := s.slots[v].out

			if top.next < len(out) {
				w := out[top.next]
				top.next++
				if !follow[s.edges[edgeKey{from: vid, to: w}]] {
					continue
				}
				if index[w.index] < 0 {
					visit(w.index)
					calls = append(calls, frame{v: w.index})
				} else if onStack[w.index] && index[w.index] < low[v] {
					low[v] = index[w.index]
				}
				continue
			}

			if low[v] == index[v] {
				var comp []EntityRecord
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					comp = append(comp, s.slots[w].record)
					if w == v {
						break
					}
				}
				if len(comp) > 1 || s.hasSelfEdge(vid, follow) {
					result = append(result, comp)
				}
			}

			calls = calls[:len(calls)-1]
			if len(calls) > 0 {
				p := calls[len(calls)-1].v
				if low[v] < low[p] {
					low[p] = low[v]
				}
			}
		}
	}
	return result
}

func (s *graphStore) hasSelfEdge(id nodeID, follow [len(relationKindNames)]bool) bool {
	kind, ok := s.edges[edgeKey{from: id, to: id}]
	return ok && follow[kind]
}
