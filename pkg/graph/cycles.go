package graph

import (
	"sort"

	gonumgraph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// findCycle names the members of one dependency cycle among the declared
// nodes. Used only for diagnostics once TopoSort has already failed.
func findCycle[T any](nodes map[string]T, adj map[string][]string) []string {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	ids := make(map[string]int64, len(names))
	dg := simple.NewDirectedGraph()
	for i, name := range names {
		ids[name] = int64(i)
		dg.AddNode(simple.Node(i))
	}
	for origin, dependents := range adj {
		from, ok := ids[origin]
		if !ok {
			continue
		}
		for _, dependent := range dependents {
			to, ok := ids[dependent]
			if !ok {
				continue
			}
			if from == to {
				// Self-loop; a cycle of one.
				return []string{origin, origin}
			}
			dg.SetEdge(dg.NewEdge(simple.Node(from), simple.Node(to)))
		}
	}

	sccs := newSCCFinder(dg).find()
	if len(sccs) == 0 {
		return nil
	}

	members := make([]string, 0, len(sccs[0]))
	for _, id := range sccs[0] {
		members = append(members, names[id])
	}
	sort.Strings(members)
	return append(members, members[0])
}

// sccFinder finds strongly connected components using Tarjan's algorithm.
// Only components with more than one node are kept; those are the cycles.
type sccFinder struct {
	graph   gonumgraph.Directed
	index   int
	stack   []int64
	onStack map[int64]bool
	indices map[int64]int
	lowLink map[int64]int
	sccs    [][]int64
}

func newSCCFinder(g gonumgraph.Directed) *sccFinder {
	return &sccFinder{
		graph:   g,
		onStack: make(map[int64]bool),
		indices: make(map[int64]int),
		lowLink: make(map[int64]int),
	}
}

func (t *sccFinder) find() [][]int64 {
	nodes := t.graph.Nodes()
	for nodes.Next() {
		node := nodes.Node()
		if _, visited := t.indices[node.ID()]; !visited {
			t.strongConnect(node.ID())
		}
	}
	return t.sccs
}

func (t *sccFinder) strongConnect(nodeID int64) {
	t.indices[nodeID] = t.index
	t.lowLink[nodeID] = t.index
	t.index++

	t.stack = append(t.stack, nodeID)
	t.onStack[nodeID] = true

	successors := t.graph.From(nodeID)
	for successors.Next() {
		successorID := successors.Node().ID()

		if _, visited := t.indices[successorID]; !visited {
			t.strongConnect(successorID)
			t.lowLink[nodeID] = min(t.lowLink[nodeID], t.lowLink[successorID])
		} else if t.onStack[successorID] {
			t.lowLink[nodeID] = min(t.lowLink[nodeID], t.indices[successorID])
		}
	}

	if t.lowLink[nodeID] == t.indices[nodeID] {
		var scc []int64
		for {
			w := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == nodeID {
				break
			}
		}
		if len(scc) > 1 {
			t.sccs = append(t.sccs, scc)
		}
	}
}
