package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrTooComplex is returned when the declared nodes contain a dependency
// cycle. A partially ordered graph is never emitted; the build tool would
// silently get incremental rebuilds wrong.
var ErrTooComplex = errors.New("too complex build graph")

// TopoSort orders the declared nodes so that every node appears before its
// dependents. adj maps a node to the nodes that depend on it; edges whose
// origin is not a declared node are ignored. The order is deterministic for
// a given node and edge set regardless of declaration order: Kahn's
// algorithm, resolving ties lexicographically layer by layer.
func TopoSort[T any](nodes map[string]T, adj map[string][]string) ([]string, error) {
	inDegree := make(map[string]int, len(nodes))
	for name := range nodes {
		inDegree[name] = 0
	}
	for origin, dependents := range adj {
		if _, ok := nodes[origin]; !ok {
			continue // ignore edges from undeclared nodes
		}
		for _, dependent := range dependents {
			if _, ok := nodes[dependent]; ok {
				inDegree[dependent]++
			}
		}
	}

	var layer []string
	for name, deg := range inDegree {
		if deg == 0 {
			layer = append(layer, name)
		}
	}

	result := make([]string, 0, len(nodes))
	for len(layer) > 0 {
		sort.Strings(layer)
		var next []string
		for _, node := range layer {
			result = append(result, node)
			for _, dependent := range adj[node] {
				if _, ok := nodes[dependent]; !ok {
					continue
				}
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		layer = next
	}

	if len(result) != len(nodes) {
		// A cycle keeps some in-degree above zero.
		if cycle := findCycle(nodes, adj); len(cycle) > 0 {
			return nil, fmt.Errorf("%w: cycle through %s", ErrTooComplex, strings.Join(cycle, " -> "))
		}
		return nil, ErrTooComplex
	}
	return result, nil
}
