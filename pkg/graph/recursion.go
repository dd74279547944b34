package graph

import (
	"slices"

	"gonum.org/v1/gonum/graph/topo"
)

// RecursiveGroup is a set of functions that can reach each other through calls
type RecursiveGroup struct {
	Functions []string `json:"functions"` // Sorted function names in the group
}

// RecursiveGroups finds all direct and mutual recursion in the call graph.
// A group is a strongly connected component with more than one function, or a single
// function that calls itself.
func (cg *CallGraph) RecursiveGroups() []RecursiveGroup {
	groups := make([]RecursiveGroup, 0)

	for _, scc := range topo.TarjanSCC(cg.graph) {
		names := make([]string, 0, len(scc))
		for _, node := range scc {
			names = append(names, cg.names[node.ID()])
		}

		if len(names) == 1 && !cg.selfLoops[names[0]] {
			continue
		}

		slices.Sort(names)
		groups = append(groups, RecursiveGroup{Functions: names})
	}

	slices.SortFunc(groups, func(a, b RecursiveGroup) int {
		return slices.Compare(a.Functions, b.Functions)
	})
	return groups
}
