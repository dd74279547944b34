package lens

// distanceQueueNode represents a node in the BFS queue
type distanceQueueNode struct {
	nodeID   string
	distance int
}

// ExtractReachable returns the forward-reachability subgraph of start: every node reachable by
// following outgoing edges zero or more times, and every edge whose source is one of those nodes.
// An unknown start yields an empty subgraph.
func ExtractReachable(g Source, start string) *Subgraph {
	sub := NewSubgraph()
	if !g.Has(start) {
		return sub
	}

	visited := make(map[string]bool)
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited[current] {
			continue
		}
		visited[current] = true
		sub.Nodes = append(sub.Nodes, current)

		for _, edge := range g.OutgoingEdges(current) {
			sub.Edges = append(sub.Edges, edge)
			if !visited[edge.Target] {
				queue = append(queue, edge.Target)
			}
		}
	}

	return sub
}

// ComputeDistances calculates the number of call hops from start to each reachable node.
// Nodes that cannot be reached are absent from the result.
func ComputeDistances(g Source, start string) map[string]int {
	distances := make(map[string]int)
	if !g.Has(start) {
		return distances
	}

	distances[start] = 0
	queue := []distanceQueueNode{{nodeID: start, distance: 0}}

	// BFS traversal
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, edge := range g.OutgoingEdges(current.nodeID) {
			if _, exists := distances[edge.Target]; !exists {
				newDistance := current.distance + 1
				distances[edge.Target] = newDistance
				queue = append(queue, distanceQueueNode{nodeID: edge.Target, distance: newDistance})
			}
		}
	}

	return distances
}
