package graph

import (
	"slices"

	"github.com/ritzau/callflow/pkg/model"
	"gonum.org/v1/gonum/graph/simple"
)

// CallGraph is the immutable graph model for one rendering session: a set of function
// identifiers plus an ordered sequence of call edges, with a derived adjacency index.
type CallGraph struct {
	graph     *simple.DirectedGraph
	order     []string         // Node ids in input order
	ids       map[string]int64 // Map from node id to graph ID
	names     map[int64]string // Reverse of ids
	edges     []model.Link     // Validated edges in input order
	outgoing  map[string][]int // Map from source id to indices into edges
	selfLoops map[string]bool  // simple.DirectedGraph rejects self edges, so track them here
}

// Build creates a call graph from node identifiers and links.
// Links whose source or target is not in the node set are dropped; the number dropped is
// returned alongside the graph. Duplicate node identifiers collapse to one node.
func Build(nodes []string, links []model.Link) (*CallGraph, int) {
	cg := &CallGraph{
		graph:     simple.NewDirectedGraph(),
		order:     make([]string, 0, len(nodes)),
		ids:       make(map[string]int64, len(nodes)),
		names:     make(map[int64]string, len(nodes)),
		edges:     make([]model.Link, 0, len(links)),
		outgoing:  make(map[string][]int),
		selfLoops: make(map[string]bool),
	}

	for _, id := range nodes {
		cg.addNode(id)
	}

	dropped := 0
	for _, link := range links {
		if !cg.Has(link.Source) || !cg.Has(link.Target) {
			dropped++
			continue
		}
		cg.addEdge(link)
	}

	return cg, dropped
}

// FromPayload builds a call graph from a producer payload.
func FromPayload(p *model.Payload) (*CallGraph, int) {
	return Build(p.Nodes, p.Links)
}

func (cg *CallGraph) addNode(id string) {
	if _, exists := cg.ids[id]; exists {
		return
	}

	gid := int64(len(cg.order))
	cg.ids[id] = gid
	cg.names[gid] = id
	cg.order = append(cg.order, id)

	// Add node to gonum graph
	cg.graph.AddNode(simple.Node(gid))
}

func (cg *CallGraph) addEdge(link model.Link) {
	cg.outgoing[link.Source] = append(cg.outgoing[link.Source], len(cg.edges))
	cg.edges = append(cg.edges, link)

	if link.Source == link.Target {
		cg.selfLoops[link.Source] = true
		return
	}

	sourceID := cg.ids[link.Source]
	targetID := cg.ids[link.Target]

	// The edge list keeps duplicates; the adjacency index only needs one
	if !cg.graph.HasEdgeFromTo(sourceID, targetID) {
		cg.graph.SetEdge(cg.graph.NewEdge(cg.graph.Node(sourceID), cg.graph.Node(targetID)))
	}
}

// Has reports whether id is a node of the graph
func (cg *CallGraph) Has(id string) bool {
	_, exists := cg.ids[id]
	return exists
}

// Len returns the number of nodes
func (cg *CallGraph) Len() int {
	return len(cg.order)
}

// Nodes returns all node identifiers in input order
func (cg *CallGraph) Nodes() []string {
	return append([]string(nil), cg.order...)
}

// Edges returns all validated edges in input order
func (cg *CallGraph) Edges() []model.Link {
	return append([]model.Link(nil), cg.edges...)
}

// OutgoingEdges returns the edges whose source is id, in input order.
func (cg *CallGraph) OutgoingEdges(id string) []model.Link {
	indices := cg.outgoing[id]
	out := make([]model.Link, 0, len(indices))
	for _, i := range indices {
		out = append(out, cg.edges[i])
	}
	return out
}

// OutgoingOf returns the set of nodes reachable from id by one outgoing hop, sorted.
func (cg *CallGraph) OutgoingOf(id string) []string {
	gid, exists := cg.ids[id]
	if !exists {
		return nil
	}

	var out []string
	iter := cg.graph.From(gid)
	for iter.Next() {
		out = append(out, cg.names[iter.Node().ID()])
	}
	if cg.selfLoops[id] {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// IncomingOf returns the set of nodes that reach id by one hop, sorted.
func (cg *CallGraph) IncomingOf(id string) []string {
	gid, exists := cg.ids[id]
	if !exists {
		return nil
	}

	var in []string
	iter := cg.graph.To(gid)
	for iter.Next() {
		in = append(in, cg.names[iter.Node().ID()])
	}
	if cg.selfLoops[id] {
		in = append(in, id)
	}
	slices.Sort(in)
	return in
}

// NeighborsOf returns the direction-agnostic union of incoming and outgoing neighbors, sorted.
func (cg *CallGraph) NeighborsOf(id string) []string {
	neighbors := append(cg.OutgoingOf(id), cg.IncomingOf(id)...)
	slices.Sort(neighbors)
	return slices.Compact(neighbors)
}

// IsConnected reports whether a and b are the same node or joined by an edge in either direction.
func (cg *CallGraph) IsConnected(a, b string) bool {
	if a == b {
		return cg.Has(a)
	}
	aid, aok := cg.ids[a]
	bid, bok := cg.ids[b]
	if !aok || !bok {
		return false
	}
	return cg.graph.HasEdgeBetween(aid, bid)
}
