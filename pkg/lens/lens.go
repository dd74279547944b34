package lens

import "github.com/ritzau/callflow/pkg/model"

// Subgraph is a node and edge set selected from a call graph.
// It is always freshly allocated and never shares backing arrays with its source.
type Subgraph struct {
	Nodes []string     `json:"nodes"`
	Edges []model.Link `json:"links"`
}

// NewSubgraph creates an empty subgraph
func NewSubgraph() *Subgraph {
	return &Subgraph{
		Nodes: make([]string, 0),
		Edges: make([]model.Link, 0),
	}
}

// Full copies every node and edge of a graph source into a subgraph
func Full(g Source) *Subgraph {
	return &Subgraph{
		Nodes: g.Nodes(),
		Edges: g.Edges(),
	}
}

// Source is the read side of the graph model needed for extraction
type Source interface {
	Has(id string) bool
	Nodes() []string
	Edges() []model.Link
	OutgoingEdges(id string) []model.Link
}
