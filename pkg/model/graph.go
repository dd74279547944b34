package model

// Payload is the graph document exchanged with the call graph producer.
// Summaries are carried along for display and never interpreted by the layout core.
type Payload struct {
	Nodes     []string          `json:"nodes"`
	Links     []Link            `json:"links"`
	Summaries map[string]string `json:"summaries,omitempty"`
}

// NewPayload creates a new empty payload.
func NewPayload() *Payload {
	return &Payload{
		Nodes:     make([]string, 0),
		Links:     make([]Link, 0),
		Summaries: make(map[string]string),
	}
}

// Link is a directed call edge: Source calls Target.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// AddNode appends a node identifier.
func (p *Payload) AddNode(id string) {
	p.Nodes = append(p.Nodes, id)
}

// AddLink appends a call edge.
func (p *Payload) AddLink(source, target string) {
	p.Links = append(p.Links, Link{Source: source, Target: target})
}

// Clone returns a deep copy so callers can hand the payload across goroutines.
func (p *Payload) Clone() *Payload {
	out := &Payload{
		Nodes:     append([]string(nil), p.Nodes...),
		Links:     append([]Link(nil), p.Links...),
		Summaries: make(map[string]string, len(p.Summaries)),
	}
	for id, text := range p.Summaries {
		out.Summaries[id] = text
	}
	return out
}
