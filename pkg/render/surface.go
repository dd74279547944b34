package render

import (
	"github.com/ritzau/callflow/pkg/layout"
	"github.com/ritzau/callflow/pkg/lens"
)

const (
	NodeRadius     = 10.0
	LabelOffsetX   = 12.0
	FullOpacity    = 1.0
	EdgeOpacity    = 0.6
	DimmedOpacity  = 0.1
	labelFontSize  = 10
	labelBaselineY = 3.5 // .35em at the label font size
)

// Node is the circle drawn for one function
type Node struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Radius   float64 `json:"r"`
	Opacity  float64 `json:"opacity"`
	Pinned   bool    `json:"pinned,omitempty"`
	Dragging bool    `json:"dragging,omitempty"`
}

// Edge is the line drawn for one call
type Edge struct {
	Key     string  `json:"key"`
	Source  string  `json:"source"`
	Target  string  `json:"target"`
	X1      float64 `json:"x1"`
	Y1      float64 `json:"y1"`
	X2      float64 `json:"x2"`
	Y2      float64 `json:"y2"`
	Opacity float64 `json:"opacity"`
}

// Label is the function name drawn next to its node
type Label struct {
	ID      string  `json:"id"`
	Text    string  `json:"text"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Opacity float64 `json:"opacity"`
}

// Styler decides the emphasis of primitives
type Styler interface {
	NodeOpacity(id string) float64
	EdgeOpacity(source, target string) float64
}

// Frame is a self-contained copy of everything needed to draw one tick
type Frame struct {
	Tick      uint64    `json:"tick"`
	Alpha     float64   `json:"alpha"`
	Phase     string    `json:"phase"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	Transform Transform `json:"transform"`
	Selected  string    `json:"selected,omitempty"`
	Nodes     []Node    `json:"nodes"`
	Edges     []Edge    `json:"edges"`
	Labels    []Label   `json:"labels"`
}

// Surface holds the primitive set for the current graph, keyed by identity.
// Primitives of identities that stay present are kept across reconciles, so emphasis and
// drag flags survive structural changes.
type Surface struct {
	width, height float64
	viewport      *Viewport

	nodes     map[string]*Node
	edges     map[string]*Edge
	labels    map[string]*Label
	nodeOrder []string
	edgeOrder []string

	current *lens.GraphSnapshot
	styler  Styler

	tick  uint64
	alpha float64
	phase string
}

// NewSurface creates an empty surface of the given size
func NewSurface(width, height, zoomMin, zoomMax float64) *Surface {
	return &Surface{
		width:    width,
		height:   height,
		viewport: NewViewport(zoomMin, zoomMax),
		nodes:    make(map[string]*Node),
		edges:    make(map[string]*Edge),
		labels:   make(map[string]*Label),
		phase:    layout.PhaseSettled.String(),
	}
}

// Viewport returns the surface's pan/zoom state
func (s *Surface) Viewport() *Viewport {
	return s.viewport
}

// Reconcile brings the primitive set in line with a subgraph: primitives of vanished
// identities are removed, new identities get fresh primitives, everything else is retained.
func (s *Surface) Reconcile(sub *lens.Subgraph) *lens.GraphDiff {
	next := lens.CreateSnapshot(sub)
	diff := lens.ComputeDiff(s.current, next)

	for _, id := range diff.RemovedNodes {
		delete(s.nodes, id)
		delete(s.labels, id)
	}
	for _, key := range diff.RemovedEdges {
		delete(s.edges, key)
	}

	for _, id := range diff.AddedNodes {
		n := &Node{ID: id, Radius: NodeRadius, Opacity: FullOpacity}
		l := &Label{ID: id, Text: id, Opacity: FullOpacity}
		if s.styler != nil {
			n.Opacity = s.styler.NodeOpacity(id)
			l.Opacity = n.Opacity
		}
		s.nodes[id] = n
		s.labels[id] = l
	}
	for _, edge := range diff.AddedEdges {
		e := &Edge{Key: edge.Key, Source: edge.Source, Target: edge.Target, Opacity: EdgeOpacity}
		if s.styler != nil {
			e.Opacity = s.styler.EdgeOpacity(edge.Source, edge.Target)
		}
		s.edges[edge.Key] = e
	}

	s.nodeOrder = append(s.nodeOrder[:0], next.NodeOrder...)
	s.edgeOrder = append(s.edgeOrder[:0], next.EdgeOrder...)
	s.current = next
	return diff
}

// Apply moves every primitive to the positions of one engine snapshot
func (s *Surface) Apply(snap *layout.Snapshot) {
	s.tick = snap.Tick
	s.alpha = snap.Alpha
	s.phase = snap.Phase

	for id, n := range s.nodes {
		p, ok := snap.Positions[id]
		if !ok {
			continue
		}
		n.X, n.Y, n.Pinned = p.X, p.Y, p.Pinned
		l := s.labels[id]
		l.X = p.X + LabelOffsetX
		l.Y = p.Y + labelBaselineY
	}

	for _, e := range s.edges {
		if src, ok := s.nodes[e.Source]; ok {
			e.X1, e.Y1 = src.X, src.Y
		}
		if dst, ok := s.nodes[e.Target]; ok {
			e.X2, e.Y2 = dst.X, dst.Y
		}
	}
}

// Restyle sets the emphasis of every primitive. A nil styler restores full emphasis.
// The styler is remembered and applied to primitives created by later reconciles.
func (s *Surface) Restyle(styler Styler) {
	s.styler = styler
	for id, n := range s.nodes {
		n.Opacity = FullOpacity
		if styler != nil {
			n.Opacity = styler.NodeOpacity(id)
		}
		s.labels[id].Opacity = n.Opacity
	}
	for _, e := range s.edges {
		e.Opacity = EdgeOpacity
		if styler != nil {
			e.Opacity = styler.EdgeOpacity(e.Source, e.Target)
		}
	}
}

// SetDragging flags a node primitive as being dragged
func (s *Surface) SetDragging(id string, dragging bool) {
	if n, ok := s.nodes[id]; ok {
		n.Dragging = dragging
	}
}

// HitNode returns the top-most node under a screen point
func (s *Surface) HitNode(sx, sy float64) (string, bool) {
	lx, ly := s.viewport.ToLayout(sx, sy)
	// Later nodes are drawn on top
	for i := len(s.nodeOrder) - 1; i >= 0; i-- {
		n := s.nodes[s.nodeOrder[i]]
		dx, dy := lx-n.X, ly-n.Y
		if dx*dx+dy*dy <= n.Radius*n.Radius {
			return n.ID, true
		}
	}
	return "", false
}

// Node returns a copy of one node primitive
func (s *Surface) Node(id string) (Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Edge returns a copy of one edge primitive
func (s *Surface) Edge(key string) (Edge, bool) {
	e, ok := s.edges[key]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// Label returns a copy of one label primitive
func (s *Surface) Label(id string) (Label, bool) {
	l, ok := s.labels[id]
	if !ok {
		return Label{}, false
	}
	return *l, true
}

// Len returns the number of node and edge primitives
func (s *Surface) Len() (nodes, edges int) {
	return len(s.nodes), len(s.edges)
}

// Frame copies the current primitives in draw order
func (s *Surface) Frame() *Frame {
	f := &Frame{
		Tick:      s.tick,
		Alpha:     s.alpha,
		Phase:     s.phase,
		Width:     s.width,
		Height:    s.height,
		Transform: s.viewport.Transform(),
		Nodes:     make([]Node, 0, len(s.nodeOrder)),
		Edges:     make([]Edge, 0, len(s.edgeOrder)),
		Labels:    make([]Label, 0, len(s.nodeOrder)),
	}
	for _, key := range s.edgeOrder {
		f.Edges = append(f.Edges, *s.edges[key])
	}
	for _, id := range s.nodeOrder {
		f.Nodes = append(f.Nodes, *s.nodes[id])
		f.Labels = append(f.Labels, *s.labels[id])
	}
	return f
}
