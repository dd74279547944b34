package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ritzau/callflow/pkg/layout"
	"github.com/ritzau/callflow/pkg/lens"
	"github.com/ritzau/callflow/pkg/model"
)

func sub(nodes []string, pairs ...string) *lens.Subgraph {
	s := &lens.Subgraph{Nodes: nodes}
	for i := 0; i+1 < len(pairs); i += 2 {
		s.Edges = append(s.Edges, model.Link{Source: pairs[i], Target: pairs[i+1]})
	}
	return s
}

func snapshot(positions map[string]layout.Position) *layout.Snapshot {
	return &layout.Snapshot{Tick: 1, Alpha: 0.5, Phase: "running", Positions: positions}
}

type dimAllBut string

func (d dimAllBut) NodeOpacity(id string) float64 {
	if id == string(d) {
		return FullOpacity
	}
	return DimmedOpacity
}

func (d dimAllBut) EdgeOpacity(source, target string) float64 {
	if source == string(d) || target == string(d) {
		return FullOpacity
	}
	return DimmedOpacity
}

func TestReconcileRetainsPrimitives(t *testing.T) {
	s := NewSurface(600, 400, 0.1, 8)
	diff := s.Reconcile(sub([]string{"a", "b", "c"}, "a", "b", "b", "c"))
	if !diff.FullGraph || len(diff.AddedNodes) != 3 || len(diff.AddedEdges) != 2 {
		t.Fatalf("Unexpected first diff: %+v", diff)
	}

	s.SetDragging("b", true)
	before := s.nodes["b"]

	diff = s.Reconcile(sub([]string{"b", "c", "d"}, "b", "c", "c", "d"))

	if len(diff.AddedNodes) != 1 || diff.AddedNodes[0] != "d" {
		t.Errorf("Expected d added, got %v", diff.AddedNodes)
	}
	if len(diff.RemovedNodes) != 1 || diff.RemovedNodes[0] != "a" {
		t.Errorf("Expected a removed, got %v", diff.RemovedNodes)
	}
	if len(diff.RemovedEdges) != 1 || diff.RemovedEdges[0] != "a|b|0" {
		t.Errorf("Expected edge a|b|0 removed, got %v", diff.RemovedEdges)
	}
	if s.nodes["b"] != before {
		t.Error("Retained node primitive was recreated")
	}
	if !s.nodes["b"].Dragging {
		t.Error("Drag flag lost across reconcile")
	}
	if _, ok := s.Label("a"); ok {
		t.Error("Label of removed node should be gone")
	}
	if n, e := s.Len(); n != 3 || e != 2 {
		t.Errorf("Expected 3 nodes and 2 edges, got %d and %d", n, e)
	}
}

func TestReconcileDuplicateEdges(t *testing.T) {
	s := NewSurface(600, 400, 0.1, 8)
	s.Reconcile(sub([]string{"a", "b"}, "a", "b", "a", "b"))
	if _, e := s.Len(); e != 2 {
		t.Fatalf("Expected both calls to keep a primitive, got %d", e)
	}

	diff := s.Reconcile(sub([]string{"a", "b"}, "a", "b"))
	if len(diff.RemovedEdges) != 1 || diff.RemovedEdges[0] != "a|b|1" {
		t.Errorf("Expected second call removed, got %v", diff.RemovedEdges)
	}
}

func TestApplyPositionsPrimitives(t *testing.T) {
	s := NewSurface(600, 400, 0.1, 8)
	s.Reconcile(sub([]string{"a", "b"}, "a", "b"))
	s.Apply(snapshot(map[string]layout.Position{
		"a": {X: 10, Y: 20},
		"b": {X: 30, Y: 40, Pinned: true},
	}))

	b, _ := s.Node("b")
	if b.X != 30 || b.Y != 40 || !b.Pinned {
		t.Errorf("Unexpected node b: %+v", b)
	}
	e, _ := s.Edge("a|b|0")
	if e.X1 != 10 || e.Y1 != 20 || e.X2 != 30 || e.Y2 != 40 {
		t.Errorf("Edge endpoints not following nodes: %+v", e)
	}
	l, _ := s.Label("a")
	if l.X != 10+LabelOffsetX {
		t.Errorf("Expected label offset %g, got %g", 10+LabelOffsetX, l.X)
	}

	f := s.Frame()
	if f.Tick != 1 || f.Phase != "running" {
		t.Errorf("Frame should carry snapshot tick and phase, got %d %s", f.Tick, f.Phase)
	}
}

func TestRestyle(t *testing.T) {
	s := NewSurface(600, 400, 0.1, 8)
	s.Reconcile(sub([]string{"a", "b", "c"}, "a", "b", "b", "c"))

	s.Restyle(dimAllBut("a"))
	if n, _ := s.Node("c"); n.Opacity != DimmedOpacity {
		t.Errorf("Expected c dimmed, got %g", n.Opacity)
	}
	if l, _ := s.Label("c"); l.Opacity != DimmedOpacity {
		t.Errorf("Expected label c dimmed, got %g", l.Opacity)
	}
	if e, _ := s.Edge("a|b|0"); e.Opacity != FullOpacity {
		t.Errorf("Expected a->b emphasized, got %g", e.Opacity)
	}

	// New primitives pick up the active style
	s.Reconcile(sub([]string{"a", "b", "c", "d"}, "a", "b", "b", "c"))
	if n, _ := s.Node("d"); n.Opacity != DimmedOpacity {
		t.Errorf("Expected new node d dimmed, got %g", n.Opacity)
	}

	s.Restyle(nil)
	for _, n := range s.Frame().Nodes {
		if n.Opacity != FullOpacity {
			t.Errorf("Node %s not restored: %g", n.ID, n.Opacity)
		}
	}
	for _, e := range s.Frame().Edges {
		if e.Opacity != EdgeOpacity {
			t.Errorf("Edge %s not restored: %g", e.Key, e.Opacity)
		}
	}
}

func TestHitNode(t *testing.T) {
	s := NewSurface(600, 400, 0.1, 8)
	s.Reconcile(sub([]string{"a", "b"}))
	s.Apply(snapshot(map[string]layout.Position{
		"a": {X: 100, Y: 100},
		"b": {X: 105, Y: 100},
	}))

	if id, ok := s.HitNode(106, 100); !ok || id != "b" {
		t.Errorf("Expected top-most node b, got %q %v", id, ok)
	}
	if _, ok := s.HitNode(300, 300); ok {
		t.Error("Expected miss on empty space")
	}

	s.Viewport().ZoomAt(2, 0, 0)
	if id, ok := s.HitNode(185, 200); !ok || id != "a" {
		t.Errorf("Expected a under zoomed point, got %q %v", id, ok)
	}
}

func TestWriteSVG(t *testing.T) {
	s := NewSurface(600, 400, 0.1, 8)
	s.Reconcile(sub([]string{"main", "a<b>"}, "main", "a<b>"))
	s.Apply(snapshot(map[string]layout.Position{"main": {X: 1, Y: 2}, "a<b>": {X: 3, Y: 4}}))
	s.Viewport().Pan(5, 6)

	var buf bytes.Buffer
	if err := s.WriteSVG(&buf); err != nil {
		t.Fatalf("WriteSVG() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`<svg xmlns="http://www.w3.org/2000/svg" width="600" height="400"`,
		`<g transform="translate(5,6) scale(1)">`,
		`<line x1="1.00" y1="2.00" x2="3.00" y2="4.00"`,
		`>a&lt;b&gt;</text>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in SVG:\n%s", want, out)
		}
	}
	if strings.Count(out, "transform=") != 1 {
		t.Error("Transform should be applied once on the container")
	}
}
