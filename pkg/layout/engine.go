package layout

import (
	"math"
	"math/rand/v2"

	"github.com/ritzau/callflow/pkg/logging"
	"github.com/ritzau/callflow/pkg/model"
)

// Phase is the engine's position in its cooling cycle
type Phase int

const (
	PhaseSeeded  Phase = iota // Positions assigned, no tick run yet
	PhaseRunning              // Energy above the settle threshold
	PhaseSettled              // Energy below the threshold; ticking is a no-op until reheat
)

func (p Phase) String() string {
	switch p {
	case PhaseSeeded:
		return "seeded"
	case PhaseRunning:
		return "running"
	case PhaseSettled:
		return "settled"
	default:
		return "unknown"
	}
}

const (
	initialRadius = 10.0
	jiggleScale   = 1e-6
)

var initialAngle = math.Pi * (3 - math.Sqrt(5))

// nodeState is the mutable layout record of one node
type nodeState struct {
	id     string
	x, y   float64
	vx, vy float64
	pinned bool
	fx, fy float64
}

// link is an edge resolved to arena indices
type link struct {
	source, target int
	strength       float64
	bias           float64
}

// Engine is the force simulation. It owns one position record per node, stored in an arena
// indexed by node id; input graph data is never mutated.
// An Engine is not safe for concurrent use; the session loop is its only caller.
type Engine struct {
	params Params

	nodes []nodeState
	index map[string]int
	links []link

	alpha       float64
	alphaTarget float64
	phase       Phase
	ticks       uint64

	rng *rand.Rand
}

// NewEngine creates an empty engine
func NewEngine(params Params) *Engine {
	return &Engine{
		params: params,
		index:  make(map[string]int),
		alpha:  1,
		phase:  PhaseSettled,
		rng:    rand.New(rand.NewPCG(params.Seed, params.Seed^0x9e3779b97f4a7c15)),
	}
}

// SetGraph replaces the simulated node and edge set.
// Nodes already known keep their position, velocity and pin; new nodes are seeded on a
// phyllotaxis spiral around the center; nodes no longer present are forgotten.
// Links referencing unknown nodes are ignored. The energy is reset to 1.
func (e *Engine) SetGraph(nodes []string, edges []model.Link) {
	old := e.nodes
	oldIndex := e.index

	e.nodes = make([]nodeState, 0, len(nodes))
	e.index = make(map[string]int, len(nodes))

	cx, cy := e.params.Center()
	retained := 0
	for _, id := range nodes {
		if _, dup := e.index[id]; dup {
			continue
		}
		i := len(e.nodes)
		e.index[id] = i

		if j, ok := oldIndex[id]; ok {
			e.nodes = append(e.nodes, old[j])
			retained++
			continue
		}

		radius := initialRadius * math.Sqrt(0.5+float64(i))
		angle := float64(i) * initialAngle
		e.nodes = append(e.nodes, nodeState{
			id: id,
			x:  cx + radius*math.Cos(angle),
			y:  cy + radius*math.Sin(angle),
		})
	}

	e.links = e.resolveLinks(edges)

	e.alpha = 1
	e.ticks = 0
	e.phase = PhaseSeeded
	if len(e.nodes) == 0 {
		e.phase = PhaseSettled
	}

	logging.Debug("layout graph set",
		"nodes", len(e.nodes), "links", len(e.links), "retained", retained)
}

// resolveLinks maps edges to arena indices and precomputes strength and bias
func (e *Engine) resolveLinks(edges []model.Link) []link {
	count := make([]int, len(e.nodes))
	resolved := make([]link, 0, len(edges))

	for _, edge := range edges {
		s, sok := e.index[edge.Source]
		t, tok := e.index[edge.Target]
		if !sok || !tok {
			continue
		}
		count[s]++
		count[t]++
		resolved = append(resolved, link{source: s, target: t})
	}

	for i := range resolved {
		l := &resolved[i]
		cs, ct := float64(count[l.source]), float64(count[l.target])
		l.bias = cs / (cs + ct)
		if e.params.LinkStrength > 0 {
			l.strength = e.params.LinkStrength
		} else {
			l.strength = 1 / math.Min(cs, ct)
		}
	}
	return resolved
}

// Tick advances the simulation by one step and reports whether it is still running.
// A settled engine does nothing until it is reheated.
func (e *Engine) Tick() bool {
	if e.phase == PhaseSettled {
		return false
	}
	e.phase = PhaseRunning

	e.alpha += (e.alphaTarget - e.alpha) * e.params.AlphaDecay

	e.applyLinks()
	e.applyCharge()
	e.applyCenter()
	e.integrate()
	e.ticks++

	if e.alpha < e.params.AlphaMin && e.alphaTarget < e.params.AlphaMin {
		e.phase = PhaseSettled
		logging.Debug("layout settled", "ticks", e.ticks, "nodes", len(e.nodes))
	}
	return e.phase != PhaseSettled
}

// integrate applies velocity decay and moves every free node; pinned nodes snap to their pin
func (e *Engine) integrate() {
	keep := 1 - e.params.VelocityDecay
	for i := range e.nodes {
		n := &e.nodes[i]
		if n.pinned {
			n.x, n.y = n.fx, n.fy
			n.vx, n.vy = 0, 0
			continue
		}
		n.vx *= keep
		n.vy *= keep
		n.x += n.vx
		n.y += n.vy
	}
}

// SetAlphaTarget sets the level the energy decays towards. A target above the settle
// threshold restarts a settled engine.
func (e *Engine) SetAlphaTarget(target float64) {
	e.alphaTarget = target
	if target >= e.params.AlphaMin && len(e.nodes) > 0 {
		e.phase = PhaseRunning
	}
}

// Reheat raises the energy to at least the reheat level and holds it there until Cool is called
func (e *Engine) Reheat() {
	if len(e.nodes) == 0 {
		return
	}
	e.SetAlphaTarget(e.params.ReheatAlpha)
	e.alpha = math.Max(e.alpha, e.params.ReheatAlpha)
}

// Cool lets the energy decay to zero again without forcing it down
func (e *Engine) Cool() {
	e.SetAlphaTarget(0)
}

// Pin fixes a node at (x, y). The node moves there immediately and stays until Unpin.
func (e *Engine) Pin(id string, x, y float64) bool {
	i, ok := e.index[id]
	if !ok {
		return false
	}
	n := &e.nodes[i]
	n.pinned = true
	n.fx, n.fy = x, y
	n.x, n.y = x, y
	n.vx, n.vy = 0, 0
	return true
}

// Unpin releases a node; it keeps its current position and rejoins the simulation
func (e *Engine) Unpin(id string) bool {
	i, ok := e.index[id]
	if !ok {
		return false
	}
	e.nodes[i].pinned = false
	return true
}

// Position returns the current position of a node
func (e *Engine) Position(id string) (float64, float64, bool) {
	i, ok := e.index[id]
	if !ok {
		return 0, 0, false
	}
	return e.nodes[i].x, e.nodes[i].y, true
}

// Pinned reports whether a node is pinned
func (e *Engine) Pinned(id string) bool {
	i, ok := e.index[id]
	return ok && e.nodes[i].pinned
}

// Alpha returns the current energy
func (e *Engine) Alpha() float64 {
	return e.alpha
}

// Phase returns the current cooling phase
func (e *Engine) Phase() Phase {
	return e.phase
}

// Running reports whether Tick would advance the simulation
func (e *Engine) Running() bool {
	return e.phase != PhaseSettled
}

// Len returns the number of simulated nodes
func (e *Engine) Len() int {
	return len(e.nodes)
}

// Snapshot copies the current positions. The result shares nothing with the engine.
func (e *Engine) Snapshot() *Snapshot {
	s := &Snapshot{
		Tick:      e.ticks,
		Alpha:     e.alpha,
		Phase:     e.phase.String(),
		Positions: make(map[string]Position, len(e.nodes)),
	}
	for _, n := range e.nodes {
		s.Positions[n.id] = Position{X: n.x, Y: n.y, Pinned: n.pinned}
	}
	return s
}

// jiggle returns a tiny random offset used to separate coincident nodes
func (e *Engine) jiggle() float64 {
	return (e.rng.Float64() - 0.5) * jiggleScale
}
