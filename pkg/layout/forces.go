package layout

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ritzau/callflow/pkg/logging"
)

// applyLinks pulls the endpoints of every edge towards the link distance.
// The correction is split between the endpoints by degree so hubs move less than leaves.
func (e *Engine) applyLinks() {
	for _, l := range e.links {
		s, t := &e.nodes[l.source], &e.nodes[l.target]
		if l.source == l.target {
			continue
		}

		x := t.x + t.vx - s.x - s.vx
		if x == 0 {
			x = e.jiggle()
		}
		y := t.y + t.vy - s.y - s.vy
		if y == 0 {
			y = e.jiggle()
		}

		d := math.Sqrt(x*x + y*y)
		if d == 0 {
			continue
		}
		k := (d - e.params.LinkDistance) / d * e.alpha * l.strength
		x *= k
		y *= k

		t.vx -= x * l.bias
		t.vy -= y * l.bias
		s.vx += x * (1 - l.bias)
		s.vy += y * (1 - l.bias)
	}
}

// applyCharge applies node-node repulsion, exact for small graphs and Barnes-Hut otherwise
func (e *Engine) applyCharge() {
	if len(e.nodes) < 2 || e.params.Charge == 0 {
		return
	}
	if len(e.nodes) <= e.params.ExactThreshold {
		e.chargeExact()
		return
	}
	if err := e.chargeApprox(); err != nil {
		logging.Debug("barnes-hut unavailable, using exact repulsion", "error", err, "nodes", len(e.nodes))
		e.chargeExact()
	}
}

// chargeExact computes repulsion for every pair of nodes
func (e *Engine) chargeExact() {
	dmin2 := e.params.DistanceMin * e.params.DistanceMin
	dmax2 := e.params.DistanceMax * e.params.DistanceMax
	scale := e.params.Charge * e.alpha

	// Forces are read from positions at the start of the pass
	fx := make([]float64, len(e.nodes))
	fy := make([]float64, len(e.nodes))

	for i := range e.nodes {
		for j := i + 1; j < len(e.nodes); j++ {
			x := e.nodes[j].x - e.nodes[i].x
			y := e.nodes[j].y - e.nodes[i].y
			if x == 0 {
				x = e.jiggle()
			}
			if y == 0 {
				y = e.jiggle()
			}

			d2 := x*x + y*y
			if d2 >= dmax2 {
				continue
			}
			if d2 < dmin2 {
				d2 = math.Sqrt(dmin2 * d2)
			}

			w := scale / d2
			fx[i] += x * w
			fy[i] += y * w
			fx[j] -= x * w
			fy[j] -= y * w
		}
	}

	for i := range e.nodes {
		e.nodes[i].vx += fx[i]
		e.nodes[i].vy += fy[i]
	}
}

// maxNudges bounds the attempts to move a coincident node to a free point
const maxNudges = 16

// errCoincident reports nodes that could not be separated, as happens when the
// jiggle is below the float spacing of their coordinates
var errCoincident = errors.New("coincident nodes could not be separated")

// body is a node as seen by the Barnes-Hut tree; every node has unit mass
type body struct {
	pos r2.Vec
}

func (b *body) Coord2() r2.Vec { return b.pos }
func (b *body) Mass() float64  { return 1 }

// chargeApprox approximates repulsion with a Barnes-Hut quadtree.
// Coincident nodes are nudged apart first since the tree cannot hold two particles at one point.
func (e *Engine) chargeApprox() error {
	bodies := make([]body, len(e.nodes))
	particles := make([]barneshut.Particle2, len(e.nodes))
	seen := make(map[r2.Vec]struct{}, len(e.nodes))

	for i, n := range e.nodes {
		p := r2.Vec{X: n.x, Y: n.y}
		for attempt := 0; ; attempt++ {
			if _, dup := seen[p]; !dup {
				break
			}
			if attempt == maxNudges {
				return errCoincident
			}
			p = r2.Add(p, r2.Vec{X: e.jiggle(), Y: e.jiggle()})
		}
		seen[p] = struct{}{}
		bodies[i].pos = p
		particles[i] = &bodies[i]
	}

	plane, err := barneshut.NewPlane(particles)
	if err != nil {
		return err
	}

	force := e.repulsion()
	for i := range bodies {
		f := plane.ForceOn(&bodies[i], e.params.Theta, force)
		e.nodes[i].vx += f.X
		e.nodes[i].vy += f.Y
	}
	return nil
}

// repulsion returns the pairwise charge law with the distance floor and cutoff applied.
// v points from the body the force acts on towards the other mass.
func (e *Engine) repulsion() barneshut.Force2 {
	dmin2 := e.params.DistanceMin * e.params.DistanceMin
	dmax2 := e.params.DistanceMax * e.params.DistanceMax
	scale := e.params.Charge * e.alpha

	return func(p1, p2 barneshut.Particle2, _, m2 float64, v r2.Vec) r2.Vec {
		if p2 != nil && p1 == p2 {
			return r2.Vec{}
		}
		d2 := r2.Norm2(v)
		if d2 == 0 || d2 >= dmax2 {
			return r2.Vec{}
		}
		if d2 < dmin2 {
			d2 = math.Sqrt(dmin2 * d2)
		}
		return r2.Scale(scale*m2/d2, v)
	}
}

// applyCenter translates every node so the centroid sits on the layout center
func (e *Engine) applyCenter() {
	if len(e.nodes) == 0 {
		return
	}
	var sx, sy float64
	for _, n := range e.nodes {
		sx += n.x
		sy += n.y
	}
	cx, cy := e.params.Center()
	dx := sx/float64(len(e.nodes)) - cx
	dy := sy/float64(len(e.nodes)) - cy

	for i := range e.nodes {
		e.nodes[i].x -= dx
		e.nodes[i].y -= dy
	}
}
