package layout

import (
	"math"

	"github.com/ritzau/callflow/pkg/config"
)

// Params configures the force simulation.
// The defaults reproduce the classic d3 force layout used for call graphs:
// link distance 100, charge -400, centered in a 600x400 canvas.
type Params struct {
	Width  float64
	Height float64

	LinkDistance float64
	// LinkStrength overrides the per-link strength; 0 uses 1/min(degree(source), degree(target)).
	LinkStrength float64

	Charge      float64 // Negative values repel
	Theta       float64 // Barnes-Hut opening criterion
	DistanceMin float64 // Repulsion distance floor
	DistanceMax float64 // Repulsion cutoff, +Inf for none

	AlphaMin      float64
	AlphaDecay    float64
	VelocityDecay float64
	ReheatAlpha   float64 // Energy target while a node is being dragged

	// ExactThreshold is the node count at or below which repulsion is computed pairwise
	ExactThreshold int

	Seed uint64
}

// DefaultParams returns the standard simulation parameters
func DefaultParams() Params {
	p := Params{
		Width:          600,
		Height:         400,
		LinkDistance:   100,
		Charge:         -400,
		Theta:          0.9,
		DistanceMin:    1,
		DistanceMax:    math.Inf(1),
		AlphaMin:       0.001,
		VelocityDecay:  0.4,
		ReheatAlpha:    0.3,
		ExactThreshold: 64,
		Seed:           1,
	}
	p.AlphaDecay = decayFor(p.AlphaMin)
	return p
}

// ParamsFromConfig builds simulation parameters from the layout config section
func ParamsFromConfig(c config.LayoutConfig) Params {
	p := DefaultParams()
	p.Width = c.Width
	p.Height = c.Height
	p.LinkDistance = c.LinkDistance
	p.Charge = c.Charge
	p.Theta = c.Theta
	p.AlphaMin = c.AlphaMin
	p.VelocityDecay = c.VelocityDecay
	p.ReheatAlpha = c.ReheatAlpha
	p.ExactThreshold = c.ExactThreshold
	p.Seed = c.Seed
	p.AlphaDecay = c.AlphaDecay
	if p.AlphaDecay <= 0 {
		p.AlphaDecay = decayFor(p.AlphaMin)
	}
	return p
}

// decayFor returns the decay that takes alpha from 1 to alphaMin in 300 ticks
func decayFor(alphaMin float64) float64 {
	return 1 - math.Pow(alphaMin, 1.0/300)
}

// Center returns the point the layout is pulled towards
func (p Params) Center() (float64, float64) {
	return p.Width / 2, p.Height / 2
}
