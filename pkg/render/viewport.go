package render

import "fmt"

// Transform is the pan/zoom state applied to the primitive container
type Transform struct {
	K float64 `json:"k"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// String renders the transform as an SVG transform attribute
func (t Transform) String() string {
	return fmt.Sprintf("translate(%g,%g) scale(%g)", t.X, t.Y, t.K)
}

// Viewport maps layout space to screen space. Primitives keep layout coordinates;
// only the container is transformed.
type Viewport struct {
	t        Transform
	minScale float64
	maxScale float64
}

// NewViewport creates an identity viewport whose scale is clamped to [minScale, maxScale]
func NewViewport(minScale, maxScale float64) *Viewport {
	if minScale <= 0 {
		minScale = 0.1
	}
	if maxScale < minScale {
		maxScale = minScale
	}
	return &Viewport{
		t:        Transform{K: 1},
		minScale: minScale,
		maxScale: maxScale,
	}
}

// Transform returns the current transform
func (v *Viewport) Transform() Transform {
	return v.t
}

// Pan translates the view by a screen-space offset
func (v *Viewport) Pan(dx, dy float64) {
	v.t.X += dx
	v.t.Y += dy
}

// ZoomAt multiplies the scale by factor, keeping the layout point under (fx, fy) fixed on screen
func (v *Viewport) ZoomAt(factor, fx, fy float64) {
	if factor <= 0 {
		return
	}
	k := min(max(v.t.K*factor, v.minScale), v.maxScale)
	lx, ly := v.ToLayout(fx, fy)
	v.t.K = k
	v.t.X = fx - lx*k
	v.t.Y = fy - ly*k
}

// Reset returns to the identity transform
func (v *Viewport) Reset() {
	v.t = Transform{K: 1}
}

// ToLayout converts a screen point into layout space
func (v *Viewport) ToLayout(sx, sy float64) (float64, float64) {
	return (sx - v.t.X) / v.t.K, (sy - v.t.Y) / v.t.K
}

// ToScreen converts a layout point into screen space
func (v *Viewport) ToScreen(lx, ly float64) (float64, float64) {
	return lx*v.t.K + v.t.X, ly*v.t.K + v.t.Y
}
