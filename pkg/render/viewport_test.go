package render

import (
	"math"
	"testing"
)

func TestViewportRoundTrip(t *testing.T) {
	v := NewViewport(0.1, 8)
	v.Pan(40, -10)
	v.ZoomAt(1.5, 200, 100)

	lx, ly := v.ToLayout(321, 123)
	sx, sy := v.ToScreen(lx, ly)
	if math.Abs(sx-321) > 1e-9 || math.Abs(sy-123) > 1e-9 {
		t.Errorf("Round trip drifted: (%g, %g)", sx, sy)
	}
}

func TestViewportZoomKeepsFocalPoint(t *testing.T) {
	v := NewViewport(0.1, 8)
	v.Pan(15, 25)

	bx, by := v.ToLayout(300, 200)
	v.ZoomAt(3, 300, 200)
	ax, ay := v.ToLayout(300, 200)

	if math.Abs(ax-bx) > 1e-9 || math.Abs(ay-by) > 1e-9 {
		t.Errorf("Focal point moved from (%g, %g) to (%g, %g)", bx, by, ax, ay)
	}
	if v.Transform().K != 3 {
		t.Errorf("Expected scale 3, got %g", v.Transform().K)
	}
}

func TestViewportZoomClamp(t *testing.T) {
	v := NewViewport(0.1, 8)

	v.ZoomAt(100, 0, 0)
	if v.Transform().K != 8 {
		t.Errorf("Expected scale clamped to 8, got %g", v.Transform().K)
	}

	v.ZoomAt(0.0001, 0, 0)
	if v.Transform().K != 0.1 {
		t.Errorf("Expected scale clamped to 0.1, got %g", v.Transform().K)
	}

	v.ZoomAt(-1, 0, 0)
	if v.Transform().K != 0.1 {
		t.Errorf("Non-positive factor should be ignored, got %g", v.Transform().K)
	}

	v.Reset()
	if v.Transform() != (Transform{K: 1}) {
		t.Errorf("Expected identity after reset, got %+v", v.Transform())
	}
}
