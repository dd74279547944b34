package interact

import (
	"errors"
	"fmt"
	"math"

	"github.com/ritzau/callflow/pkg/logging"
	"github.com/ritzau/callflow/pkg/render"
)

// ErrUnknownEvent is returned for events the controller does not understand
var ErrUnknownEvent = errors.New("unknown event type")

const (
	// ClickTolerance is how far, in screen pixels, a pointer may travel and still click
	ClickTolerance = 3.0
	// wheelSensitivity converts wheel delta into an exponential zoom step
	wheelSensitivity = 0.002
)

// Layout is the part of the layout engine the drag gesture drives
type Layout interface {
	Position(id string) (float64, float64, bool)
	Pin(id string, x, y float64) bool
	Unpin(id string) bool
	Reheat()
	Cool()
}

// Adjacency answers direction-agnostic neighbor questions for highlighting
type Adjacency interface {
	Has(id string) bool
	IsConnected(a, b string) bool
}

// Surface is the part of the render surface the controller reads and styles
type Surface interface {
	HitNode(sx, sy float64) (string, bool)
	Viewport() *render.Viewport
	Restyle(styler render.Styler)
	SetDragging(id string, dragging bool)
}

type gesture int

const (
	gestureIdle gesture = iota
	gestureDrag
	gesturePan
)

func (g gesture) String() string {
	switch g {
	case gestureIdle:
		return "idle"
	case gestureDrag:
		return "drag"
	case gesturePan:
		return "pan"
	default:
		return "unknown"
	}
}

// Controller runs the drag and selection state machines over one surface.
// It is not safe for concurrent use.
type Controller struct {
	layout  Layout
	adj     Adjacency
	surface Surface

	gesture        gesture
	dragID         string
	startX, startY float64
	lastX, lastY   float64
	moved          bool
	swallowClick   bool

	focus string
}

// NewController creates a controller with nothing focused and no gesture in progress
func NewController(layout Layout, adj Adjacency, surface Surface) *Controller {
	return &Controller{
		layout:  layout,
		adj:     adj,
		surface: surface,
	}
}

// Handle feeds one pointer event through the state machines
func (c *Controller) Handle(ev Event) error {
	switch ev.Type {
	case PointerDown:
		c.pointerDown(ev.X, ev.Y)
	case PointerMove:
		c.pointerMove(ev.X, ev.Y)
	case PointerUp:
		c.pointerUp(ev.X, ev.Y)
	case Click:
		c.click(ev.X, ev.Y)
	case Wheel:
		c.surface.Viewport().ZoomAt(math.Pow(2, -ev.DeltaY*wheelSensitivity), ev.X, ev.Y)
	case ResetView:
		c.surface.Viewport().Reset()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
	return nil
}

func (c *Controller) pointerDown(sx, sy float64) {
	if c.gesture != gestureIdle {
		// A second button while a gesture runs ends the first one
		c.pointerUp(sx, sy)
	}
	c.startX, c.startY = sx, sy
	c.lastX, c.lastY = sx, sy
	c.moved = false
	c.swallowClick = false

	if id, ok := c.surface.HitNode(sx, sy); ok {
		if x, y, ok := c.layout.Position(id); ok {
			c.gesture = gestureDrag
			c.dragID = id
			c.layout.Pin(id, x, y)
			c.layout.Reheat()
			c.surface.SetDragging(id, true)
			logging.Trace("drag start", "node", id, "x", x, "y", y)
			return
		}
	}
	c.gesture = gesturePan
}

func (c *Controller) pointerMove(sx, sy float64) {
	if c.gesture == gestureIdle {
		return
	}
	if math.Hypot(sx-c.startX, sy-c.startY) > ClickTolerance {
		c.moved = true
	}

	switch c.gesture {
	case gestureDrag:
		x, y := c.surface.Viewport().ToLayout(sx, sy)
		c.layout.Pin(c.dragID, x, y)
	case gesturePan:
		c.surface.Viewport().Pan(sx-c.lastX, sy-c.lastY)
	}
	c.lastX, c.lastY = sx, sy
}

func (c *Controller) pointerUp(sx, sy float64) {
	if c.gesture == gestureIdle {
		return
	}
	if math.Hypot(sx-c.startX, sy-c.startY) > ClickTolerance {
		c.moved = true
	}

	if c.gesture == gestureDrag {
		c.layout.Unpin(c.dragID)
		c.layout.Cool()
		c.surface.SetDragging(c.dragID, false)
		logging.Trace("drag end", "node", c.dragID, "moved", c.moved)
	}

	c.swallowClick = c.moved
	c.gesture = gestureIdle
	c.dragID = ""
}

func (c *Controller) click(sx, sy float64) {
	if c.swallowClick {
		c.swallowClick = false
		return
	}
	id, ok := c.surface.HitNode(sx, sy)
	if !ok {
		return
	}
	c.Toggle(id)
}

// Toggle focuses a node, or clears the focus when the node is already focused
func (c *Controller) Toggle(id string) {
	if c.focus == id {
		c.focus = ""
	} else {
		c.focus = id
	}
	c.restyle()
	logging.Debug("selection changed", "focus", c.focus)
}

// Rebind points the controller at a new graph. The focus survives when the focused node is
// still present; a drag of a vanished node is abandoned.
func (c *Controller) Rebind(adj Adjacency) {
	c.adj = adj
	if c.focus != "" && !adj.Has(c.focus) {
		c.focus = ""
	}
	if c.gesture == gestureDrag && !adj.Has(c.dragID) {
		c.gesture = gestureIdle
		c.dragID = ""
		c.layout.Cool()
	}
	c.restyle()
}

func (c *Controller) restyle() {
	if c.focus == "" {
		c.surface.Restyle(nil)
		return
	}
	c.surface.Restyle(emphasis{focus: c.focus, adj: c.adj})
}

// Focus returns the focused node, or "" when nothing is focused
func (c *Controller) Focus() string {
	return c.focus
}

// Dragging returns the node being dragged
func (c *Controller) Dragging() (string, bool) {
	return c.dragID, c.gesture == gestureDrag
}

// emphasis keeps the focused node and its neighborhood at full strength and dims the rest
type emphasis struct {
	focus string
	adj   Adjacency
}

func (e emphasis) NodeOpacity(id string) float64 {
	if e.adj.IsConnected(e.focus, id) {
		return render.FullOpacity
	}
	return render.DimmedOpacity
}

func (e emphasis) EdgeOpacity(source, target string) float64 {
	if source == e.focus || target == e.focus {
		return render.EdgeOpacity
	}
	return render.DimmedOpacity
}
