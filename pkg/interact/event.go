package interact

// EventType names a pointer gesture event
type EventType string

const (
	PointerDown EventType = "pointerdown"
	PointerMove EventType = "pointermove"
	PointerUp   EventType = "pointerup"
	Click       EventType = "click"
	Wheel       EventType = "wheel"
	ResetView   EventType = "reset" // Back to the identity pan/zoom
)

// Event is one pointer event in screen coordinates, as sent by the browser
type Event struct {
	Type   EventType `json:"type"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	DeltaY float64   `json:"deltaY,omitempty"`
}
