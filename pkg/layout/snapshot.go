package layout

// Position is one node's location in layout space
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Pinned bool    `json:"pinned,omitempty"`
}

// Snapshot is a copy of every node position taken after one tick
type Snapshot struct {
	Tick      uint64              `json:"tick"`
	Alpha     float64             `json:"alpha"`
	Phase     string              `json:"phase"`
	Positions map[string]Position `json:"positions"`
}
