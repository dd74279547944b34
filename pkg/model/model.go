package model

import "slices"

// FunctionInfo describes one function declaration found by the call graph producer
type FunctionInfo struct {
	Name       string   `json:"name"`              // Function name (e.g., "main", "ServeHTTP")
	File       string   `json:"file"`              // Source file path
	Line       int      `json:"line"`              // Line of the declaration
	Calls      []string `json:"calls"`             // Callee names in call order, duplicates kept
	SourceCode string   `json:"-"`                 // Printed declaration, sent to the summarizer
	Summary    string   `json:"summary,omitempty"` // Free-text summary (optional)
}

// NodeClass classifies a function in an exported call tree
type NodeClass string

const (
	NodeClassEntry  NodeClass = "entryFunc"  // The function the tree starts from
	NodeClassLeaf   NodeClass = "leafFunc"   // Calls nothing known
	NodeClassNormal NodeClass = "normalFunc" // Everything else
)

// BuildPayload converts function declarations into a graph payload.
// Every declared function and every callee becomes a node; node ids are returned sorted.
func BuildPayload(funcs map[string]*FunctionInfo) *Payload {
	payload := NewPayload()
	nodeSet := make(map[string]bool)

	names := sortedKeys(funcs)
	for _, name := range names {
		info := funcs[name]
		nodeSet[name] = true
		if info.Summary != "" {
			payload.Summaries[name] = info.Summary
		}
		for _, call := range info.Calls {
			nodeSet[call] = true
			payload.AddLink(name, call)
		}
	}

	for _, id := range sortedKeys(nodeSet) {
		payload.AddNode(id)
	}
	return payload
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
