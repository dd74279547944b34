package lens

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/ritzau/callflow/pkg/model"
)

// KeyedEdge is an edge together with its identity key
type KeyedEdge struct {
	Key string `json:"key"`
	model.Link
}

// GraphDiff represents the difference between two subgraph states
type GraphDiff struct {
	AddedNodes   []string    `json:"addedNodes"`
	RemovedNodes []string    `json:"removedNodes"`
	AddedEdges   []KeyedEdge `json:"addedEdges"`
	RemovedEdges []string    `json:"removedEdges"` // Edge keys (source|target|ordinal)
	FullGraph    bool        `json:"fullGraph"`    // True if there was no previous state
}

// Empty reports whether the diff carries no structural change
func (d *GraphDiff) Empty() bool {
	return len(d.AddedNodes) == 0 && len(d.RemovedNodes) == 0 &&
		len(d.AddedEdges) == 0 && len(d.RemovedEdges) == 0
}

// GraphSnapshot represents a cached subgraph state for diffing
type GraphSnapshot struct {
	Hash      string
	Nodes     map[string]bool
	Edges     map[string]model.Link // edgeKey -> edge
	NodeOrder []string
	EdgeOrder []string
}

// CreateSnapshot creates a snapshot from subgraph data for diffing.
// Repeated calls between the same pair of functions get increasing ordinals so each keeps
// a stable identity.
func CreateSnapshot(sub *Subgraph) *GraphSnapshot {
	snapshot := &GraphSnapshot{
		Nodes:     make(map[string]bool, len(sub.Nodes)),
		Edges:     make(map[string]model.Link, len(sub.Edges)),
		NodeOrder: make([]string, 0, len(sub.Nodes)),
		EdgeOrder: make([]string, 0, len(sub.Edges)),
	}

	for _, id := range sub.Nodes {
		if snapshot.Nodes[id] {
			continue
		}
		snapshot.Nodes[id] = true
		snapshot.NodeOrder = append(snapshot.NodeOrder, id)
	}

	for _, edge := range KeyEdges(sub.Edges) {
		snapshot.Edges[edge.Key] = edge.Link
		snapshot.EdgeOrder = append(snapshot.EdgeOrder, edge.Key)
	}

	// Compute hash of the graph
	jsonData, _ := json.Marshal(sub)
	hash := sha256.Sum256(jsonData)
	snapshot.Hash = fmt.Sprintf("%x", hash)

	return snapshot
}

// KeyEdges assigns identity keys to edges in order
func KeyEdges(edges []model.Link) []KeyedEdge {
	seen := make(map[model.Link]int, len(edges))
	out := make([]KeyedEdge, 0, len(edges))
	for _, edge := range edges {
		ordinal := seen[edge]
		seen[edge] = ordinal + 1
		out = append(out, KeyedEdge{Key: EdgeKey(edge.Source, edge.Target, ordinal), Link: edge})
	}
	return out
}

// ComputeDiff computes the difference between a snapshot and a new one.
// Results follow the order of the new snapshot (added) and the old snapshot (removed).
func ComputeDiff(oldSnapshot, newSnapshot *GraphSnapshot) *GraphDiff {
	diff := &GraphDiff{
		AddedNodes:   make([]string, 0),
		RemovedNodes: make([]string, 0),
		AddedEdges:   make([]KeyedEdge, 0),
		RemovedEdges: make([]string, 0),
	}

	// If no old snapshot, everything is new
	if oldSnapshot == nil {
		diff.FullGraph = true
		diff.AddedNodes = append(diff.AddedNodes, newSnapshot.NodeOrder...)
		for _, key := range newSnapshot.EdgeOrder {
			diff.AddedEdges = append(diff.AddedEdges, KeyedEdge{Key: key, Link: newSnapshot.Edges[key]})
		}
		return diff
	}

	if oldSnapshot.Hash == newSnapshot.Hash {
		return diff
	}

	for _, id := range newSnapshot.NodeOrder {
		if !oldSnapshot.Nodes[id] {
			diff.AddedNodes = append(diff.AddedNodes, id)
		}
	}

	for _, id := range oldSnapshot.NodeOrder {
		if !newSnapshot.Nodes[id] {
			diff.RemovedNodes = append(diff.RemovedNodes, id)
		}
	}

	for _, key := range newSnapshot.EdgeOrder {
		if _, exists := oldSnapshot.Edges[key]; !exists {
			diff.AddedEdges = append(diff.AddedEdges, KeyedEdge{Key: key, Link: newSnapshot.Edges[key]})
		}
	}

	for _, key := range oldSnapshot.EdgeOrder {
		if _, exists := newSnapshot.Edges[key]; !exists {
			diff.RemovedEdges = append(diff.RemovedEdges, key)
		}
	}

	return diff
}

// EdgeKey creates a unique key for an edge
func EdgeKey(source, target string, ordinal int) string {
	return fmt.Sprintf("%s|%s|%d", source, target, ordinal)
}
