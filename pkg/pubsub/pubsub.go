package pubsub

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrClosed is returned by a publisher that has been shut down
var ErrClosed = errors.New("publisher is closed")

// Topics published by a session
const (
	TopicLayout      = "layout"       // One frame per tick while the layout runs
	TopicGraphStatus = "graph_status" // Structural changes and load progress
)

// Event types
const (
	EventFrame    = "frame"
	EventLoading  = "loading"
	EventLoaded   = "loaded"
	EventFiltered = "filtered"
	EventSettled  = "settled"
	EventError    = "error"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic (e.g., "layout", "graph_status")
	Type    string          `json:"type"`    // Event type (e.g., "frame", "loaded", "filtered")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Subscribers returns the number of live subscriptions to a topic
	Subscribers(topic string) int

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// GraphStatus describes the graph currently shown by a session
type GraphStatus struct {
	State      string `json:"state"`           // loading, loaded, filtered, settled, error
	Message    string `json:"message"`         // Human-readable status message
	Generation int    `json:"generation"`      // Increments on every structural change
	Nodes      int    `json:"nodes"`           // Nodes in the current view
	Edges      int    `json:"edges"`           // Edges in the current view
	Dropped    int    `json:"dropped"`         // Dangling edges dropped on load
	Focus      string `json:"focus,omitempty"` // Filter root, empty for the full graph
	Ticks      uint64 `json:"ticks,omitempty"` // Ticks taken to settle
}
