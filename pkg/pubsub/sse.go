package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/ritzau/callflow/pkg/logging"
)

const (
	subscriberBuffer = 100
	dropLogInterval  = 100 // Log every Nth dropped event per topic
)

// TopicConfig configures buffering behavior for a topic
type TopicConfig struct {
	BufferSize int  // Number of events kept for late subscribers (0 = none)
	ReplayAll  bool // Replay every buffered event instead of only the last one
	Coalesce   bool // A full subscriber loses its oldest event instead of the new one
}

// topic holds the subscribers and replay buffer of one topic
type topic struct {
	config  TopicConfig
	subs    map[*sseSubscription]struct{}
	buffer  []Event
	version int
	dropped int
}

func (t *topic) remember(event Event) {
	if t.config.BufferSize <= 0 {
		return
	}
	t.buffer = append(t.buffer, event)
	if over := len(t.buffer) - t.config.BufferSize; over > 0 {
		t.buffer = append(t.buffer[:0], t.buffer[over:]...)
	}
}

func (t *topic) replay() []Event {
	if len(t.buffer) == 0 {
		return nil
	}
	if !t.config.ReplayAll {
		return []Event{t.buffer[len(t.buffer)-1]}
	}
	return append([]Event(nil), t.buffer...)
}

// deliver hands event to sub without blocking and reports whether it was delivered
func (t *topic) deliver(sub *sseSubscription, event Event) bool {
	select {
	case sub.events <- event:
		return true
	default:
	}
	if !t.config.Coalesce {
		return false
	}
	// Make room by discarding the oldest queued event; the publisher lock keeps other senders out
	select {
	case <-sub.events:
	default:
	}
	select {
	case sub.events <- event:
		return true
	default:
		return false
	}
}

// SSEPublisher is an in-process Publisher whose events are written to clients as Server-Sent Events
type SSEPublisher struct {
	mu     sync.Mutex
	topics map[string]*topic
	closed bool
}

// NewSSEPublisher creates a publisher with no configured topics
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{topics: make(map[string]*topic)}
}

// topicLocked returns the state for name, creating it on first use. p.mu must be held.
func (p *SSEPublisher) topicLocked(name string) *topic {
	t, ok := p.topics[name]
	if !ok {
		t = &topic{subs: make(map[*sseSubscription]struct{})}
		p.topics[name] = t
	}
	return t
}

// ConfigureTopic sets buffering configuration for a topic
func (p *SSEPublisher) ConfigureTopic(name string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topicLocked(name).config = config
}

// Subscribe registers a subscription that receives the topic's replayed history followed by
// live events. It is removed when ctx is done.
func (p *SSEPublisher) Subscribe(ctx context.Context, name string) (Subscription, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	sub := &sseSubscription{
		topic:     name,
		events:    make(chan Event, subscriberBuffer),
		publisher: p,
	}
	t := p.topicLocked(name)
	t.subs[sub] = struct{}{}

	replayed := 0
	for _, event := range t.replay() {
		if t.deliver(sub, event) {
			replayed++
		}
	}
	p.mu.Unlock()

	if replayed > 0 {
		logging.Debug("Replayed events to new subscriber", "count", replayed, "topic", name)
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// Publish marshals data once and fans the event out to every subscriber of the topic
func (p *SSEPublisher) Publish(name string, eventType string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	t := p.topicLocked(name)
	t.version++
	event := Event{Topic: name, Type: eventType, Data: jsonData, Version: t.version}
	t.remember(event)

	for sub := range t.subs {
		if t.deliver(sub, event) {
			continue
		}
		t.dropped++
		if t.dropped%dropLogInterval == 1 {
			logging.Debug("Subscriber too slow, dropping event",
				"topic", name, "type", eventType, "dropped", t.dropped)
		}
	}

	return nil
}

// Subscribers returns the number of live subscriptions to a topic
func (p *SSEPublisher) Subscribers(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.topics[name]; ok {
		return len(t.subs)
	}
	return 0
}

// Close shuts down the publisher and closes the event channel of every subscription
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for _, t := range p.topics {
		for sub := range t.subs {
			close(sub.events)
		}
		t.subs = make(map[*sseSubscription]struct{})
	}
	return nil
}

func (p *SSEPublisher) unsubscribe(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.topics[sub.topic]; ok {
		delete(t.subs, sub)
	}
}

type sseSubscription struct {
	topic     string
	events    chan Event
	publisher *SSEPublisher
	once      sync.Once
}

func (s *sseSubscription) Topic() string {
	return s.topic
}

func (s *sseSubscription) Events() <-chan Event {
	return s.events
}

// Close unregisters the subscription. The events channel is only closed by the publisher,
// so readers stop on their own context.
func (s *sseSubscription) Close() error {
	s.once.Do(func() { s.publisher.unsubscribe(s) })
	return nil
}

// WriteSSE writes an event to an SSE response writer
// Format: "event: {type}\nid: {version}\ndata: {json}\n\n"
func WriteSSE(w io.Writer, event Event) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", event.Type, event.Version, jsonData)
	return err
}
