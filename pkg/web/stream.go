package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ritzau/callflow/pkg/interact"
	"github.com/ritzau/callflow/pkg/logging"
	"github.com/ritzau/callflow/pkg/pubsub"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Pointer events are tiny
	maxMessageSize = 4096
)

var topics = map[string]bool{
	pubsub.TopicLayout:      true,
	pubsub.TopicGraphStatus: true,
}

// ErrorMessage is pushed to a websocket client whose event was rejected
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	if !topics[topic] {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("unknown topic %q", topic))
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Send initial comment to establish connection (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	flush(w)

	ctx := r.Context()
	sub, err := s.publisher.Subscribe(ctx, topic)
	if err != nil {
		logging.ErrorContext(ctx, "Failed to subscribe", "topic", topic, "error", err)
		return
	}
	defer sub.Close()

	// Stream events
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.WarnContext(ctx, "Error writing SSE event", "topic", topic, "error", err)
				return
			}
			flush(w)
		}
	}
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// handleWebSocket pushes frames and status events to the client and feeds the
// pointer events it sends back into the session
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an error
		logging.WarnContext(r.Context(), "WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames, err := s.publisher.Subscribe(ctx, pubsub.TopicLayout)
	if err != nil {
		logging.ErrorContext(ctx, "Failed to subscribe", "topic", pubsub.TopicLayout, "error", err)
		return
	}
	defer frames.Close()
	status, err := s.publisher.Subscribe(ctx, pubsub.TopicGraphStatus)
	if err != nil {
		logging.ErrorContext(ctx, "Failed to subscribe", "topic", pubsub.TopicGraphStatus, "error", err)
		return
	}
	defer status.Close()

	replies := make(chan ErrorMessage, 8)
	go func() {
		defer cancel()
		s.readPump(ctx, conn, replies)
	}()

	s.writePump(ctx, conn, frames.Events(), status.Events(), replies)
}

// readPump decodes pointer events until the connection closes
func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, replies chan<- ErrorMessage) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var ev interact.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				logging.WarnContext(ctx, "WebSocket read error", "error", err)
			}
			return
		}

		if err := s.session.Dispatch(ctx, ev); err != nil {
			select {
			case replies <- ErrorMessage{Type: pubsub.EventError, Error: err.Error()}:
			default:
			}
		}
	}
}

// writePump is the only writer of conn
func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, frames, status <-chan pubsub.Event, replies <-chan ErrorMessage) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(v interface{}) bool {
		data, err := json.Marshal(v)
		if err != nil {
			logging.ErrorContext(ctx, "Failed to marshal websocket message", "error", err)
			return true
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logging.DebugContext(ctx, "WebSocket write failed", "error", err)
			return false
		}
		return true
	}

	for {
		var ok bool
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case ev, open := <-frames:
			ok = open && write(ev)
		case ev, open := <-status:
			ok = open && write(ev)
		case reply := <-replies:
			ok = write(reply)
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			ok = conn.WriteMessage(websocket.PingMessage, nil) == nil
		}
		if !ok {
			return
		}
	}
}
