package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ritzau/callflow/pkg/logging"
	"github.com/ritzau/callflow/pkg/pubsub"
	"github.com/ritzau/callflow/pkg/session"
	"github.com/ritzau/callflow/pkg/summaries"
)

//go:embed static/*
var staticFiles embed.FS

// DefaultMaxUpload bounds multipart uploads to /parse
const DefaultMaxUpload = 100 << 20

// NewPublisher creates the publisher a session and server share, with topic buffering set up
func NewPublisher() *pubsub.SSEPublisher {
	ssePublisher := pubsub.NewSSEPublisher()

	// graph_status: buffer last 10 events, replay only last event to new subscribers
	ssePublisher.ConfigureTopic(pubsub.TopicGraphStatus, pubsub.TopicConfig{
		BufferSize: 10,
		ReplayAll:  false, // Only send current state
	})

	// layout: only the latest frame matters, slow clients skip ahead
	ssePublisher.ConfigureTopic(pubsub.TopicLayout, pubsub.TopicConfig{
		BufferSize: 1,
		Coalesce:   true,
	})

	return ssePublisher
}

// Options configures a server
type Options struct {
	Summarizer  summaries.Summarizer // nil disables summaries on /parse
	Concurrency int                  // Parallel summary requests
	MaxUpload   int64                // Bytes accepted by /parse
}

// Server represents the web server
type Server struct {
	router    *mux.Router
	session   *session.Session
	publisher pubsub.Publisher
	opts      Options
	upgrader  websocket.Upgrader
	uploaded  atomic.Bool // a client replaced the analyzed source tree
}

// NewServer creates a new web server for one session.
// pub must be the publisher the session publishes to.
func NewServer(sess *session.Session, pub pubsub.Publisher, opts Options) *Server {
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = DefaultMaxUpload
	}
	s := &Server{
		router:    mux.NewRouter(),
		session:   sess,
		publisher: pub,
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Same policy as CORSMiddleware
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

// Uploaded reports whether a graph has been loaded through /parse or POST /api/graph.
// From then on the view shows the client's code instead of the local source tree.
func (s *Server) Uploaded() bool {
	return s.uploaded.Load()
}

func (s *Server) setupRoutes() {
	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/{topic}", s.handleSubscribe).Methods("GET")
	s.router.HandleFunc("/api/ws", s.handleWebSocket).Methods("GET")

	// Graph and view
	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET")
	s.router.HandleFunc("/api/graph", s.handleLoadGraph).Methods("POST")
	s.router.HandleFunc("/api/focus", s.handleSetFocus).Methods("PUT")
	s.router.HandleFunc("/api/focus", s.handleClearFocus).Methods("DELETE")
	s.router.HandleFunc("/api/events", s.handleEvent).Methods("POST")
	s.router.HandleFunc("/api/frame", s.handleFrame).Methods("GET")
	s.router.HandleFunc("/api/frame.svg", s.handleFrameSVG).Methods("GET")
	s.router.HandleFunc("/api/status", s.handleStatus).Methods("GET")

	// Producer endpoints
	s.router.HandleFunc("/parse", s.handleParse).Methods("POST")
	s.router.HandleFunc("/summaries", s.handleSummaries).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Serve static files
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// The embed pattern guarantees the directory
		panic(err)
	}
	s.router.PathPrefix("/").Handler(http.FileServer(http.FS(staticFS)))
}

// Handler returns the router wrapped in request logging and CORS
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(logging.CORSMiddleware(s.router))
}

// Start serves on the given port until ctx is cancelled
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		logging.Info("Starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("web server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown failed: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logging.Info("Web server stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to encode response", "error", err)
	}
}

// writeError maps session and request errors onto status codes
func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if errors.Is(err, session.ErrClosed) {
		status = http.StatusServiceUnavailable
	}
	logging.WarnContext(r.Context(), "Request rejected", "path", r.URL.Path, "status", status, "error", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
