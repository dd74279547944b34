package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ritzau/callflow/pkg/config"
	"github.com/ritzau/callflow/pkg/graph"
	"github.com/ritzau/callflow/pkg/interact"
	"github.com/ritzau/callflow/pkg/layout"
	"github.com/ritzau/callflow/pkg/lens"
	"github.com/ritzau/callflow/pkg/logging"
	"github.com/ritzau/callflow/pkg/model"
	"github.com/ritzau/callflow/pkg/pubsub"
	"github.com/ritzau/callflow/pkg/render"
)

// ErrClosed is returned for requests made after the session stopped
var ErrClosed = errors.New("session closed")

// Options configures a session
type Options struct {
	Params  layout.Params
	ZoomMin float64
	ZoomMax float64
	TickHz  int
}

// OptionsFromConfig derives session options from the loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Params:  layout.ParamsFromConfig(cfg.Layout),
		ZoomMin: cfg.Layout.ZoomMin,
		ZoomMax: cfg.Layout.ZoomMax,
		TickHz:  cfg.TickHz,
	}
}

// Session owns one interactive view of a call graph.
// All graph, layout, surface and selection state belongs to the goroutine running Run;
// other goroutines send it requests and read published copies.
type Session struct {
	id   string
	log  *slog.Logger
	opts Options
	pub  pubsub.Publisher

	requests chan func()
	quit     chan struct{}
	stop     sync.Once

	// Owned by the loop
	full       *graph.CallGraph
	focus      string
	dropped    int
	generation int
	engine     *layout.Engine
	surface    *render.Surface
	ctrl       *interact.Controller
	ticker     *time.Ticker
	announced  bool // settled status published for the current run

	// Published copies
	mu        sync.RWMutex
	frame     *render.Frame
	status    pubsub.GraphStatus
	graphCopy *lens.Subgraph
	summaries map[string]string
}

// New creates a session with an empty graph. pub may be nil.
func New(opts Options, pub pubsub.Publisher) *Session {
	if opts.TickHz <= 0 {
		opts.TickHz = 60
	}
	id := uuid.NewString()
	s := &Session{
		id:        id,
		log:       logging.With("session", id),
		opts:      opts,
		pub:       pub,
		requests:  make(chan func()),
		quit:      make(chan struct{}),
		summaries: make(map[string]string),
		graphCopy: lens.NewSubgraph(),
		status:    pubsub.GraphStatus{State: "empty", Message: "no graph loaded"},
	}
	s.reset(model.NewPayload())
	s.publishFrame()
	return s
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Run processes requests and ticks the layout until ctx is cancelled or Close is called
func (s *Session) Run(ctx context.Context) error {
	s.log.Info("Session started", "tick_hz", s.opts.TickHz)
	defer s.stopTicker()

	for {
		var tick <-chan time.Time
		if s.ticker != nil {
			tick = s.ticker.C
		}

		select {
		case <-ctx.Done():
			s.Close()
			s.log.Info("Session stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-s.quit:
			s.log.Info("Session closed")
			return nil
		case fn := <-s.requests:
			fn()
		case <-tick:
			s.step()
		}
	}
}

// Close stops the loop; pending and later requests fail with ErrClosed
func (s *Session) Close() {
	s.stop.Do(func() { close(s.quit) })
}

// do runs fn on the loop goroutine and waits for it to finish
func (s *Session) do(ctx context.Context, fn func()) error {
	select {
	case <-s.quit:
		return ErrClosed
	default:
	}

	done := make(chan struct{})
	req := func() {
		fn()
		close(done)
	}

	select {
	case s.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.quit:
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.quit:
		return ErrClosed
	}
}

// call runs fn on the loop goroutine and returns its result. The result only crosses back
// once fn has finished; a request abandoned by ctx or Close yields the zero value.
func call[T any](ctx context.Context, s *Session, fn func() T) (T, error) {
	result := make(chan T, 1)
	if err := s.do(ctx, func() { result <- fn() }); err != nil {
		var zero T
		return zero, err
	}
	return <-result, nil
}

// LoadFull replaces the graph with a new payload and shows all of it.
// Layout starts from scratch; dangling edges are dropped and counted.
func (s *Session) LoadFull(ctx context.Context, p *model.Payload) (pubsub.GraphStatus, error) {
	p = p.Clone()
	return call(ctx, s, func() pubsub.GraphStatus {
		s.reset(p)
		s.focus = ""
		return s.show(lens.Full(s.full), pubsub.EventLoaded)
	})
}

// Reload swaps in a re-analyzed payload while keeping positions, viewport and filter.
// A filter whose root vanished falls back to the full graph.
func (s *Session) Reload(ctx context.Context, p *model.Payload) (pubsub.GraphStatus, error) {
	p = p.Clone()
	return call(ctx, s, func() pubsub.GraphStatus {
		s.setGraph(p)
		if s.focus != "" && !s.full.Has(s.focus) {
			s.log.Info("Filter root no longer exists", "focus", s.focus)
			s.focus = ""
		}
		return s.show(s.selection(), pubsub.EventLoaded)
	})
}

// LoadFiltered restricts the view to the forward call tree of id. An empty id restores the
// full graph; an unknown id shows an empty view. Positions of retained nodes are kept.
func (s *Session) LoadFiltered(ctx context.Context, id string) (pubsub.GraphStatus, error) {
	return call(ctx, s, func() pubsub.GraphStatus {
		s.focus = id
		return s.show(s.selection(), pubsub.EventFiltered)
	})
}

// Dispatch feeds one pointer event to the interaction controller
func (s *Session) Dispatch(ctx context.Context, ev interact.Event) error {
	herr, err := call(ctx, s, func() error {
		if err := s.ctrl.Handle(ev); err != nil {
			return err
		}
		s.surface.Apply(s.engine.Snapshot())
		s.publishFrame()
		s.ensureTicker()
		return nil
	})
	if err != nil {
		return err
	}
	return herr
}

// Settle ticks the layout synchronously until it settles or maxTicks is reached.
// It returns the number of ticks taken.
func (s *Session) Settle(ctx context.Context, maxTicks int) (int, error) {
	return call(ctx, s, func() int {
		ticks := 0
		for ticks < maxTicks && s.engine.Tick() {
			ticks++
		}
		s.surface.Apply(s.engine.Snapshot())
		s.publishFrame()
		s.afterTick()
		return ticks
	})
}

// Frame returns the most recently published frame
func (s *Session) Frame() *render.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// Graph returns the nodes and edges currently shown
func (s *Session) Graph() *lens.Subgraph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graphCopy
}

// Status returns the current graph status
func (s *Session) Status() pubsub.GraphStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Summaries returns a copy of the summary text per function
func (s *Session) Summaries() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.summaries)
}

// reset installs a new payload with fresh layout, surface and selection state
func (s *Session) reset(p *model.Payload) {
	s.stopTicker()
	s.engine = layout.NewEngine(s.opts.Params)
	s.surface = render.NewSurface(s.opts.Params.Width, s.opts.Params.Height, s.opts.ZoomMin, s.opts.ZoomMax)
	s.setGraph(p)
	s.ctrl = interact.NewController(s.engine, s.full, s.surface)
}

// setGraph replaces the model graph and summaries without touching layout state
func (s *Session) setGraph(p *model.Payload) {
	s.full, s.dropped = graph.FromPayload(p)
	if s.dropped > 0 {
		s.log.Warn("Dropped dangling edges", "dropped", s.dropped, "edges", len(p.Links))
	}

	summaries := maps.Clone(p.Summaries)
	if summaries == nil {
		summaries = make(map[string]string)
	}
	s.mu.Lock()
	s.summaries = summaries
	s.mu.Unlock()
}

// selection returns the subgraph for the current focus
func (s *Session) selection() *lens.Subgraph {
	if s.focus == "" {
		return lens.Full(s.full)
	}
	return lens.ExtractReachable(s.full, s.focus)
}

// show makes sub the visible graph and restarts the tick schedule for it
func (s *Session) show(sub *lens.Subgraph, state string) pubsub.GraphStatus {
	s.stopTicker()

	viewGraph, _ := graph.Build(sub.Nodes, sub.Edges)
	diff := s.surface.Reconcile(sub)
	if diff.Empty() {
		// Same nodes and calls as before, a settled layout stays settled
		s.log.Debug("View unchanged, keeping layout", "state", state)
		s.announced = false
	} else {
		s.engine.SetGraph(sub.Nodes, sub.Edges)
	}
	s.ctrl.Rebind(viewGraph)
	s.surface.Apply(s.engine.Snapshot())
	s.generation++

	status := pubsub.GraphStatus{
		State:      state,
		Message:    fmt.Sprintf("%d functions, %d calls", len(sub.Nodes), len(sub.Edges)),
		Generation: s.generation,
		Nodes:      len(sub.Nodes),
		Edges:      len(sub.Edges),
		Dropped:    s.dropped,
		Focus:      s.focus,
	}
	s.mu.Lock()
	s.status = status
	s.graphCopy = &lens.Subgraph{
		Nodes: append([]string{}, sub.Nodes...),
		Edges: append([]model.Link{}, sub.Edges...),
	}
	s.mu.Unlock()

	s.log.Info("Graph shown", "state", state, "nodes", status.Nodes, "edges", status.Edges,
		"focus", s.focus, "added", len(diff.AddedNodes), "removed", len(diff.RemovedNodes))
	s.publish(pubsub.TopicGraphStatus, state, status)
	s.publishFrame()
	s.ensureTicker()
	if !s.engine.Running() {
		s.afterTick()
	}
	return status
}

// step advances the layout by one tick and publishes the resulting frame
func (s *Session) step() {
	s.engine.Tick()
	s.surface.Apply(s.engine.Snapshot())
	s.publishFrame()
	s.afterTick()
}

// afterTick stops the schedule once the layout settled
func (s *Session) afterTick() {
	if s.engine.Running() || s.announced {
		return
	}
	s.announced = true
	s.stopTicker()

	frame := s.Frame()
	s.mu.Lock()
	s.status.State = pubsub.EventSettled
	s.status.Ticks = frame.Tick
	status := s.status
	s.mu.Unlock()

	s.log.Debug("Layout settled", "ticks", frame.Tick)
	s.publish(pubsub.TopicGraphStatus, pubsub.EventSettled, status)
}

func (s *Session) ensureTicker() {
	if s.ticker != nil || !s.engine.Running() {
		return
	}
	s.announced = false
	s.ticker = time.NewTicker(time.Second / time.Duration(s.opts.TickHz))
}

func (s *Session) stopTicker() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.ticker = nil
}

func (s *Session) publishFrame() {
	frame := s.surface.Frame()
	frame.Selected = s.ctrl.Focus()

	s.mu.Lock()
	s.frame = frame
	s.mu.Unlock()

	s.publish(pubsub.TopicLayout, pubsub.EventFrame, frame)
}

func (s *Session) publish(topic, eventType string, data interface{}) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(topic, eventType, data); err != nil && !errors.Is(err, pubsub.ErrClosed) {
		s.log.Error("Failed to publish", "topic", topic, "type", eventType, "error", err)
	}
}
