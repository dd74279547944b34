package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/callflow/pkg/interact"
	"github.com/ritzau/callflow/pkg/layout"
	"github.com/ritzau/callflow/pkg/model"
	"github.com/ritzau/callflow/pkg/pubsub"
	"github.com/ritzau/callflow/pkg/render"
)

func testOptions() Options {
	return Options{Params: layout.DefaultParams(), ZoomMin: 0.1, ZoomMax: 8, TickHz: 1000}
}

func start(t *testing.T, pub pubsub.Publisher) *Session {
	t.Helper()
	return startWith(t, testOptions(), pub)
}

func startWith(t *testing.T, opts Options, pub pubsub.Publisher) *Session {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	s := New(opts, pub)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

// callGraph is main -> parse -> lex, main -> eval, plus one call to a missing function
func callGraph() *model.Payload {
	p := model.NewPayload()
	for _, id := range []string{"main", "parse", "lex", "eval"} {
		p.AddNode(id)
	}
	p.AddLink("main", "parse")
	p.AddLink("parse", "lex")
	p.AddLink("main", "eval")
	p.AddLink("eval", "missing")
	p.Summaries["main"] = "Entry point."
	return p
}

func nodeAt(t *testing.T, f *render.Frame, id string) render.Node {
	t.Helper()
	for _, n := range f.Nodes {
		if n.ID == id {
			return n
		}
	}
	t.Fatalf("node %s not in frame", id)
	return render.Node{}
}

func TestLoadFullDropsDanglingEdges(t *testing.T) {
	s := start(t, nil)
	ctx := context.Background()

	status, err := s.LoadFull(ctx, callGraph())
	require.NoError(t, err)

	assert.Equal(t, pubsub.EventLoaded, status.State)
	assert.Equal(t, 4, status.Nodes)
	assert.Equal(t, 3, status.Edges)
	assert.Equal(t, 1, status.Dropped)
	assert.Equal(t, 1, status.Generation)

	g := s.Graph()
	assert.ElementsMatch(t, []string{"main", "parse", "lex", "eval"}, g.Nodes)
	for _, e := range g.Edges {
		assert.NotEqual(t, "missing", e.Target)
	}
	assert.Len(t, s.Frame().Nodes, 4)
	assert.Equal(t, "Entry point.", s.Summaries()["main"])
}

func TestLoadFilteredShowsForwardTree(t *testing.T) {
	s := start(t, nil)
	ctx := context.Background()
	_, err := s.LoadFull(ctx, callGraph())
	require.NoError(t, err)

	status, err := s.LoadFiltered(ctx, "parse")
	require.NoError(t, err)
	assert.Equal(t, pubsub.EventFiltered, status.State)
	assert.Equal(t, "parse", status.Focus)
	assert.Equal(t, []string{"parse", "lex"}, s.Graph().Nodes)
	assert.Equal(t, []model.Link{{Source: "parse", Target: "lex"}}, s.Graph().Edges)

	status, err = s.LoadFiltered(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 4, status.Nodes)
	assert.Empty(t, status.Focus)

	status, err = s.LoadFiltered(ctx, "nope")
	require.NoError(t, err)
	assert.Zero(t, status.Nodes)
	assert.Empty(t, s.Graph().Nodes)
	assert.Empty(t, s.Frame().Nodes)
}

func TestFilterPreservesRetainedPositions(t *testing.T) {
	// A slow ticker keeps the loop from moving nodes between the two reads
	opts := testOptions()
	opts.TickHz = 1
	s := startWith(t, opts, nil)
	ctx := context.Background()
	_, err := s.LoadFull(ctx, callGraph())
	require.NoError(t, err)
	_, err = s.Settle(ctx, 1000)
	require.NoError(t, err)
	before := nodeAt(t, s.Frame(), "lex")

	_, err = s.LoadFiltered(ctx, "parse")
	require.NoError(t, err)
	after := nodeAt(t, s.Frame(), "lex")

	assert.Equal(t, before.X, after.X)
	assert.Equal(t, before.Y, after.Y)
}

func TestSettle(t *testing.T) {
	s := start(t, nil)
	ctx := context.Background()
	_, err := s.LoadFull(ctx, callGraph())
	require.NoError(t, err)

	ticks, err := s.Settle(ctx, 1000)
	require.NoError(t, err)
	assert.Positive(t, ticks)
	assert.Equal(t, layout.PhaseSettled.String(), s.Frame().Phase)
	assert.Equal(t, pubsub.EventSettled, s.Status().State)
}

func TestTickLoopSettlesOnItsOwn(t *testing.T) {
	s := start(t, nil)
	_, err := s.LoadFull(context.Background(), callGraph())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return s.Status().State == pubsub.EventSettled
	}, 10*time.Second, 10*time.Millisecond)
	assert.Positive(t, s.Frame().Tick)
}

func TestDispatchSelectsNode(t *testing.T) {
	s := start(t, nil)
	ctx := context.Background()
	_, err := s.LoadFull(ctx, callGraph())
	require.NoError(t, err)
	_, err = s.Settle(ctx, 1000)
	require.NoError(t, err)

	n := nodeAt(t, s.Frame(), "parse")
	require.NoError(t, s.Dispatch(ctx, interact.Event{Type: interact.Click, X: n.X, Y: n.Y}))
	assert.Equal(t, "parse", s.Frame().Selected)
	assert.Equal(t, render.DimmedOpacity, nodeAt(t, s.Frame(), "eval").Opacity)

	err = s.Dispatch(ctx, interact.Event{Type: "tap"})
	assert.True(t, errors.Is(err, interact.ErrUnknownEvent))
}

func TestDispatchDragRestartsLayout(t *testing.T) {
	s := start(t, nil)
	ctx := context.Background()
	_, err := s.LoadFull(ctx, callGraph())
	require.NoError(t, err)
	_, err = s.Settle(ctx, 1000)
	require.NoError(t, err)

	n := nodeAt(t, s.Frame(), "lex")
	require.NoError(t, s.Dispatch(ctx, interact.Event{Type: interact.PointerDown, X: n.X, Y: n.Y}))
	require.NoError(t, s.Dispatch(ctx, interact.Event{Type: interact.PointerMove, X: n.X + 40, Y: n.Y + 30}))

	moved := nodeAt(t, s.Frame(), "lex")
	assert.Equal(t, n.X+40, moved.X)
	assert.Equal(t, n.Y+30, moved.Y)
	assert.True(t, moved.Pinned)
	assert.True(t, moved.Dragging)

	require.NoError(t, s.Dispatch(ctx, interact.Event{Type: interact.PointerUp, X: n.X + 40, Y: n.Y + 30}))
	released := s.Frame()
	assert.False(t, nodeAt(t, released, "lex").Pinned)
	assert.Equal(t, layout.PhaseRunning.String(), released.Phase)

	require.Eventually(t, func() bool {
		return s.Frame().Phase == layout.PhaseSettled.String()
	}, 10*time.Second, 10*time.Millisecond)
}

func TestReloadKeepsFilter(t *testing.T) {
	s := start(t, nil)
	ctx := context.Background()
	_, err := s.LoadFull(ctx, callGraph())
	require.NoError(t, err)
	_, err = s.LoadFiltered(ctx, "parse")
	require.NoError(t, err)

	next := callGraph()
	next.AddNode("token")
	next.AddLink("lex", "token")
	status, err := s.Reload(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, "parse", status.Focus)
	assert.Equal(t, []string{"parse", "lex", "token"}, s.Graph().Nodes)

	gone := model.NewPayload()
	gone.AddNode("main")
	status, err = s.Reload(ctx, gone)
	require.NoError(t, err)
	assert.Empty(t, status.Focus)
	assert.Equal(t, []string{"main"}, s.Graph().Nodes)
}

func TestReloadOfSameGraphKeepsSettledLayout(t *testing.T) {
	s := start(t, nil)
	ctx := context.Background()
	_, err := s.LoadFull(ctx, callGraph())
	require.NoError(t, err)
	_, err = s.Settle(ctx, 1000)
	require.NoError(t, err)
	before := s.Frame()

	_, err = s.Reload(ctx, callGraph())
	require.NoError(t, err)
	after := s.Frame()
	assert.Equal(t, layout.PhaseSettled.String(), after.Phase)
	assert.Equal(t, before.Tick, after.Tick)
	assert.Equal(t, nodeAt(t, before, "lex").X, nodeAt(t, after, "lex").X)
	assert.Equal(t, pubsub.EventSettled, s.Status().State)
}

func TestCancelledRequestReturnsZeroResult(t *testing.T) {
	s := start(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})

	got, err := call(ctx, s, func() int {
		cancel()
		<-release
		return 42
	})
	close(release)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, got)

	status, err := s.LoadFull(context.Background(), callGraph())
	require.NoError(t, err)
	assert.Equal(t, 4, status.Nodes)
}

func TestPublishesStatusAndFrames(t *testing.T) {
	pub := pubsub.NewSSEPublisher()
	defer pub.Close()
	s := start(t, pub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	statusSub, err := pub.Subscribe(ctx, pubsub.TopicGraphStatus)
	require.NoError(t, err)
	frameSub, err := pub.Subscribe(ctx, pubsub.TopicLayout)
	require.NoError(t, err)

	_, err = s.LoadFull(ctx, callGraph())
	require.NoError(t, err)

	select {
	case ev := <-statusSub.Events():
		assert.Equal(t, pubsub.EventLoaded, ev.Type)
		var status pubsub.GraphStatus
		require.NoError(t, json.Unmarshal(ev.Data, &status))
		assert.Equal(t, 4, status.Nodes)
	case <-ctx.Done():
		t.Fatal("no status event")
	}

	select {
	case ev := <-frameSub.Events():
		assert.Equal(t, pubsub.EventFrame, ev.Type)
		var frame render.Frame
		require.NoError(t, json.Unmarshal(ev.Data, &frame))
		assert.Len(t, frame.Nodes, 4)
	case <-ctx.Done():
		t.Fatal("no frame event")
	}
}

func TestClosedSessionRejectsRequests(t *testing.T) {
	s := start(t, nil)
	s.Close()

	_, err := s.LoadFull(context.Background(), callGraph())
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestRender(t *testing.T) {
	frame, err := Render(context.Background(), callGraph(), testOptions(), 1000)
	require.NoError(t, err)
	assert.Equal(t, layout.PhaseSettled.String(), frame.Phase)
	assert.Len(t, frame.Nodes, 4)
	assert.Len(t, frame.Edges, 3)
}
