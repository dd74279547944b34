package session

import (
	"context"
	"fmt"

	"github.com/ritzau/callflow/pkg/layout"
	"github.com/ritzau/callflow/pkg/model"
	"github.com/ritzau/callflow/pkg/render"
)

// Render lays out a payload without a browser and returns the final frame.
// The layout runs until it settles or maxTicks ticks have passed.
func Render(ctx context.Context, p *model.Payload, opts Options, maxTicks int) (*render.Frame, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := New(opts, nil)
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()
	defer func() {
		s.Close()
		<-errc
	}()

	status, err := s.LoadFull(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	ticks, err := s.Settle(ctx, maxTicks)
	if err != nil {
		return nil, fmt.Errorf("failed to settle layout: %w", err)
	}

	frame := s.Frame()
	if frame.Phase != layout.PhaseSettled.String() && status.Nodes > 0 {
		s.log.Warn("Layout did not settle", "max_ticks", maxTicks, "alpha", frame.Alpha)
	}
	s.log.Debug("Rendered headless", "nodes", status.Nodes, "ticks", ticks)
	return frame, nil
}
