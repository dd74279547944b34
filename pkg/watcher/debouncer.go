package watcher

import (
	"context"
	"time"

	"github.com/ritzau/callflow/pkg/logging"
)

// Debouncer batches rapid file system events to avoid excessive re-analysis.
// A batch is emitted once no event arrived for quietPeriod, or maxWait after its first event.
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan []ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan []ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

// run owns all timers; nothing is shared with other goroutines
func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	var (
		quiet       <-chan time.Time
		deadline    <-chan time.Time
		accumulated = make(map[ChangeType][]string)
		first       time.Time
		eventCount  int
	)

	flush := func() {
		quiet, deadline = nil, nil
		if eventCount == 0 {
			return
		}

		logging.Debug("Flushing accumulated events", "count", eventCount, "waited", time.Since(first))

		// Module changes first, they invalidate the most
		var batch []ChangeEvent
		for _, t := range []ChangeType{ChangeTypeModule, ChangeTypeDirectory, ChangeTypeSource} {
			if paths := accumulated[t]; len(paths) > 0 {
				batch = append(batch, ChangeEvent{Type: t, Paths: paths, Timestamp: time.Now()})
			}
		}

		accumulated = make(map[ChangeType][]string)
		eventCount = 0

		select {
		case d.output <- batch:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}

			if eventCount == 0 {
				first = time.Now()
				deadline = time.After(d.maxWait)
			}
			accumulated[event.Type] = append(accumulated[event.Type], event.Paths...)
			eventCount++
			quiet = time.After(d.quietPeriod)

		case <-quiet:
			flush()

		case <-deadline:
			flush()
		}
	}
}

// Output returns the channel of debounced batches
func (d *Debouncer) Output() <-chan []ChangeEvent {
	return d.output
}
