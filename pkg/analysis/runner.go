package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ritzau/callflow/pkg/callgraph"
	"github.com/ritzau/callflow/pkg/logging"
	"github.com/ritzau/callflow/pkg/model"
	"github.com/ritzau/callflow/pkg/pubsub"
	"github.com/ritzau/callflow/pkg/summaries"
)

// Loader receives analyzed graphs; a session satisfies it
type Loader interface {
	LoadFull(ctx context.Context, p *model.Payload) (pubsub.GraphStatus, error)
	Reload(ctx context.Context, p *model.Payload) (pubsub.GraphStatus, error)
}

// AnalysisRunner orchestrates the analysis process
type AnalysisRunner struct {
	root        string
	loader      Loader           // Optional
	publisher   pubsub.Publisher // Optional
	summarizer  summaries.Summarizer
	concurrency int
	cache       map[string]string // Summary per printed declaration
	mu          sync.Mutex        // Prevent concurrent analysis runs
}

// AnalysisOptions configures which analysis phases to run
type AnalysisOptions struct {
	Reload bool   // Keep layout state when loading the result
	Reason string // e.g., "initial analysis", "source changed"
}

// RunnerOption configures an AnalysisRunner
type RunnerOption func(*AnalysisRunner)

// WithLoader loads every result into l
func WithLoader(l Loader) RunnerOption {
	return func(ar *AnalysisRunner) { ar.loader = l }
}

// WithPublisher publishes progress on the graph status topic
func WithPublisher(p pubsub.Publisher) RunnerOption {
	return func(ar *AnalysisRunner) { ar.publisher = p }
}

// WithSummarizer fills function summaries using s with the given parallelism
func WithSummarizer(s summaries.Summarizer, concurrency int) RunnerOption {
	return func(ar *AnalysisRunner) {
		ar.summarizer = s
		ar.concurrency = concurrency
	}
}

// NewAnalysisRunner creates a new analysis runner for a source tree
func NewAnalysisRunner(root string, opts ...RunnerOption) *AnalysisRunner {
	ar := &AnalysisRunner{root: root, cache: make(map[string]string)}
	for _, opt := range opts {
		opt(ar)
	}
	return ar
}

// Run executes the analysis with the given options and returns the functions found
func (ar *AnalysisRunner) Run(ctx context.Context, opts AnalysisOptions) (callgraph.Functions, error) {
	// Lock to prevent concurrent analysis
	ar.mu.Lock()
	defer ar.mu.Unlock()

	logging.Info("Starting analysis", "reason", opts.Reason, "root", ar.root)

	// Phase 1: Parse
	ar.publishStatus(pubsub.EventLoading, "Parsing Go sources...")
	info, err := os.Stat(ar.root)
	if err == nil && !info.IsDir() {
		err = fmt.Errorf("%s is not a directory", ar.root)
	}
	if err != nil {
		return nil, ar.fail(fmt.Errorf("cannot read source path: %w", err))
	}

	funcs, err := callgraph.NewProducer().AnalyzeDir(ctx, ar.root)
	if err != nil {
		return nil, ar.fail(err)
	}

	// Phase 2: Summaries
	if ar.summarizer != nil {
		if err := ar.summarize(ctx, funcs); err != nil {
			return nil, ar.fail(fmt.Errorf("summaries interrupted: %w", err))
		}
	}

	// Phase 3: Load
	if ar.loader != nil {
		load := ar.loader.LoadFull
		if opts.Reload {
			load = ar.loader.Reload
		}
		status, err := load(ctx, funcs.Payload())
		if err != nil {
			return nil, ar.fail(fmt.Errorf("failed to load graph: %w", err))
		}
		logging.Info("Graph loaded", "nodes", status.Nodes, "edges", status.Edges, "focus", status.Focus)
	}

	logging.Info("Analysis complete", "reason", opts.Reason, "functions", len(funcs))
	return funcs, nil
}

// summarize reuses summaries of declarations that did not change since the last run
func (ar *AnalysisRunner) summarize(ctx context.Context, funcs callgraph.Functions) error {
	reused := 0
	for _, info := range funcs {
		if summary, ok := ar.cache[info.SourceCode]; ok {
			info.Summary = summary
			reused++
		}
	}

	ar.publishStatus(pubsub.EventLoading, fmt.Sprintf("Summarizing %d functions...", len(funcs)-reused))
	n, err := summaries.Fill(ctx, ar.summarizer, funcs, ar.concurrency)
	if err != nil {
		return err
	}

	clear(ar.cache)
	for _, info := range funcs {
		if info.Summary != "" && info.SourceCode != "" {
			ar.cache[info.SourceCode] = info.Summary
		}
	}
	logging.Info("Generated summaries", "count", n, "reused", reused)
	return nil
}

func (ar *AnalysisRunner) fail(err error) error {
	if !errors.Is(err, context.Canceled) {
		ar.publishStatus(pubsub.EventError, err.Error())
	}
	return err
}

func (ar *AnalysisRunner) publishStatus(state, message string) {
	if ar.publisher == nil {
		return
	}
	status := pubsub.GraphStatus{State: state, Message: message}
	if err := ar.publisher.Publish(pubsub.TopicGraphStatus, state, status); err != nil && !errors.Is(err, pubsub.ErrClosed) {
		logging.Warn("Failed to publish status", "state", state, "error", err)
	}
}
