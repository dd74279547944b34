package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ritzau/callflow/pkg/model"
	"github.com/ritzau/callflow/pkg/pubsub"
)

type recordingLoader struct {
	full, reload int
	last         *model.Payload
	err          error
}

func (l *recordingLoader) LoadFull(_ context.Context, p *model.Payload) (pubsub.GraphStatus, error) {
	l.full++
	l.last = p
	return pubsub.GraphStatus{Nodes: len(p.Nodes)}, l.err
}

func (l *recordingLoader) Reload(_ context.Context, p *model.Payload) (pubsub.GraphStatus, error) {
	l.reload++
	l.last = p
	return pubsub.GraphStatus{Nodes: len(p.Nodes)}, l.err
}

type countingSummarizer struct {
	calls atomic.Int32
}

func (s *countingSummarizer) Summarize(context.Context, string) (string, error) {
	s.calls.Add(1)
	return "Does work.", nil
}

func writeSource(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	src := "package main\nfunc main() { run() }\nfunc run() {}\n"
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestRunLoadsResult(t *testing.T) {
	loader := &recordingLoader{}
	runner := NewAnalysisRunner(writeSource(t), WithLoader(loader))

	funcs, err := runner.Run(context.Background(), AnalysisOptions{Reason: "initial analysis"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(funcs) != 2 {
		t.Errorf("Run() found %d functions, want 2", len(funcs))
	}
	if loader.full != 1 || loader.reload != 0 {
		t.Errorf("LoadFull/Reload calls = %d/%d, want 1/0", loader.full, loader.reload)
	}
	if len(loader.last.Nodes) != 2 {
		t.Errorf("loaded %d nodes, want 2", len(loader.last.Nodes))
	}

	if _, err := runner.Run(context.Background(), AnalysisOptions{Reload: true, Reason: "source changed"}); err != nil {
		t.Fatal(err)
	}
	if loader.reload != 1 {
		t.Errorf("Reload calls = %d, want 1", loader.reload)
	}
}

func TestRunSummariesReusesUnchanged(t *testing.T) {
	root := writeSource(t)
	loader := &recordingLoader{}
	summarizer := &countingSummarizer{}
	runner := NewAnalysisRunner(root, WithLoader(loader), WithSummarizer(summarizer, 2))

	if _, err := runner.Run(context.Background(), AnalysisOptions{}); err != nil {
		t.Fatal(err)
	}
	if loader.last.Summaries["run"] != "Does work." {
		t.Errorf("summaries = %v", loader.last.Summaries)
	}
	if got := summarizer.calls.Load(); got != 2 {
		t.Fatalf("Summarize calls = %d, want 2", got)
	}

	// Only the edited declaration is summarized again
	src := "package main\nfunc main() { run(); run() }\nfunc run() {}\n"
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runner.Run(context.Background(), AnalysisOptions{Reload: true}); err != nil {
		t.Fatal(err)
	}
	if got := summarizer.calls.Load(); got != 3 {
		t.Errorf("Summarize calls = %d, want 3", got)
	}
	if len(loader.last.Summaries) != 2 {
		t.Errorf("summaries = %v, want both functions", loader.last.Summaries)
	}
}

func TestRunPublishesProgressAndErrors(t *testing.T) {
	pub := pubsub.NewSSEPublisher()
	defer pub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sub, err := pub.Subscribe(ctx, pubsub.TopicGraphStatus)
	if err != nil {
		t.Fatal(err)
	}

	runner := NewAnalysisRunner(filepath.Join(t.TempDir(), "missing"), WithPublisher(pub))
	if _, err := runner.Run(ctx, AnalysisOptions{}); err == nil {
		t.Fatal("Run() expected error for missing root")
	}

	var states []string
	for len(states) < 2 {
		select {
		case ev := <-sub.Events():
			states = append(states, ev.Type)
		case <-ctx.Done():
			t.Fatalf("got states %v", states)
		}
	}
	if states[0] != pubsub.EventLoading || states[1] != pubsub.EventError {
		t.Errorf("states = %v, want [loading error]", states)
	}
}

func TestRunLoaderError(t *testing.T) {
	loader := &recordingLoader{err: errors.New("session closed")}
	runner := NewAnalysisRunner(writeSource(t), WithLoader(loader))

	if _, err := runner.Run(context.Background(), AnalysisOptions{}); err == nil {
		t.Error("Run() expected loader error")
	}
}

func TestRunWithoutLoader(t *testing.T) {
	funcs, err := NewAnalysisRunner(writeSource(t)).Run(context.Background(), AnalysisOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got := funcs["main"].Calls; len(got) != 1 || got[0] != "run" {
		t.Errorf("main calls = %v", got)
	}
}
