package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/ritzau/callflow/pkg/analysis"
	"github.com/ritzau/callflow/pkg/callgraph"
	"github.com/ritzau/callflow/pkg/config"
	"github.com/ritzau/callflow/pkg/graph"
	"github.com/ritzau/callflow/pkg/logging"
	"github.com/ritzau/callflow/pkg/model"
	"github.com/ritzau/callflow/pkg/output"
	"github.com/ritzau/callflow/pkg/session"
	"github.com/ritzau/callflow/pkg/summaries"
	"github.com/ritzau/callflow/pkg/watcher"
	"github.com/ritzau/callflow/pkg/web"
)

type app struct {
	cfg        *config.Config
	summarizer summaries.Summarizer
}

func (a *app) runner(opts ...analysis.RunnerOption) *analysis.AnalysisRunner {
	if a.summarizer != nil {
		opts = append(opts, analysis.WithSummarizer(a.summarizer, a.cfg.Summaries.Concurrency))
	}
	return analysis.NewAnalysisRunner(a.cfg.Source, opts...)
}

// runCLI writes the Mermaid document, optionally an SVG, and prints a report.
// With --watch it repeats on every change until interrupted.
func (a *app) runCLI(ctx context.Context) error {
	runner := a.runner()
	if err := a.generate(ctx, runner, "initial analysis"); err != nil {
		return err
	}
	if !a.cfg.Watch {
		return nil
	}
	return a.watch(ctx, func(ctx context.Context, _ *watcher.ChangeAnalysis) {
		if err := a.generate(ctx, runner, "source changed"); err != nil {
			logging.Error("Regeneration failed", "error", err)
		}
	})
}

func (a *app) generate(ctx context.Context, runner *analysis.AnalysisRunner, reason string) error {
	funcs, err := runner.Run(ctx, analysis.AnalysisOptions{Reason: reason})
	if err != nil {
		return err
	}
	payload := funcs.Payload()

	if a.cfg.Output != "" {
		if err := writeMermaid(a.cfg.Output, funcs, a.cfg.Entry); err != nil {
			return err
		}
	}

	if a.cfg.SVG != "" {
		if err := a.writeSVG(ctx, payload); err != nil {
			return err
		}
		logging.Info("SVG written", "path", a.cfg.SVG)
	}

	cg, dropped := graph.FromPayload(payload)
	reachable, depth := output.EntryReach(cg, a.cfg.Entry)
	if reachable == 0 {
		logging.Warn("Entry function not found", "entry", a.cfg.Entry)
	}
	output.PrintReport(os.Stdout, output.Report{
		Root:       a.cfg.Source,
		Entry:      a.cfg.Entry,
		Functions:  len(funcs),
		Nodes:      cg.Len(),
		Calls:      len(payload.Links),
		Dropped:    dropped,
		Reachable:  reachable,
		Depth:      depth,
		Summaries:  len(payload.Summaries),
		Recursive:  cg.RecursiveGroups(),
		OutputPath: a.cfg.Output,
	})
	return nil
}

func writeMermaid(path string, funcs callgraph.Functions, entry string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	n, err := output.WriteMermaid(f, funcs, entry)
	if err != nil {
		return err
	}
	logging.Debug("Mermaid diagram written", "path", path, "nodes", n)
	return f.Close()
}

func (a *app) writeSVG(ctx context.Context, payload *model.Payload) error {
	frame, err := session.Render(ctx, payload, session.OptionsFromConfig(a.cfg), a.cfg.MaxTicks)
	if err != nil {
		return err
	}

	f, err := os.Create(a.cfg.SVG)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", a.cfg.SVG, err)
	}
	defer f.Close()

	if err := frame.WriteSVG(f); err != nil {
		return err
	}
	return f.Close()
}

// runWeb serves the interactive view. The source tree is analyzed in the background and
// re-analyzed on change with --watch until an upload replaces it.
func (a *app) runWeb(ctx context.Context) error {
	pub := web.NewPublisher()
	defer pub.Close()

	sess := session.New(session.OptionsFromConfig(a.cfg), pub)
	go sess.Run(ctx)
	defer sess.Close()

	server := web.NewServer(sess, pub, web.Options{
		Summarizer:  a.summarizer,
		Concurrency: a.cfg.Summaries.Concurrency,
	})

	runner := a.runner(analysis.WithLoader(sess), analysis.WithPublisher(pub))
	go func() {
		if _, err := runner.Run(ctx, analysis.AnalysisOptions{Reason: "initial analysis"}); err != nil {
			logging.Warn("Initial analysis failed, waiting for an upload", "source", a.cfg.Source, "error", err)
		}
	}()

	if a.cfg.Watch {
		go func() {
			err := a.watch(ctx, func(ctx context.Context, change *watcher.ChangeAnalysis) {
				if server.Uploaded() {
					logging.Info("Uploaded graph in view, ignoring source change", "changed_dirs", len(change.ChangedDirs))
					return
				}
				_, err := runner.Run(ctx, analysis.AnalysisOptions{Reload: true, Reason: "source changed"})
				if err != nil {
					logging.Error("Re-analysis failed", "error", err, "changed_dirs", len(change.ChangedDirs))
				}
			})
			if err != nil && ctx.Err() == nil {
				logging.Error("Watcher stopped", "error", err)
			}
		}()
	}

	if a.cfg.OpenBrowser {
		go func() {
			// Wait a moment for server to start
			time.Sleep(500 * time.Millisecond)
			openBrowser(fmt.Sprintf("http://localhost:%d", a.cfg.Port))
		}()
	}

	return server.Start(ctx, a.cfg.Port)
}

// watch calls onChange for every debounced batch that needs a reparse until ctx is done
func (a *app) watch(ctx context.Context, onChange func(context.Context, *watcher.ChangeAnalysis)) error {
	fw, err := watcher.NewFileWatcher(a.cfg.Source)
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Start(ctx); err != nil {
		return err
	}

	debouncer := watcher.NewDebouncer(fw.Events(), 300*time.Millisecond, 2*time.Second)
	debouncer.Start(ctx)

	for batch := range debouncer.Output() {
		change := watcher.AnalyzeChanges(batch)
		if !change.NeedReparse {
			continue
		}
		logging.Info("Source changed", "files", len(change.ChangedFiles), "module", change.ModuleChanged)
		onChange(ctx, change)
	}
	return ctx.Err()
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		logging.Warn("Cannot open browser on platform", "os", runtime.GOOS)
		return
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		logging.Warn("Failed to open browser", "error", err)
	}
}
