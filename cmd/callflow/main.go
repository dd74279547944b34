package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ritzau/callflow/pkg/config"
	"github.com/ritzau/callflow/pkg/logging"
	"github.com/ritzau/callflow/pkg/summaries"
)

func main() {
	fs := pflag.NewFlagSet("callflow", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: callflow [flags] [path] [entry-func]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	// Modes
	fs.Bool("web", false, "Start the interactive web server")
	fs.Int("port", 8080, "Port for web server (only used with --web)")
	fs.Bool("watch", false, "Re-analyze when .go files change")
	fs.Bool("open", true, "Open the browser (only used with --web)")

	// Output
	fs.StringP("output", "o", "codeflow.md", "Markdown file for the Mermaid call tree")
	fs.String("svg", "", "Also lay out the graph and write it as SVG to this file")
	fs.Int("max-ticks", 1000, "Tick limit for the headless layout")

	// Layout
	fs.Int("tick-hz", 60, "Layout ticks per second in the web view")
	fs.Float64("width", 600, "Layout width")
	fs.Float64("height", 400, "Layout height")
	fs.Float64("charge", -400, "Many-body strength, negative repels")
	fs.Float64("link-distance", 100, "Target length of call edges")
	fs.Float64("theta", 0.9, "Barnes-Hut accuracy for large graphs")
	fs.Uint64("seed", 1, "Seed for tie-breaking jitter")

	// Summaries
	fs.Bool("summaries", false, "Summarize functions with OpenAI (needs OPENAI_API_KEY)")
	fs.String("model", "gpt-4o-mini", "Chat model used for summaries")

	// Logging
	fs.CountP("verbose", "v", "Increase verbosity (-v debug, -vv trace)")
	fs.String("verbosity", "", "Log level (error, warn, info, debug, trace)")
	fs.Bool("json-logs", false, "Log as JSON")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logging.Configure(level, cfg.JSONLogs)

	args := fs.Args()
	if len(args) > 0 {
		cfg.Source = args[0]
	}
	if len(args) > 1 {
		cfg.Entry = args[1]
	}
	if len(args) > 2 {
		fs.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg}
	a.summarizer, err = newSummarizer(cfg.Summaries)
	if err != nil {
		logging.Warn("Summaries disabled", "error", err)
	}

	if cfg.WebMode {
		err = a.runWeb(ctx)
	} else {
		err = a.runCLI(ctx)
	}
	if err != nil && ctx.Err() == nil {
		logging.Error("callflow failed", "error", err)
		os.Exit(1)
	}
}

// newSummarizer returns nil without error when summaries are disabled
func newSummarizer(cfg config.SummariesConfig) (summaries.Summarizer, error) {
	s, err := summaries.FromConfig(cfg)
	if err != nil || s == nil {
		return nil, err
	}
	return s, nil
}
