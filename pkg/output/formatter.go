package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ritzau/callflow/pkg/graph"
	"github.com/ritzau/callflow/pkg/lens"
)

// Report summarizes one analysis run
type Report struct {
	Root       string
	Entry      string
	Functions  int // Declared functions
	Nodes      int
	Calls      int
	Dropped    int
	Reachable  int // Functions in the tree below Entry, Entry included
	Depth      int // Longest shortest call chain from Entry
	Summaries  int
	Recursive  []graph.RecursiveGroup
	OutputPath string
}

// EntryReach counts the functions reachable from entry and the hop depth of the farthest one
func EntryReach(g lens.Source, entry string) (reachable, depth int) {
	distances := lens.ComputeDistances(g, entry)
	for _, d := range distances {
		depth = max(depth, d)
	}
	return len(distances), depth
}

// PrintReport prints a nicely formatted analysis report with colors
func PrintReport(w io.Writer, r Report) {
	// Color definitions
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	bold.Fprintln(w, "Go Call Flow - Analysis Report")
	bold.Fprintln(w, "==============================")
	fmt.Fprintf(w, "Source: %s\n", r.Root)
	fmt.Fprintf(w, "Functions: %d declared, %d nodes\n", r.Functions, r.Nodes)
	fmt.Fprintf(w, "Calls: %d\n", r.Calls)
	if r.Dropped > 0 {
		yellow.Fprintf(w, "Dropped: %d call(s) to unknown functions\n", r.Dropped)
	}
	if r.Summaries > 0 {
		cyan.Fprintf(w, "Summaries: %d\n", r.Summaries)
	}
	fmt.Fprintln(w)

	// Entry reachability
	switch {
	case r.Reachable <= 1 && r.Functions > 0:
		red.Fprintf(w, "Entry %q calls nothing known\n", r.Entry)
	default:
		green.Fprintf(w, "Entry %q reaches %d function(s), %d call(s) deep\n", r.Entry, r.Reachable, r.Depth)
	}

	// Recursion
	if len(r.Recursive) > 0 {
		yellow.Fprintln(w, "RECURSION:")
		for _, g := range r.Recursive {
			cyan.Fprintf(w, "  %s\n", strings.Join(g.Functions, " -> "))
		}
		fmt.Fprintln(w)
	}

	if r.OutputPath != "" {
		green.Fprintf(w, "✓ Mermaid diagram written to %s\n", r.OutputPath)
	}
}
