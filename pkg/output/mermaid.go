package output

import (
	"bufio"
	"fmt"
	"io"
	"slices"

	"github.com/ritzau/callflow/pkg/model"
)

var classDefs = []string{
	"classDef entryFunc fill:#f96,stroke:#333,stroke-width:2px,font-weight:bold,font-size:18px,color:#000;",
	"classDef leafFunc fill:#6f9,stroke:#333,stroke-width:1px,font-style:italic,font-size:14px,color:#000;",
	"classDef normalFunc fill:#fff,stroke:#333,stroke-width:1px,font-size:16px,color:#000;",
}

// WriteMermaid writes a markdown document with the call tree below entry as a Mermaid
// flowchart, followed by a collapsible summary block per summarized function.
// It returns the number of functions in the tree.
func WriteMermaid(w io.Writer, funcs map[string]*model.FunctionInfo, entry string) (int, error) {
	bw := bufio.NewWriter(w)

	fmt.Fprint(bw, "# 🔁 Function Call Graph\n\n")
	fmt.Fprintln(bw, "```mermaid")
	fmt.Fprintln(bw, "graph LR")
	for _, def := range classDefs {
		fmt.Fprintln(bw, def)
	}

	tree := &mermaidTree{w: bw, funcs: funcs, entry: entry, visited: make(map[string]bool)}
	tree.visit(entry)
	fmt.Fprintln(bw, "```")

	names := make([]string, 0, len(funcs))
	for name, info := range funcs {
		if info.Summary != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	if len(names) > 0 {
		fmt.Fprint(bw, "\n## 📘 Function Summaries\n\n")
		for _, name := range names {
			fmt.Fprintf(bw, "<details>\n<summary><strong>%s</strong></summary>\n\n", name)
			fmt.Fprintln(bw, "```go")
			fmt.Fprintln(bw, funcs[name].Summary)
			fmt.Fprint(bw, "```\n</details>\n\n")
		}
	}

	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("failed to write mermaid: %w", err)
	}
	return len(tree.visited), nil
}

type mermaidTree struct {
	w       io.Writer
	funcs   map[string]*model.FunctionInfo
	entry   string
	visited map[string]bool
}

// visit prints fn and then each call in source order, descending depth-first
func (t *mermaidTree) visit(fn string) {
	if t.visited[fn] {
		return
	}
	t.visited[fn] = true

	var callees []string
	if info, ok := t.funcs[fn]; ok {
		callees = info.Calls
	}

	fmt.Fprintf(t.w, "    %s[%q]:::%s\n", fn, fn, Classify(fn, t.entry, len(callees)))
	for _, callee := range callees {
		fmt.Fprintf(t.w, "    %s --> %s\n", fn, callee)
		t.visit(callee)
	}
}

// Classify returns the node class for a function in a tree rooted at entry
func Classify(fn, entry string, calls int) model.NodeClass {
	switch {
	case fn == entry:
		return model.NodeClassEntry
	case calls == 0:
		return model.NodeClassLeaf
	default:
		return model.NodeClassNormal
	}
}
