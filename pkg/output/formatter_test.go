package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/ritzau/callflow/pkg/graph"
	"github.com/ritzau/callflow/pkg/model"
)

func TestPrintReport(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	PrintReport(&buf, Report{
		Root:       "./demo",
		Entry:      "main",
		Functions:  4,
		Nodes:      6,
		Calls:      9,
		Dropped:    2,
		Reachable:  5,
		Depth:      3,
		Recursive:  []graph.RecursiveGroup{{Functions: []string{"even", "odd"}}},
		OutputPath: "codeflow.md",
	})

	out := buf.String()
	for _, want := range []string{
		"Source: ./demo",
		"Functions: 4 declared, 6 nodes",
		"Calls: 9",
		"Dropped: 2 call(s)",
		`Entry "main" reaches 5 function(s), 3 call(s) deep`,
		"even -> odd",
		"written to codeflow.md",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Summaries:") {
		t.Error("summary count should be omitted when zero")
	}
}

func TestPrintReportIsolatedEntry(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	PrintReport(&buf, Report{Entry: "main", Functions: 3, Reachable: 1})
	if !strings.Contains(buf.String(), `Entry "main" calls nothing known`) {
		t.Errorf("unexpected report:\n%s", buf.String())
	}
}

func TestEntryReach(t *testing.T) {
	cg, _ := graph.Build(
		[]string{"main", "load", "parse", "lex", "unused"},
		[]model.Link{
			{Source: "main", Target: "load"},
			{Source: "main", Target: "parse"},
			{Source: "parse", Target: "lex"},
			{Source: "lex", Target: "parse"},
		},
	)

	reachable, depth := EntryReach(cg, "main")
	if reachable != 4 || depth != 2 {
		t.Errorf("EntryReach(main) = %d, %d; want 4, 2", reachable, depth)
	}

	reachable, depth = EntryReach(cg, "missing")
	if reachable != 0 || depth != 0 {
		t.Errorf("EntryReach(missing) = %d, %d; want 0, 0", reachable, depth)
	}
}
