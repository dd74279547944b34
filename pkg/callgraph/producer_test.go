package callgraph

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/ritzau/callflow/pkg/model"
)

const mainSrc = `package main

import "fmt"

func main() {
	cfg := load()
	run(cfg)
	fmt.Println("done")
}

func load() string { return helper() }

func run(s string) {
	go func() { helper() }()
	run(s)
}

func helper() string { return "" }
`

func TestAnalyzeSource(t *testing.T) {
	funcs, err := NewProducer().AnalyzeSource("main.go", []byte(mainSrc))
	if err != nil {
		t.Fatalf("AnalyzeSource() error = %v", err)
	}

	if len(funcs) != 4 {
		t.Fatalf("AnalyzeSource() found %d functions, want 4", len(funcs))
	}

	main := funcs["main"]
	if want := []string{"load", "run", "Println"}; !slices.Equal(main.Calls, want) {
		t.Errorf("main calls = %v, want %v", main.Calls, want)
	}
	if main.File != "main.go" || main.Line != 5 {
		t.Errorf("main position = %s:%d, want main.go:5", main.File, main.Line)
	}
	if !strings.HasPrefix(main.SourceCode, "func main()") {
		t.Errorf("main source = %q", main.SourceCode)
	}

	// The literal itself is not a call target, but calls inside it count
	if want := []string{"helper", "run"}; !slices.Equal(funcs["run"].Calls, want) {
		t.Errorf("run calls = %v, want %v", funcs["run"].Calls, want)
	}
	if len(funcs["helper"].Calls) != 0 {
		t.Errorf("helper calls = %v, want none", funcs["helper"].Calls)
	}
}

func TestAnalyzeSourceSyntaxError(t *testing.T) {
	if _, err := NewProducer().AnalyzeSource("bad.go", []byte("package main\nfunc {")); err == nil {
		t.Error("AnalyzeSource() expected error for invalid source")
	}
}

func TestPayload(t *testing.T) {
	funcs, err := NewProducer().AnalyzeSource("main.go", []byte(mainSrc))
	if err != nil {
		t.Fatal(err)
	}
	funcs["helper"].Summary = "Returns nothing."

	p := funcs.Payload()

	want := []string{"Println", "helper", "load", "main", "run"}
	if !slices.Equal(p.Nodes, want) {
		t.Errorf("Payload() nodes = %v, want %v", p.Nodes, want)
	}
	if len(p.Links) != 6 {
		t.Errorf("Payload() links = %d, want 6", len(p.Links))
	}
	if !slices.Contains(p.Links, model.Link{Source: "run", Target: "run"}) {
		t.Error("Payload() lost the recursive call")
	}
	if p.Summaries["helper"] != "Returns nothing." {
		t.Errorf("Payload() summaries = %v", p.Summaries)
	}
}

func TestAnalyzeDir(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"main.go":          "package main\nfunc main() { a.String(); parse() }\n",
		"parse/parse.go":   "package parse\nfunc parse() { lex() }\nfunc lex() {}\n",
		"types/types.go":   "package types\ntype T struct{}\nfunc (T) String() string { return fmt() }\n",
		"broken/broken.go": "package broken\nfunc {",
		"vendor/v/v.go":    "package v\nfunc vendored() {}\n",
	}
	for name, src := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	funcs, err := NewProducer().AnalyzeDir(context.Background(), root)
	if err != nil {
		t.Fatalf("AnalyzeDir() error = %v", err)
	}

	var names []string
	for name := range funcs {
		names = append(names, name)
	}
	slices.Sort(names)
	if want := []string{"String", "lex", "main", "parse"}; !slices.Equal(names, want) {
		t.Errorf("AnalyzeDir() functions = %v, want %v", names, want)
	}
	if got := funcs["main"].Calls; !slices.Equal(got, []string{"String", "parse"}) {
		t.Errorf("main calls = %v", got)
	}
}

func TestAnalyzeDirMergesSameName(t *testing.T) {
	root := t.TempDir()
	src := "package p\ntype A struct{}\ntype B struct{}\nfunc (A) Run() { a() }\nfunc (B) Run() { b() }\n"
	if err := os.WriteFile(filepath.Join(root, "p.go"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	funcs, err := NewProducer().AnalyzeDir(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if got := funcs["Run"].Calls; !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Run calls = %v, want [a b]", got)
	}
	if funcs["Run"].Line != 4 {
		t.Errorf("Run line = %d, want first declaration", funcs["Run"].Line)
	}
}

func TestAnalyzeDirCancelled(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProducer().AnalyzeDir(ctx, root); err == nil {
		t.Error("AnalyzeDir() expected error for cancelled context")
	}
}
