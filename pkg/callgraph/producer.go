package callgraph

import (
	"bytes"
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"

	"github.com/ritzau/callflow/pkg/finder"
	"github.com/ritzau/callflow/pkg/logging"
	"github.com/ritzau/callflow/pkg/model"
)

// Functions maps a function name to its declaration info
type Functions map[string]*model.FunctionInfo

// Payload converts the functions into a graph payload
func (f Functions) Payload() *model.Payload {
	return model.BuildPayload(f)
}

// Producer extracts call graphs from Go source
type Producer struct {
	fset *token.FileSet
}

// NewProducer creates a producer with a fresh file set
func NewProducer() *Producer {
	return &Producer{fset: token.NewFileSet()}
}

// AnalyzeDir parses every Go file below root.
// Files that fail to parse are logged and skipped.
func (p *Producer) AnalyzeDir(ctx context.Context, root string) (Functions, error) {
	files, err := finder.FindGoFiles(root)
	if err != nil {
		return nil, fmt.Errorf("failed to find go files in %s: %w", root, err)
	}
	logging.Debug("Found source files", "root", root, "count", len(files))

	funcs := make(Functions)
	parsed := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file, err := parser.ParseFile(p.fset, path, nil, parser.AllErrors)
		if err != nil {
			logging.Warn("Skipping unparsable file", "file", path, "error", err)
			continue
		}
		p.collect(funcs, file)
		parsed++
	}

	logging.Info("Analyzed source tree", "root", root, "files", parsed, "skipped", len(files)-parsed,
		"functions", len(funcs))
	return funcs, nil
}

// AnalyzeSource parses a single Go file held in memory
func (p *Producer) AnalyzeSource(name string, src []byte) (Functions, error) {
	file, err := parser.ParseFile(p.fset, name, src, parser.AllErrors)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	funcs := make(Functions)
	p.collect(funcs, file)
	return funcs, nil
}

// collect adds every function declaration with a body to funcs.
// Declarations sharing a name (methods on different types) merge into one node.
func (p *Producer) collect(funcs Functions, file *ast.File) {
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			continue
		}

		name := fn.Name.Name
		calls := Calls(fn.Body)

		info, exists := funcs[name]
		if exists {
			info.Calls = append(info.Calls, calls...)
			continue
		}

		pos := p.fset.Position(fn.Pos())
		src, err := p.source(fn)
		if err != nil {
			logging.Debug("Could not print declaration", "function", name, "error", err)
		}
		funcs[name] = &model.FunctionInfo{
			Name:       name,
			File:       pos.Filename,
			Line:       pos.Line,
			Calls:      calls,
			SourceCode: src,
		}
	}
}

func (p *Producer) source(fn *ast.FuncDecl) (string, error) {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, p.fset, fn); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Calls returns the callee names of every call expression below n, in source order.
// A plain call contributes its identifier; a qualified call contributes the selected name.
// Calls of function literals or other expressions are ignored.
func Calls(n ast.Node) []string {
	calls := []string{}
	ast.Inspect(n, func(node ast.Node) bool {
		call, ok := node.(*ast.CallExpr)
		if !ok {
			return true
		}
		switch fun := call.Fun.(type) {
		case *ast.Ident:
			calls = append(calls, fun.Name)
		case *ast.SelectorExpr:
			calls = append(calls, fun.Sel.Name)
		}
		return true
	})
	return calls
}
