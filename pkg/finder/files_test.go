package finder

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("package x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFindGoFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"main.go",
		"README.md",
		"pkg/parse/parse.go",
		"pkg/parse/parse_test.go",
		"vendor/dep/dep.go",
		"testdata/fixture.go",
		".git/hooks/hook.go",
		".cache/gen.go",
	)

	files, err := FindGoFiles(root)
	if err != nil {
		t.Fatalf("FindGoFiles() error = %v", err)
	}

	var rel []string
	for _, f := range files {
		r, err := filepath.Rel(root, f)
		if err != nil {
			t.Fatal(err)
		}
		rel = append(rel, filepath.ToSlash(r))
	}
	slices.Sort(rel)

	want := []string{"main.go", "pkg/parse/parse.go", "pkg/parse/parse_test.go"}
	if !slices.Equal(rel, want) {
		t.Errorf("FindGoFiles() = %v, want %v", rel, want)
	}
}

func TestFindGoFilesMissingRoot(t *testing.T) {
	if _, err := FindGoFiles(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("FindGoFiles() expected error for missing root")
	}
}

func TestSkipDir(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"vendor", true},
		{".git", true},
		{".idea", true},
		{"_examples", true},
		{".", false},
		{"pkg", false},
		{"internal", false},
	}
	for _, tt := range tests {
		if got := SkipDir(tt.name); got != tt.want {
			t.Errorf("SkipDir(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
