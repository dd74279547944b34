package finder

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// skipDirs are never descended into
var skipDirs = map[string]bool{
	".git":         true,
	"vendor":       true,
	"testdata":     true,
	"node_modules": true,
}

// FindGoFiles walks root and returns all .go files in walk order,
// excluding vendored code, test fixtures and ignored directories.
func FindGoFiles(root string) ([]string, error) {
	var sourceFiles []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if IsGoFile(path) {
			sourceFiles = append(sourceFiles, path)
		}

		return nil
	})

	return sourceFiles, err
}

// SkipDir reports whether a directory with the given base name holds no analyzable source.
// Like the go tool, directories starting with "." or "_" are ignored.
func SkipDir(name string) bool {
	if skipDirs[name] {
		return true
	}
	return len(name) > 1 && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_"))
}

// IsGoFile reports whether path names a Go source file
func IsGoFile(path string) bool {
	return filepath.Ext(path) == ".go"
}
