package callgraph

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ritzau/callflow/pkg/finder"
)

// MaxExtractedBytes bounds the total size written by ExtractZip
const MaxExtractedBytes = 256 << 20

var (
	// ErrUnsafePath is returned for archive entries that would land outside the destination
	ErrUnsafePath = errors.New("archive entry escapes destination")
	// ErrArchiveTooLarge is returned when extraction exceeds MaxExtractedBytes
	ErrArchiveTooLarge = errors.New("archive too large")
)

// ExtractZip unpacks a zip archive into dest and returns the number of files written.
// Directories that never hold analyzable source are skipped.
func ExtractZip(data []byte, dest string) (int, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to open zip: %w", err)
	}

	root, err := filepath.Abs(dest)
	if err != nil {
		return 0, err
	}

	written := 0
	var total int64
	for _, f := range r.File {
		target, err := safeJoin(root, f.Name)
		if err != nil {
			return written, err
		}
		if f.FileInfo().IsDir() || skipped(f.Name) {
			continue
		}
		if f.Mode()&os.ModeSymlink != 0 {
			continue
		}

		n, err := extractFile(f, target, MaxExtractedBytes-total)
		total += n
		if err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// safeJoin resolves name below root, rejecting absolute paths and parent references
func safeJoin(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(root, clean)
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

// skipped reports whether any directory on the entry path would be skipped by the finder
func skipped(name string) bool {
	parts := strings.Split(strings.Trim(name, "/"), "/")
	for _, dir := range parts[:len(parts)-1] {
		if finder.SkipDir(dir) {
			return true
		}
	}
	return false
}

func extractFile(f *zip.File, target string, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(rc, budget+1))
	if err != nil {
		return n, fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	if n > budget {
		return n, ErrArchiveTooLarge
	}
	return n, nil
}
