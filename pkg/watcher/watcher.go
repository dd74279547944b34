package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/callflow/pkg/finder"
	"github.com/ritzau/callflow/pkg/logging"
)

// batchWindow is how long raw events are collected before a batch is emitted
const batchWindow = 100 * time.Millisecond

// ChangeType represents the type of file change detected
type ChangeType int

const (
	ChangeTypeSource    ChangeType = iota // A .go file was written, created, removed or renamed
	ChangeTypeModule                      // go.mod or go.sum changed
	ChangeTypeDirectory                   // A directory appeared or vanished
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypeSource:
		return "source"
	case ChangeTypeModule:
		return "module"
	case ChangeTypeDirectory:
		return "directory"
	}
	return fmt.Sprintf("ChangeType(%d)", int(t))
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// FileWatcher watches a source tree for changes to Go files
type FileWatcher struct {
	watcher *fsnotify.Watcher
	root    string
	events  chan ChangeEvent
	close   sync.Once
}

// NewFileWatcher creates a new file system watcher for a source tree
func NewFileWatcher(root string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher: watcher,
		root:    root,
		events:  make(chan ChangeEvent, 100),
	}

	return fw, nil
}

// Start adds every source directory to the watch list and begins processing events.
// The events channel is closed when ctx is done.
func (fw *FileWatcher) Start(ctx context.Context) error {
	count, err := fw.watchTree(fw.root)
	if err != nil {
		return err
	}
	logging.Info("Started watching source tree", "path", fw.root, "directories", count)

	go fw.processEvents(ctx)
	return nil
}

// watchTree adds dir and all directories below it that may hold source
func (fw *FileWatcher) watchTree(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil // Skip entries we can't access
		}
		if !d.IsDir() {
			return nil
		}
		if path != fw.root && finder.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			logging.Warn("Failed to watch directory", "path", path, "error", err)
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	return count, nil
}

// classify maps one raw event onto a change type; ok is false for irrelevant files
func (fw *FileWatcher) classify(event fsnotify.Event) (ChangeType, bool) {
	name := filepath.Base(event.Name)
	switch {
	case name == "go.mod" || name == "go.sum":
		return ChangeTypeModule, true
	case finder.IsGoFile(name):
		return ChangeTypeSource, true
	case event.Has(fsnotify.Create) && isDir(event.Name):
		if finder.SkipDir(name) {
			return 0, false
		}
		if _, err := fw.watchTree(event.Name); err != nil {
			logging.Warn("Failed to watch new directory", "path", event.Name, "error", err)
		}
		return ChangeTypeDirectory, true
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		// A vanished entry without extension is most likely a directory
		if filepath.Ext(name) == "" && !finder.SkipDir(name) {
			return ChangeTypeDirectory, true
		}
	}
	return 0, false
}

// processEvents processes file system events and batches them by type
func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer fw.Close()
	defer close(fw.events)

	// Batch events to avoid sending one event per file
	batches := make(map[ChangeType][]string)

	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()

	flush := func() {
		for _, t := range []ChangeType{ChangeTypeModule, ChangeTypeDirectory, ChangeTypeSource} {
			paths := batches[t]
			if len(paths) == 0 {
				continue
			}
			select {
			case fw.events <- ChangeEvent{Type: t, Paths: paths, Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			}
			delete(batches, t)
		}
	}

	for {
		select {
		case <-ctx.Done():
			flushTimer.Stop()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				flush()
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			t, relevant := fw.classify(event)
			if !relevant {
				continue
			}
			logging.Debug("File changed", "path", event.Name, "op", event.Op.String(), "type", t)
			batches[t] = append(batches[t], event.Name)
			flushTimer.Reset(batchWindow)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Close stops the underlying watcher; safe to call more than once
func (fw *FileWatcher) Close() error {
	var err error
	fw.close.Do(func() { err = fw.watcher.Close() })
	return err
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
