package watcher

import (
	"path/filepath"
	"slices"
)

// ChangeAnalysis describes what changed and what has to be redone
type ChangeAnalysis struct {
	NeedReparse   bool     // Function declarations may have changed
	ModuleChanged bool     // go.mod or go.sum changed
	ChangedFiles  []string // All changed paths, sorted and unique
	ChangedDirs   []string // Directories of changed paths, sorted and unique
}

// AnalyzeChanges folds a debounced batch into one decision
func AnalyzeChanges(batch []ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{}

	for _, event := range batch {
		switch event.Type {
		case ChangeTypeModule:
			// Module changes can move the whole tree under a new path
			analysis.ModuleChanged = true
			analysis.NeedReparse = true
		case ChangeTypeSource, ChangeTypeDirectory:
			analysis.NeedReparse = true
		}

		for _, path := range event.Paths {
			analysis.ChangedFiles = append(analysis.ChangedFiles, path)
			dir := path
			if event.Type != ChangeTypeDirectory {
				dir = filepath.Dir(path)
			}
			analysis.ChangedDirs = append(analysis.ChangedDirs, dir)
		}
	}

	slices.Sort(analysis.ChangedFiles)
	analysis.ChangedFiles = slices.Compact(analysis.ChangedFiles)
	slices.Sort(analysis.ChangedDirs)
	analysis.ChangedDirs = slices.Compact(analysis.ChangedDirs)
	return analysis
}
