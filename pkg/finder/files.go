package finder

import (
	"io/fs"
	"path/filepath"
	"sort"
)

// FindSourceFiles walks srcDir and returns every file whose extension is
// in exts, sorted for deterministic pass ordering.
func FindSourceFiles(srcDir string, exts map[string]struct{}) ([]string, error) {
	var sourceFiles []string

	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := exts[filepath.Ext(path)]; ok {
			sourceFiles = append(sourceFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(sourceFiles)
	return sourceFiles, nil
}
