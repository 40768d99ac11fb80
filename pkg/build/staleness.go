package build

import (
	"io/fs"
	"os"
	"path/filepath"
)

// artifactUpToDate reports whether the named artifact in outDir exists
// and is at least as new as every file under src/ and the manifest.
func (p *Planner) artifactUpToDate(name string) bool {
	info, err := os.Stat(filepath.Join(p.outDir, name))
	if err != nil {
		return false
	}
	artifactTime := info.ModTime()

	if mi, err := os.Stat(p.Manifest.Path); err != nil || mi.ModTime().After(artifactTime) {
		return false
	}

	stale := false
	_ = filepath.WalkDir(p.Manifest.SrcDir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			stale = true
			return fs.SkipAll
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil || fi.ModTime().After(artifactTime) {
			stale = true
			return fs.SkipAll
		}
		return nil
	})
	return !stale
}

// MakefileUpToDate reports whether the emitted Makefile needs no
// regeneration.
func (p *Planner) MakefileUpToDate() bool {
	return p.artifactUpToDate("Makefile")
}

// CompDBUpToDate reports whether compile_commands.json needs no
// regeneration.
func (p *Planner) CompDBUpToDate() bool {
	return p.artifactUpToDate("compile_commands.json")
}
