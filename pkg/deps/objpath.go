package deps

import (
	"path/filepath"
	"strings"
)

// ObjectPath maps a source or header path to its object file, mirroring
// the path's layout below srcDir under outDir.
//
// e.g. src/path/to/header.h -> out/path/to/header.o
//
// Pure and infallible: callers only pass paths inside srcDir, so the
// relative computation cannot fail in practice.
func ObjectPath(path, srcDir, outDir string) string {
	rel, _ := filepath.Rel(srcDir, filepath.Dir(path))
	base := outDir
	if rel != "." && rel != "" {
		base = filepath.Join(outDir, rel)
	}
	return filepath.Join(base, Stem(path)+".o")
}

// MirrorDir maps a source file's directory below srcDir to the matching
// directory under outDir.
func MirrorDir(path, srcDir, outDir string) string {
	rel, _ := filepath.Rel(srcDir, filepath.Dir(path))
	if rel == "." || rel == "" {
		return outDir
	}
	return filepath.Join(outDir, rel)
}

// Stem returns the file name without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
