package deps

import "path/filepath"

// Resolver collects the transitive set of object files a link step must
// depend on, following header-inclusion chains. A header only contributes
// when a tracked object target exists for it; system and vendored headers
// have none and stop the walk.
type Resolver struct {
	SrcDir     string
	OutDir     string
	HeaderExts map[string]struct{}

	// TargetDeps looks up the recorded header dependencies of a tracked
	// object target, usually backed by the build graph.
	TargetDeps func(objTarget string) (map[string]struct{}, bool)
}

// Collect walks directDeps recursively, inserting every reachable tracked
// object target into acc. A header whose stem equals excludeStem is
// skipped: a translation unit must not link its own ordinary object when
// the test variant is the one being built. Termination is bounded by the
// membership check on acc; no object target is visited twice.
func (r *Resolver) Collect(acc map[string]struct{}, excludeStem string, directDeps, knownObjTargets map[string]struct{}) {
	for header := range directDeps {
		if Stem(header) == excludeStem {
			continue
		}
		if _, ok := r.HeaderExts[filepath.Ext(header)]; !ok {
			// Only headers map to objects.
			continue
		}

		objTarget := ObjectPath(header, r.SrcDir, r.OutDir)
		if _, ok := acc[objTarget]; ok {
			// Already collected; also breaks include diamonds and loops.
			continue
		}
		if _, ok := knownObjTargets[objTarget]; !ok {
			// No compile rule tracks this header.
			continue
		}

		acc[objTarget] = struct{}{}
		if deps, ok := r.TargetDeps(objTarget); ok {
			r.Collect(acc, excludeStem, deps, knownObjTargets)
		}
	}
}
