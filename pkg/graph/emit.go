package graph

import (
	"bufio"
	"io"
	"strings"
)

// maxLineLen is where emitted lines break with a backslash continuation.
const maxLineLen = 80

// EmitMakefile writes the graph in the build tool's text form: variables in
// topological order, the .PHONY and all aggregates, then one stanza per
// target. Targets are emitted in reverse topological order so that a target
// with no dependents comes last.
func (g *Graph) EmitMakefile(w io.Writer) error {
	sortedVars, err := TopoSort(g.variables, g.varDeps)
	if err != nil {
		return err
	}
	sortedTargets, err := TopoSort(g.targets, g.targetDeps)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	for _, name := range sortedVars {
		emitVariable(bw, name, g.variables[name])
	}
	if len(sortedVars) > 0 && len(sortedTargets) > 0 {
		bw.WriteByte('\n')
	}

	if g.phony != nil {
		emitTarget(bw, ".PHONY", sortedSet(g.phony), "", nil)
	}
	if g.all != nil {
		emitTarget(bw, "all", sortedSet(g.all), "", nil)
	}

	for i := len(sortedTargets) - 1; i >= 0; i-- {
		name := sortedTargets[i]
		t := g.targets[name]
		emitTarget(bw, name, sortedSet(t.Deps), t.SourceFile, t.Commands)
	}
	return bw.Flush()
}

// emitDep writes one prerequisite, wrapping with a backslash in column 80
// when the line would run long.
func emitDep(w *bufio.Writer, offset *int, dep string) {
	if *offset+len(dep)+2 > maxLineLen { // 2 for space and backslash
		// offset runs one ahead of the written width; the backslash
		// must land exactly in column 80.
		w.WriteString(pad(maxLineLen-1-*offset) + " \\\n ")
		*offset = 2
	}
	w.WriteString(" " + dep)
	*offset += len(dep) + 1
}

func emitTarget(w *bufio.Writer, name string, deps []string, sourceFile string, commands []string) {
	offset := 0

	w.WriteString(name + ":")
	offset += len(name) + 2

	if sourceFile != "" {
		emitDep(w, &offset, sourceFile)
	}
	for _, dep := range deps {
		emitDep(w, &offset, dep)
	}
	w.WriteByte('\n')

	for _, cmd := range commands {
		w.WriteByte('\t')
		if !strings.HasPrefix(cmd, "@") {
			w.WriteString("$(Q)")
		}
		w.WriteString(cmd)
		w.WriteByte('\n')
	}
	w.WriteByte('\n')
}

func emitVariable(w *bufio.Writer, name string, v Variable) {
	left := name + " " + v.Kind.Operator()
	w.WriteString(left + " ")
	offset := len(left) + 1

	words := strings.Split(v.Value, " ")
	for i, word := range words {
		last := i == len(words)-1
		if offset+len(word)+2 > maxLineLen { // 2 for space and backslash
			w.WriteString(pad(maxLineLen-1-offset) + "\\\n  ")
			offset = 2
		}
		if last {
			w.WriteString(word)
		} else {
			w.WriteString(word + " ")
			offset += len(word) + 1
		}
	}
	w.WriteByte('\n')
}

func pad(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}
