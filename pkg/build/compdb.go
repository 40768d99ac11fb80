package build

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/kilnpkg/kiln/pkg/compiler"
)

func relTo(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return rel
}

type compDBEntry struct {
	Directory string `json:"directory"`
	File      string `json:"file"`
	Output    string `json:"output"`
	Command   string `json:"command"`
}

func isCompileTarget(cmds []string) bool {
	for _, c := range cmds {
		c = strings.TrimPrefix(c, "@")
		if strings.HasPrefix(c, "$(CXX)") && strings.Contains(c, " -c ") {
			return true
		}
	}
	return false
}

// EmitCompDB renders the compile_commands.json document: one entry per
// compile target, with fully expanded command lines. Test objects get
// the test macro so editor tooling sees the test variant.
func (p *Planner) EmitCompDB() ([]byte, error) {
	dir := p.Manifest.Dir()
	entries := []compDBEntry{}

	for _, name := range p.g.TargetNames() {
		if p.g.IsPhony(name) {
			continue
		}
		t, _ := p.g.Target(name)
		if t.SourceFile == "" || !isCompileTarget(t.Commands) {
			continue
		}

		cmd := p.tc.CompileCmd(t.SourceFile, name)
		if strings.HasPrefix(name, p.testDir+string(filepath.Separator)) {
			cmd = cmd.WithArgs("-D" + compiler.TestMacro)
		}

		entries = append(entries, compDBEntry{
			Directory: dir,
			File:      relTo(dir, t.SourceFile),
			Output:    relTo(dir, name),
			Command:   cmd.String(),
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
