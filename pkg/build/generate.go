package build

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/kilnpkg/kiln/pkg/logging"
)

// Generate configures the build graph and writes the Makefile and, when
// the profile enables it, compile_commands.json. Artifacts that are
// already newer than every input are left alone. It reports whether
// anything was regenerated.
func (p *Planner) Generate(ctx context.Context) (bool, error) {
	buildMake := !p.MakefileUpToDate()
	buildDB := p.prof.CompDB && !p.CompDBUpToDate()
	if !buildMake && !buildDB {
		logging.DebugContext(ctx, "build files are up to date", "outDir", p.outDir)
		return false, nil
	}

	if err := p.Configure(ctx); err != nil {
		return false, err
	}

	if buildMake {
		var buf bytes.Buffer
		if err := p.g.EmitMakefile(&buf); err != nil {
			return false, err
		}
		path := filepath.Join(p.outDir, "Makefile")
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return false, err
		}
		logging.DebugContext(ctx, "wrote Makefile", "path", path)
	}

	if buildDB {
		data, err := p.EmitCompDB()
		if err != nil {
			return false, err
		}
		path := filepath.Join(p.outDir, "compile_commands.json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return false, err
		}
		logging.DebugContext(ctx, "wrote compilation database", "path", path)
	}

	return true, nil
}
