// Package deps discovers header dependencies through the compiler and maps
// them onto object-file targets.
package deps

import (
	"context"
	"fmt"
	"strings"

	"github.com/kilnpkg/kiln/pkg/command"
	"github.com/kilnpkg/kiln/pkg/compiler"
)

// Extraction is the parsed output of the compiler's dependency-listing
// mode for one source file: the object target stem it names plus the set
// of headers the translation unit includes.
type Extraction struct {
	Target  string // e.g. "main.o"
	Headers map[string]struct{}
}

// Extractor invokes the compiler's dependency-listing mode.
type Extractor struct {
	tc      *compiler.Toolchain
	runner  *command.Runner
	workDir string
}

// NewExtractor creates an extractor that runs the compiler from workDir.
func NewExtractor(tc *compiler.Toolchain, runner *command.Runner, workDir string) *Extractor {
	return &Extractor{tc: tc, runner: runner, workDir: workDir}
}

// Extract lists the header dependencies of one source file. With test set,
// the test macro is defined so test-only includes are seen too. A compiler
// failure is a hard error for this file.
func (e *Extractor) Extract(ctx context.Context, sourceFile string, test bool) (Extraction, error) {
	cmd := e.tc.DepListCmd(sourceFile)
	if test {
		cmd = cmd.WithArgs("-D" + compiler.TestMacro)
	}
	cmd = cmd.WithDir(e.workDir)

	out, err := e.runner.Output(ctx, cmd)
	if err != nil {
		return Extraction{}, fmt.Errorf("listing dependencies of %s: %w", sourceFile, err)
	}
	return ParseDepOutput(out), nil
}

// ParseDepOutput parses the `target: dep dep \`-style text the compiler
// prints. The first dependency is the source file itself and is dropped;
// the caller already knows it. Line-continuation backslashes are noise.
func ParseDepOutput(raw string) Extraction {
	target, rest, _ := strings.Cut(raw, ":")

	headers := make(map[string]struct{})
	first := true
	for _, tok := range strings.Fields(rest) {
		if tok == "\\" {
			continue
		}
		if first {
			first = false
			continue
		}
		headers[tok] = struct{}{}
	}

	return Extraction{
		Target:  strings.TrimSpace(target),
		Headers: headers,
	}
}
