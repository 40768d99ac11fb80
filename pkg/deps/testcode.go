package deps

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/kilnpkg/kiln/pkg/command"
	"github.com/kilnpkg/kiln/pkg/compiler"
	"github.com/kilnpkg/kiln/pkg/logging"
)

// TestDetector decides whether a source file contains effective test code.
type TestDetector struct {
	tc     *compiler.Toolchain
	runner *command.Runner
}

// NewTestDetector creates a detector using the given toolchain.
func NewTestDetector(tc *compiler.Toolchain, runner *command.Runner) *TestDetector {
	return &TestDetector{tc: tc, runner: runner}
}

// ContainsTestCode reports whether compiling sourceFile with the test
// macro defined produces different code. A cheap textual scan filters out
// files that never mention the marker; for the rest, the file is
// preprocessed twice and the outputs compared, so a marker inside a
// comment or dead branch does not count.
//
// Known limitation: a preprocessor that embeds varying output (timestamp
// macros and the like) across the two runs can yield a false positive.
func (d *TestDetector) ContainsTestCode(ctx context.Context, sourceFile string) (bool, error) {
	data, err := os.ReadFile(sourceFile)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", sourceFile, err)
	}
	if !bytes.Contains(data, []byte(compiler.TestMacro)) {
		return false, nil
	}

	cmd := d.tc.PreprocessCmd(sourceFile)
	plain, err := d.runner.Output(ctx, cmd)
	if err != nil {
		return false, fmt.Errorf("preprocessing %s: %w", sourceFile, err)
	}
	withMacro, err := d.runner.Output(ctx, cmd.WithArgs("-D"+compiler.TestMacro))
	if err != nil {
		return false, fmt.Errorf("preprocessing %s: %w", sourceFile, err)
	}

	containsTest := plain != withMacro
	if containsTest {
		logging.TraceContext(ctx, "found test code", "file", sourceFile)
	}
	return containsTest, nil
}
