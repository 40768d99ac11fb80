// Package compiler builds the command lines for the C++ toolchain.
// The graph engine never assembles compiler flags itself; it asks this
// package for complete commands.
package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kilnpkg/kiln/pkg/command"
	"github.com/kilnpkg/kiln/pkg/manifest"
)

// TestMacro marks test code in source files. Compiling with it defined
// selects the test variant of a translation unit.
const TestMacro = "KILN_TEST"

// Toolchain is the configured compiler plus the accumulated flag model.
type Toolchain struct {
	CXX  string
	Opts Options
}

// New resolves the compiler from $CXX, falling back to c++.
func New() *Toolchain {
	cxx := os.Getenv("CXX")
	if cxx == "" {
		cxx = "c++"
	}
	return &Toolchain{CXX: cxx}
}

// Setup applies the project and profile configuration to the flag model:
// language edition, include/, profile flags, package version macros,
// system dependencies and environment flag overrides, in that order.
func (t *Toolchain) Setup(ctx context.Context, m *manifest.Manifest, profileName string, runner *command.Runner) error {
	prof, ok := m.Profiles[profileName]
	if !ok {
		return fmt.Errorf("unknown profile %q", profileName)
	}

	includeDir := filepath.Join(m.Dir(), "include")
	if _, err := os.Stat(includeDir); err == nil {
		t.Opts.CFlags.IncludeDirs = append(t.Opts.CFlags.IncludeDirs,
			IncludeDir{Dir: includeDir, System: false})
	}
	t.Opts.CFlags.Others = append(t.Opts.CFlags.Others, "-std=c++"+m.Package.Edition)

	if prof.Debug {
		t.Opts.CFlags.Others = append(t.Opts.CFlags.Others, "-g")
		t.Opts.CFlags.Macros = append(t.Opts.CFlags.Macros, Macro{Name: "DEBUG"})
	} else {
		t.Opts.CFlags.Macros = append(t.Opts.CFlags.Macros, Macro{Name: "NDEBUG"})
	}
	t.Opts.CFlags.Others = append(t.Opts.CFlags.Others, fmt.Sprintf("-O%d", prof.OptLevel))
	if prof.LTO {
		t.Opts.CFlags.Others = append(t.Opts.CFlags.Others, "-flto")
	}
	t.Opts.CFlags.Others = append(t.Opts.CFlags.Others, prof.CXXFlags...)
	t.Opts.LdFlags.Others = append(t.Opts.LdFlags.Others, prof.LDFlags...)

	major, minor, patch := m.VersionParts()
	t.Opts.CFlags.Macros = append(t.Opts.CFlags.Macros,
		Macro{Name: "PKG_NAME", Value: fmt.Sprintf("%q", m.Package.Name)},
		Macro{Name: "PKG_VERSION", Value: fmt.Sprintf("%q", m.Package.Version)},
		Macro{Name: "PKG_VERSION_MAJOR", Value: major},
		Macro{Name: "PKG_VERSION_MINOR", Value: minor},
		Macro{Name: "PKG_VERSION_PATCH", Value: patch},
	)

	for _, dep := range m.SysDeps {
		opts, err := PkgConfigOptions(ctx, runner, dep.Name, dep.Version)
		if err != nil {
			return fmt.Errorf("resolving system dependency %s: %w", dep.Name, err)
		}
		t.Opts.Merge(opts)
	}

	// Environment variables take the highest precedence and come last.
	t.Opts.CFlags.Others = append(t.Opts.CFlags.Others, ParseEnvFlags(os.Getenv("CXXFLAGS"))...)
	t.Opts.LdFlags.Others = append(t.Opts.LdFlags.Others, ParseEnvFlags(os.Getenv("LDFLAGS"))...)

	return nil
}

func (t *Toolchain) cflagArgs() []string {
	var args []string
	for _, m := range t.Opts.CFlags.Macros {
		args = append(args, m.String())
	}
	for _, d := range t.Opts.CFlags.IncludeDirs {
		args = append(args, d.String())
	}
	args = append(args, t.Opts.CFlags.Others...)
	return args
}

// DepListCmd returns the compiler's dependency-listing invocation (-MM)
// for one source file.
func (t *Toolchain) DepListCmd(src string) command.Command {
	return command.New(t.CXX, "-MM").WithArgs(t.cflagArgs()...).WithArgs(src)
}

// PreprocessCmd returns the preprocess-only invocation (-E) for one
// source file.
func (t *Toolchain) PreprocessCmd(src string) command.Command {
	return command.New(t.CXX, "-E").WithArgs(t.cflagArgs()...).WithArgs(src)
}

// CompileCmd returns the full compile invocation for one source file and
// its object output.
func (t *Toolchain) CompileCmd(src, obj string) command.Command {
	return command.New(t.CXX).WithArgs(t.cflagArgs()...).WithArgs("-c", src, "-o", obj)
}

// VariableValues renders the compile-time flag model the way the emitted
// Makefile variables expect it, split into CXXFLAGS, DEFINES and INCLUDES.
func (t *Toolchain) VariableValues() (cxxflags, defines, includes string) {
	var macroStrs, includeStrs []string
	for _, m := range t.Opts.CFlags.Macros {
		macroStrs = append(macroStrs, m.String())
	}
	for _, d := range t.Opts.CFlags.IncludeDirs {
		includeStrs = append(includeStrs, d.String())
	}
	return strings.Join(t.Opts.CFlags.Others, " "),
		strings.Join(macroStrs, " "),
		strings.Join(includeStrs, " ")
}

// LdVariableValues renders the link-time flag model for the LDFLAGS and
// LIBS Makefile variables.
func (t *Toolchain) LdVariableValues() (ldflags, libs string) {
	parts := append([]string(nil), t.Opts.LdFlags.Others...)
	for _, dir := range t.Opts.LdFlags.LibDirs {
		parts = append(parts, "-L"+dir)
	}
	var libStrs []string
	for _, lib := range t.Opts.LdFlags.Libs {
		libStrs = append(libStrs, "-l"+lib)
	}
	return strings.Join(parts, " "), strings.Join(libStrs, " ")
}
