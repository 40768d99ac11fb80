// Package build orchestrates build-graph construction: it discovers the
// project's sources and entry points, runs the graph build passes, and
// emits the Makefile and compilation database.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kilnpkg/kiln/pkg/command"
	"github.com/kilnpkg/kiln/pkg/compiler"
	"github.com/kilnpkg/kiln/pkg/deps"
	"github.com/kilnpkg/kiln/pkg/finder"
	"github.com/kilnpkg/kiln/pkg/graph"
	"github.com/kilnpkg/kiln/pkg/logging"
	"github.com/kilnpkg/kiln/pkg/manifest"
	"github.com/kilnpkg/kiln/pkg/output"
)

const (
	linkBinCommand    = "$(CXX) $(LDFLAGS) $^ $(LIBS) -o $@"
	archiveLibCommand = "ar rcs $@ $^"
)

// Planner derives the build graph for one configure run. It is built,
// configured and consumed once; a new run takes a new Planner.
type Planner struct {
	Manifest *manifest.Manifest
	Profile  string

	prof   manifest.Profile
	tc     *compiler.Toolchain
	runner *command.Runner
	jobs   int

	g         *graph.Graph
	extractor *deps.Extractor
	detector  *deps.TestDetector
	resolver  *deps.Resolver

	libName          string
	hasBinaryTarget  bool
	hasLibraryTarget bool

	outDir  string // kiln-out/<profile>
	objDir  string // ordinary object files
	testDir string // test objects and test binaries

	// The graph lock: guards the graph and the two target indexes while
	// parallel workers publish their results. Never held across a
	// compiler invocation.
	mu          sync.Mutex
	objTargets  map[string]struct{}
	testTargets map[string]struct{}
}

// NewPlanner prepares a planner for the given manifest and profile.
// jobs sets the fan-out of the graph build passes; 1 runs sequentially.
func NewPlanner(m *manifest.Manifest, profileName string, tc *compiler.Toolchain, runner *command.Runner, jobs int) (*Planner, error) {
	prof, ok := m.Profiles[profileName]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q", profileName)
	}
	if jobs < 1 {
		jobs = 1
	}

	libName := m.Package.Name + ".a"
	if !strings.HasPrefix(m.Package.Name, "lib") {
		libName = "lib" + libName
	}

	outDir := filepath.Join(m.Dir(), "kiln-out", profileName)
	p := &Planner{
		Manifest:    m,
		Profile:     profileName,
		prof:        prof,
		tc:          tc,
		runner:      runner,
		jobs:        jobs,
		g:           graph.New(),
		libName:     libName,
		outDir:      outDir,
		objDir:      filepath.Join(outDir, "obj"),
		testDir:     filepath.Join(outDir, "unittests"),
		objTargets:  make(map[string]struct{}),
		testTargets: make(map[string]struct{}),
	}
	p.extractor = deps.NewExtractor(tc, runner, outDir)
	p.detector = deps.NewTestDetector(tc, runner)
	p.resolver = &deps.Resolver{
		SrcDir:     m.SrcDir(),
		OutDir:     p.objDir,
		HeaderExts: m.HeaderExts(),
		TargetDeps: func(objTarget string) (map[string]struct{}, bool) {
			t, ok := p.g.Target(objTarget)
			if !ok {
				return nil, false
			}
			return t.Deps, true
		},
	}
	return p, nil
}

// Graph exposes the derived build graph. Valid after Configure.
func (p *Planner) Graph() *graph.Graph {
	return p.g
}

// OutDir returns the profile's output directory.
func (p *Planner) OutDir() string {
	return p.outDir
}

// HasBinaryTarget reports whether the project has a src/main.* entry point.
// Valid after Configure.
func (p *Planner) HasBinaryTarget() bool {
	return p.hasBinaryTarget
}

// HasLibraryTarget reports whether the project has a src/lib.* entry point.
// Valid after Configure.
func (p *Planner) HasLibraryTarget() bool {
	return p.hasLibraryTarget
}

// LibName returns the archive file name for the library target.
func (p *Planner) LibName() string {
	return p.libName
}

// TestTargetCount returns the number of test binaries derived. Valid
// after Configure.
func (p *Planner) TestTargetCount() int {
	return len(p.testTargets)
}

// isEntry matches source files named like an entry point (stem main or lib).
func isEntry(path, stem string, srcExts map[string]struct{}) bool {
	if _, ok := srcExts[filepath.Ext(path)]; !ok {
		return false
	}
	return deps.Stem(path) == stem
}

// findEntry scans the top level of srcDir for the single source file with
// the given stem. Multiple candidates are a configuration error.
func findEntry(srcDir, stem string, srcExts map[string]struct{}) (string, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return "", err
	}
	found := ""
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(srcDir, e.Name())
		if !isEntry(path, stem, srcExts) {
			continue
		}
		if found != "" {
			return "", fmt.Errorf("multiple %s sources were found in %s", stem, srcDir)
		}
		found = path
	}
	return found, nil
}

// Configure derives the full build graph: compile targets for every
// source file, output targets for the binary and library entry points,
// test targets for sources containing effective test code, and the tidy
// pass. It does not emit anything; see Generate.
func (p *Planner) Configure(ctx context.Context) error {
	m := p.Manifest
	srcDir := m.SrcDir()
	srcExts := m.SourceExts()

	if _, err := os.Stat(srcDir); err != nil {
		return fmt.Errorf("%s is required but not found", srcDir)
	}

	mainSource, err := findEntry(srcDir, "main", srcExts)
	if err != nil {
		return err
	}
	libSource, err := findEntry(srcDir, "lib", srcExts)
	if err != nil {
		return err
	}
	p.hasBinaryTarget = mainSource != ""
	p.hasLibraryTarget = libSource != ""
	if !p.hasBinaryTarget && !p.hasLibraryTarget {
		return fmt.Errorf("neither src/main nor src/lib source file was found in %s", srcDir)
	}

	if err := os.MkdirAll(p.outDir, 0o755); err != nil {
		return err
	}

	p.setVariables()

	all := make(map[string]struct{})
	if p.hasBinaryTarget {
		all[filepath.Join(p.outDir, m.Package.Name)] = struct{}{}
	}
	if p.hasLibraryTarget {
		all[filepath.Join(p.outDir, p.libName)] = struct{}{}
	}
	p.g.SetAll(all)
	p.g.AddPhony("all")

	sources, err := finder.FindSourceFiles(srcDir, srcExts)
	if err != nil {
		return err
	}
	for _, src := range sources {
		if src != mainSource && isEntry(src, "main", srcExts) {
			output.Warn("source file `%s` is named `main` but is not located directly in `src/`; "+
				"it will not be treated as the program's entry point", src)
		} else if src != libSource && isEntry(src, "lib", srcExts) {
			output.Warn("source file `%s` is named `lib` but is not located directly in `src/`; "+
				"it will not be treated as the library entry point", src)
		}
	}
	p.g.DefineSimpleVar("SRCS", strings.Join(sources, " "))

	// Source pass: one compile target per source file.
	logging.DebugContext(ctx, "building compile targets", "sources", len(sources), "jobs", p.jobs)
	if err := p.runPass(ctx, sources, p.processSrc); err != nil {
		return err
	}

	if p.hasBinaryTarget {
		if err := p.defineOutputTarget(
			filepath.Join(p.objDir, "main.o"),
			[]string{linkBinCommand},
			filepath.Join(p.outDir, m.Package.Name),
		); err != nil {
			return err
		}
	}
	if p.hasLibraryTarget {
		if err := p.defineOutputTarget(
			filepath.Join(p.objDir, "lib.o"),
			[]string{archiveLibCommand},
			filepath.Join(p.outDir, p.libName),
		); err != nil {
			return err
		}
	}

	// Test pass: runs only once the full object-target index is known.
	logging.DebugContext(ctx, "building test targets", "jobs", p.jobs)
	if err := p.runPass(ctx, sources, p.processTestSrc); err != nil {
		return err
	}

	p.defineTidyTargets()
	return nil
}

func (p *Planner) setVariables() {
	cxxflags, defines, includes := p.tc.VariableValues()
	ldflags, libs := p.tc.LdVariableValues()

	// Q hides command echo; run `make Q=` to see full command lines.
	p.g.DefineCondVar("Q", "@")
	p.g.DefineSimpleVar("CXX", p.tc.CXX)
	p.g.DefineSimpleVar("CXXFLAGS", cxxflags)
	p.g.DefineSimpleVar("DEFINES", defines)
	p.g.DefineSimpleVar("INCLUDES", includes)
	p.g.DefineSimpleVar("LDFLAGS", ldflags)
	p.g.DefineSimpleVar("LIBS", libs)
}

func (p *Planner) defineTidyTargets() {
	p.g.DefineCondVar("KILN_TIDY", "clang-tidy")
	p.g.DefineSimpleVar("TIDY_TARGETS", "$(patsubst %,tidy_%,$(SRCS))", "SRCS")
	p.g.DefineTarget("tidy", nil, map[string]struct{}{"$(TIDY_TARGETS)": {}}, "")
	p.g.DefineTarget("$(TIDY_TARGETS)",
		[]string{"$(KILN_TIDY) $(KILN_TIDY_FLAGS) $< -- $(CXXFLAGS) $(DEFINES) -D" +
			compiler.TestMacro + " $(INCLUDES)"},
		map[string]struct{}{"tidy_%: %": {}}, "")
	p.g.AddPhony("tidy")
	p.g.AddPhony("$(TIDY_TARGETS)")
}

// defineOutputTarget declares the binary or archive target whose
// dependency set is the transitive object closure seeded from the entry
// point's object.
func (p *Planner) defineOutputTarget(inputObj string, commands []string, outPath string) error {
	input, ok := p.g.Target(inputObj)
	if !ok {
		return fmt.Errorf("entry object %s has no compile target", inputObj)
	}
	targetDeps := map[string]struct{}{inputObj: {}}
	p.resolver.Collect(targetDeps, "", input.Deps, p.objTargets)
	p.g.DefineTarget(outPath, commands, targetDeps, "")
	return nil
}

// defineCompileTarget declares one object target. Callers hold the graph
// lock when running inside a pass.
func (p *Planner) defineCompileTarget(objTarget, sourceFile string, headers map[string]struct{}, isTest bool) {
	compile := "$(CXX) $(CXXFLAGS) $(DEFINES) $(INCLUDES)"
	if isTest {
		compile += " -D" + compiler.TestMacro
	}
	compile += " -c $< -o $@"
	p.g.DefineTarget(objTarget, []string{"@mkdir -p $(@D)", compile}, headers, sourceFile)
}
