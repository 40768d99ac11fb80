package build

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kilnpkg/kiln/pkg/command"
	"github.com/kilnpkg/kiln/pkg/compiler"
	"github.com/kilnpkg/kiln/pkg/manifest"
)

// writeProject lays out a small project on disk:
//
//	main.cc -> util.h
//	util.cc -> util.h helper.h   (contains test code)
//	helper.cc -> helper.h
func writeProject(t *testing.T) *manifest.Manifest {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"kiln.toml": "[package]\nname = \"hello\"\nversion = \"0.1.0\"\n",
		"src/main.cc": `#include "util.h"
int main() { return add(1, 2); }
`,
		"src/util.cc": `#include "util.h"
#include "helper.h"
int add(int a, int b) { return a + b; }
#ifdef ` + compiler.TestMacro + `
int main() { return add(1, 2) == 3 ? 0 : 1; }
#endif
`,
		"src/util.h":   "int add(int a, int b);\n",
		"src/helper.cc": "#include \"helper.h\"\nint helper() { return 1; }\n",
		"src/helper.h":  "int helper();\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	m, err := manifest.Load(filepath.Join(dir, manifest.FileName))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// projectExecutor mocks the compiler for the project writeProject lays out.
func projectExecutor(m *manifest.Manifest) *command.MockExecutor {
	src := m.SrcDir()
	j := func(name string) string { return filepath.Join(src, name) }

	depOut := func(target string, deps ...string) command.Output {
		return command.Output{Stdout: target + ": " + strings.Join(deps, " ") + "\n"}
	}

	return &command.MockExecutor{
		Outputs: map[string]command.Output{
			"c++ -MM " + j("main.cc"):   depOut("main.o", j("main.cc"), j("util.h")),
			"c++ -MM " + j("helper.cc"): depOut("helper.o", j("helper.cc"), j("helper.h")),
			"c++ -MM " + j("util.cc"):   depOut("util.o", j("util.cc"), j("util.h"), j("helper.h")),
			"c++ -MM " + j("util.cc") + " -D" + compiler.TestMacro: depOut(
				"util.o", j("util.cc"), j("util.h"), j("helper.h")),
			"c++ -E " + j("util.cc"):                               {Stdout: "int add(int, int);\n"},
			"c++ -E " + j("util.cc") + " -D" + compiler.TestMacro:  {Stdout: "int add(int, int);\nint main();\n"},
		},
	}
}

func newTestPlanner(t *testing.T, m *manifest.Manifest, jobs int) *Planner {
	t.Helper()
	tc := &compiler.Toolchain{CXX: "c++"}
	runner := command.NewRunner(projectExecutor(m))
	p, err := NewPlanner(m, "dev", tc, runner, jobs)
	if err != nil {
		t.Fatalf("NewPlanner() error = %v", err)
	}
	return p
}

func TestConfigureBuildsFullGraph(t *testing.T) {
	m := writeProject(t)
	p := newTestPlanner(t, m, 1)

	if err := p.Configure(context.Background()); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if !p.HasBinaryTarget() {
		t.Error("project has src/main.cc, expected a binary target")
	}
	if p.HasLibraryTarget() {
		t.Error("project has no src/lib.*, expected no library target")
	}

	g := p.Graph()
	mainObj := filepath.Join(p.OutDir(), "obj", "main.o")
	utilObj := filepath.Join(p.OutDir(), "obj", "util.o")
	helperObj := filepath.Join(p.OutDir(), "obj", "helper.o")

	obj, ok := g.Target(mainObj)
	if !ok {
		t.Fatalf("missing compile target %s; have %v", mainObj, g.TargetNames())
	}
	if obj.SourceFile != filepath.Join(m.SrcDir(), "main.cc") {
		t.Errorf("SourceFile = %q", obj.SourceFile)
	}
	if _, ok := obj.Deps[filepath.Join(m.SrcDir(), "util.h")]; !ok {
		t.Errorf("main.o should depend on util.h, deps = %v", obj.Deps)
	}

	// The binary links the transitive object closure: util.h pulls in
	// util.o, whose helper.h include pulls in helper.o.
	bin, ok := g.Target(filepath.Join(p.OutDir(), "hello"))
	if !ok {
		t.Fatalf("missing binary target; have %v", g.TargetNames())
	}
	for _, want := range []string{mainObj, utilObj, helperObj} {
		if _, ok := bin.Deps[want]; !ok {
			t.Errorf("binary should depend on %s, deps = %v", want, bin.Deps)
		}
	}
}

func TestConfigureDerivesTestTargets(t *testing.T) {
	m := writeProject(t)
	p := newTestPlanner(t, m, 1)

	if err := p.Configure(context.Background()); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if p.TestTargetCount() != 1 {
		t.Fatalf("TestTargetCount() = %d, expected 1 (only util.cc has test code)", p.TestTargetCount())
	}

	g := p.Graph()
	testObj := filepath.Join(p.OutDir(), "unittests", "util.o")
	testBin := testObj + ".test"

	obj, ok := g.Target(testObj)
	if !ok {
		t.Fatalf("missing test object %s; have %v", testObj, g.TargetNames())
	}
	foundMacro := false
	for _, cmd := range obj.Commands {
		if strings.Contains(cmd, "-D"+compiler.TestMacro) {
			foundMacro = true
		}
	}
	if !foundMacro {
		t.Errorf("test object must compile with the test macro, commands = %v", obj.Commands)
	}

	bin, ok := g.Target(testBin)
	if !ok {
		t.Fatalf("missing test binary %s; have %v", testBin, g.TargetNames())
	}
	// The test variant replaces util.o; the ordinary object must not be
	// linked in alongside it.
	if _, ok := bin.Deps[filepath.Join(p.OutDir(), "obj", "util.o")]; ok {
		t.Errorf("test binary must not link the ordinary util.o, deps = %v", bin.Deps)
	}
	if _, ok := bin.Deps[filepath.Join(p.OutDir(), "obj", "helper.o")]; !ok {
		t.Errorf("test binary should link helper.o, deps = %v", bin.Deps)
	}
	if _, ok := bin.Deps[testObj]; !ok {
		t.Errorf("test binary should link its test object, deps = %v", bin.Deps)
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	m := writeProject(t)

	emit := func(jobs int) string {
		p := newTestPlanner(t, m, jobs)
		if err := p.Configure(context.Background()); err != nil {
			t.Fatalf("Configure(jobs=%d) error = %v", jobs, err)
		}
		var buf bytes.Buffer
		if err := p.Graph().EmitMakefile(&buf); err != nil {
			t.Fatalf("EmitMakefile(jobs=%d) error = %v", jobs, err)
		}
		return buf.String()
	}

	sequential := emit(1)
	for i := 0; i < 5; i++ {
		if parallel := emit(4); parallel != sequential {
			t.Fatalf("parallel run emitted different build files\n--- sequential ---\n%s\n--- parallel ---\n%s",
				sequential, parallel)
		}
	}
}

func TestRunPassAggregatesErrors(t *testing.T) {
	m := writeProject(t)
	tc := &compiler.Toolchain{CXX: "c++"}
	runner := command.NewRunner(&command.MockExecutor{
		Err: errors.New("spawning `c++`: executable file not found"),
	})
	p, err := NewPlanner(m, "dev", tc, runner, 4)
	if err != nil {
		t.Fatal(err)
	}

	err = p.Configure(context.Background())
	if err == nil {
		t.Fatal("Configure() expected error when the compiler cannot run")
	}
	// Every source file's failure is reported, not just the first.
	for _, name := range []string{"main.cc", "util.cc", "helper.cc"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should mention %s, got:\n%s", name, err)
		}
	}
}

func TestConfigureRequiresEntryPoint(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, manifest.FileName),
		[]byte("[package]\nname = \"x\"\nversion = \"1.0.0\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "other.cc"), []byte("int x;\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := manifest.Load(filepath.Join(dir, manifest.FileName))
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewPlanner(m, "dev", &compiler.Toolchain{CXX: "c++"},
		command.NewRunner(&command.MockExecutor{}), 1)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Configure(context.Background()); err == nil {
		t.Fatal("Configure() expected error without src/main or src/lib")
	}
}

func TestConfigureRequiresSrcDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, manifest.FileName),
		[]byte("[package]\nname = \"x\"\nversion = \"1.0.0\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := manifest.Load(filepath.Join(dir, manifest.FileName))
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewPlanner(m, "dev", &compiler.Toolchain{CXX: "c++"},
		command.NewRunner(&command.MockExecutor{}), 1)
	if err != nil {
		t.Fatal(err)
	}

	err = p.Configure(context.Background())
	if err == nil || !strings.Contains(err.Error(), "required but not found") {
		t.Fatalf("Configure() error = %v, expected missing src error", err)
	}
}

func TestConfigureRejectsMultipleEntryPoints(t *testing.T) {
	m := writeProject(t)
	// A second main source next to main.cc is ambiguous.
	if err := os.WriteFile(filepath.Join(m.SrcDir(), "main.cpp"), []byte("int main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := newTestPlanner(t, m, 1)
	err := p.Configure(context.Background())
	if err == nil || !strings.Contains(err.Error(), "multiple main sources") {
		t.Fatalf("Configure() error = %v, expected multiple entry point error", err)
	}
}

func TestLibNamePrefix(t *testing.T) {
	cases := map[string]string{
		"hello":  "libhello.a",
		"libfoo": "libfoo.a",
	}
	for pkg, want := range cases {
		m := &manifest.Manifest{
			Path:     filepath.Join(t.TempDir(), manifest.FileName),
			Package:  manifest.Package{Name: pkg, Version: "1.0.0", Edition: "20"},
			Profiles: map[string]manifest.Profile{"dev": {}},
		}
		p, err := NewPlanner(m, "dev", &compiler.Toolchain{CXX: "c++"},
			command.NewRunner(&command.MockExecutor{}), 1)
		if err != nil {
			t.Fatal(err)
		}
		if p.LibName() != want {
			t.Errorf("LibName(%q) = %q, expected %q", pkg, p.LibName(), want)
		}
	}
}
