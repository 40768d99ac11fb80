package graph

import (
	"bytes"
	"strings"
	"testing"
)

func TestEmitMakefileSmallGraph(t *testing.T) {
	g := New()
	g.DefineSimpleVar("CXX", "c++")
	g.DefineTarget("out/obj/main.o",
		[]string{"@mkdir -p $(@D)", "$(CXX) -c $< -o $@"},
		map[string]struct{}{"src/util.h": {}},
		"src/main.cc")
	g.DefineTarget("out/hello",
		[]string{"$(CXX) $^ -o $@"},
		map[string]struct{}{"out/obj/main.o": {}},
		"")
	g.AddPhony("all")
	g.SetAll(map[string]struct{}{"hello": {}})

	var buf bytes.Buffer
	if err := g.EmitMakefile(&buf); err != nil {
		t.Fatalf("EmitMakefile() error = %v", err)
	}
	got := buf.String()

	wantLines := []string{
		"CXX := c++",
		".PHONY: all",
		"all: hello",
		"out/obj/main.o: src/main.cc src/util.h",
		"\t@mkdir -p $(@D)",
		"\t$(Q)$(CXX) -c $< -o $@",
		"out/hello: out/obj/main.o",
		"\t$(Q)$(CXX) $^ -o $@",
	}
	for _, line := range wantLines {
		if !strings.Contains(got, line+"\n") {
			t.Errorf("emitted Makefile missing line %q\n---\n%s", line, got)
		}
	}

	// The final output comes last: reverse topological order.
	if strings.Index(got, "out/hello:") < strings.Index(got, "out/obj/main.o:") {
		t.Errorf("expected out/obj/main.o stanza before out/hello\n---\n%s", got)
	}
}

func TestEmitMakefileSourceFileIsFirstPrerequisite(t *testing.T) {
	g := New()
	g.DefineTarget("a.o",
		nil,
		map[string]struct{}{"aaa.h": {}, "zzz.h": {}, "bbb.h": {}},
		"a.cc")

	var buf bytes.Buffer
	if err := g.EmitMakefile(&buf); err != nil {
		t.Fatalf("EmitMakefile() error = %v", err)
	}

	want := "a.o: a.cc aaa.h bbb.h zzz.h\n"
	if !strings.Contains(buf.String(), want) {
		t.Errorf("expected %q, got\n%s", want, buf.String())
	}
}

func TestEmitMakefileWrapsLongDependencyLines(t *testing.T) {
	deps := make(map[string]struct{})
	for _, n := range []string{"alpha", "bravo", "charlie", "delta", "echo"} {
		deps["out/objects/some/deep/path/"+n+"_component.o"] = struct{}{}
	}

	g := New()
	g.DefineTarget("out/binary", []string{"$(CXX) $^ -o $@"}, deps, "")

	var buf bytes.Buffer
	if err := g.EmitMakefile(&buf); err != nil {
		t.Fatalf("EmitMakefile() error = %v", err)
	}

	sawContinuation := false
	for _, line := range strings.Split(buf.String(), "\n") {
		if len(line) > 80 {
			t.Errorf("line longer than 80 columns: %q", line)
		}
		if strings.HasSuffix(line, "\\") {
			sawContinuation = true
			if len(line) != 80 {
				t.Errorf("continuation backslash should sit in column 80, line is %d wide: %q", len(line), line)
			}
		}
	}
	if !sawContinuation {
		t.Error("expected at least one wrapped dependency line")
	}
}

func TestEmitMakefileWrapsLongVariables(t *testing.T) {
	words := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		words = append(words, "-fsome-rather-long-option")
	}

	g := New()
	g.DefineSimpleVar("CXXFLAGS", strings.Join(words, " "))

	var buf bytes.Buffer
	if err := g.EmitMakefile(&buf); err != nil {
		t.Fatalf("EmitMakefile() error = %v", err)
	}

	lines := strings.Split(buf.String(), "\n")
	if !strings.HasPrefix(lines[0], "CXXFLAGS := ") {
		t.Fatalf("first line = %q", lines[0])
	}
	if !strings.HasSuffix(lines[0], "\\") {
		t.Errorf("expected wrapped variable, first line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "  ") {
		t.Errorf("continuation lines are indented two spaces, got %q", lines[1])
	}
}

func TestEmitMakefilePropagatesCycleError(t *testing.T) {
	g := New()
	g.DefineTarget("a", nil, map[string]struct{}{"b": {}}, "")
	g.DefineTarget("b", nil, map[string]struct{}{"a": {}}, "")

	var buf bytes.Buffer
	if err := g.EmitMakefile(&buf); err == nil {
		t.Fatal("EmitMakefile() expected error for cyclic targets")
	}
}

func TestAssignmentKindOperators(t *testing.T) {
	cases := map[AssignmentKind]string{
		Recursive:   "=",
		Simple:      ":=",
		Conditional: "?=",
		Append:      "+=",
		Shell:       "!=",
	}
	for kind, want := range cases {
		if got := kind.Operator(); got != want {
			t.Errorf("Operator(%d) = %q, expected %q", kind, got, want)
		}
	}
}
