package build

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGenerateWritesBuildFiles(t *testing.T) {
	m := writeProject(t)
	p := newTestPlanner(t, m, 1)

	wrote, err := p.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !wrote {
		t.Fatal("first Generate() should regenerate")
	}

	makefile, err := os.ReadFile(filepath.Join(p.OutDir(), "Makefile"))
	if err != nil {
		t.Fatalf("Makefile not written: %v", err)
	}
	for _, want := range []string{"CXX := c++", ".PHONY:", "all:", "main.o:"} {
		if !strings.Contains(string(makefile), want) {
			t.Errorf("Makefile missing %q", want)
		}
	}

	// The dev profile carries a compilation database.
	if _, err := os.Stat(filepath.Join(p.OutDir(), "compile_commands.json")); err != nil {
		t.Errorf("compile_commands.json not written: %v", err)
	}
}

func TestGenerateSkipsWhenUpToDate(t *testing.T) {
	m := writeProject(t)

	if wrote, err := newTestPlanner(t, m, 1).Generate(context.Background()); err != nil || !wrote {
		t.Fatalf("first Generate() = %v, %v", wrote, err)
	}

	// Nothing changed since; the emitted files are newer than every input.
	wrote, err := newTestPlanner(t, m, 1).Generate(context.Background())
	if err != nil {
		t.Fatalf("second Generate() error = %v", err)
	}
	if wrote {
		t.Error("second Generate() should be a no-op")
	}
}

func TestGenerateRegeneratesOnSourceChange(t *testing.T) {
	m := writeProject(t)

	if _, err := newTestPlanner(t, m, 1).Generate(context.Background()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// Bump a source past the artifacts.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(m.SrcDir(), "util.cc"), future, future); err != nil {
		t.Fatal(err)
	}

	wrote, err := newTestPlanner(t, m, 1).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !wrote {
		t.Error("Generate() should regenerate after a source changed")
	}
}

func TestGenerateRegeneratesOnManifestChange(t *testing.T) {
	m := writeProject(t)

	if _, err := newTestPlanner(t, m, 1).Generate(context.Background()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(m.Path, future, future); err != nil {
		t.Fatal(err)
	}

	wrote, err := newTestPlanner(t, m, 1).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !wrote {
		t.Error("Generate() should regenerate after the manifest changed")
	}
}

func TestEmitCompDB(t *testing.T) {
	m := writeProject(t)
	p := newTestPlanner(t, m, 1)
	if err := p.Configure(context.Background()); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	data, err := p.EmitCompDB()
	if err != nil {
		t.Fatalf("EmitCompDB() error = %v", err)
	}

	var entries []struct {
		Directory string `json:"directory"`
		File      string `json:"file"`
		Output    string `json:"output"`
		Command   string `json:"command"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, data)
	}

	// Three ordinary objects plus the test object; link and phony
	// targets never appear.
	if len(entries) != 4 {
		t.Fatalf("got %d entries, expected 4:\n%s", len(entries), data)
	}

	testEntries := 0
	for _, e := range entries {
		if e.Directory != m.Dir() {
			t.Errorf("directory = %q, expected %q", e.Directory, m.Dir())
		}
		if !strings.HasPrefix(e.Command, "c++ ") || !strings.Contains(e.Command, " -c ") {
			t.Errorf("not a compile command: %q", e.Command)
		}
		if filepath.IsAbs(e.File) || filepath.IsAbs(e.Output) {
			t.Errorf("entry paths should be project relative: %+v", e)
		}
		if strings.Contains(e.Output, "unittests") {
			testEntries++
			if !strings.Contains(e.Command, "-DKILN_TEST") {
				t.Errorf("test object entry must define the test macro: %q", e.Command)
			}
		}
	}
	if testEntries != 1 {
		t.Errorf("expected exactly one test object entry, got %d", testEntries)
	}
}
