package inspect

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kilnpkg/kiln/pkg/graph"
)

func testSnapshot() *Snapshot {
	g := graph.New()
	g.DefineTarget("out/obj/main.o",
		[]string{"$(CXX) -c $< -o $@"},
		map[string]struct{}{"src/util.h": {}},
		"src/main.cc")
	g.DefineTarget("out/hello",
		[]string{"$(CXX) $^ -o $@"},
		map[string]struct{}{"out/obj/main.o": {}},
		"")
	g.AddPhony("all")

	return NewSnapshot(g, Status{
		Package: "hello",
		Profile: "dev",
		OutDir:  "out",
		RunID:   "test-run",
	})
}

func TestStatusEndpoint(t *testing.T) {
	s := NewServer()
	s.SetSnapshot(testSnapshot())

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got Status
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Package != "hello" || got.Profile != "dev" {
		t.Errorf("Status = %+v", got)
	}
	if got.Targets != 2 {
		t.Errorf("Targets = %d, expected 2", got.Targets)
	}
}

func TestGraphEndpoint(t *testing.T) {
	s := NewServer()
	s.SetSnapshot(testSnapshot())

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/graph", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got GraphData
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got.Nodes) != 2 {
		t.Errorf("got %d nodes, expected 2", len(got.Nodes))
	}
	foundEdge := false
	for _, e := range got.Edges {
		if e.Source == "out/hello" && e.Target == "out/obj/main.o" {
			foundEdge = true
		}
	}
	if !foundEdge {
		t.Errorf("missing link edge, edges = %+v", got.Edges)
	}
}

func TestTargetEndpoint(t *testing.T) {
	s := NewServer()
	s.SetSnapshot(testSnapshot())

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/targets/out/obj/main.o", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var got TargetDetail
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.SourceFile != "src/main.cc" {
		t.Errorf("SourceFile = %q", got.SourceFile)
	}
	if len(got.Deps) != 2 {
		t.Errorf("Deps = %v, expected source file plus header", got.Deps)
	}
}

func TestUnknownTargetIs404(t *testing.T) {
	s := NewServer()
	s.SetSnapshot(testSnapshot())

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/targets/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, expected 404", rec.Code)
	}
}

func TestNoSnapshotIs503(t *testing.T) {
	s := NewServer()

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, expected 503", rec.Code)
	}
}
