// Package inspect serves the derived build graph over HTTP so editors
// and humans can look at what the generator produced, while watch mode
// keeps the snapshot current.
package inspect

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/kilnpkg/kiln/pkg/graph"
	"github.com/kilnpkg/kiln/pkg/logging"
)

// GraphNode represents a node in the build graph
type GraphNode struct {
	ID    string `json:"id"`
	Type  string `json:"type"` // "target", "phony", "variable"
	Phony bool   `json:"phony,omitempty"`
}

// GraphEdge represents a dependency edge between two targets
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// GraphData holds the build graph for inspection
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// TargetDetail is the full record for one target
type TargetDetail struct {
	Name       string   `json:"name"`
	SourceFile string   `json:"sourceFile,omitempty"`
	Commands   []string `json:"commands"`
	Deps       []string `json:"deps"`
	Phony      bool     `json:"phony"`
}

// Status summarizes the last generation run
type Status struct {
	Package     string    `json:"package"`
	Profile     string    `json:"profile"`
	OutDir      string    `json:"outDir"`
	Targets     int       `json:"targets"`
	Variables   int       `json:"variables"`
	GeneratedAt time.Time `json:"generatedAt"`
	RunID       string    `json:"runId"`
}

// Snapshot is one immutable view of the derived graph. Watch mode swaps
// in a new one after each regeneration.
type Snapshot struct {
	Status  Status
	Graph   GraphData
	Targets map[string]TargetDetail
}

// NewSnapshot captures the graph into a serialisable snapshot
func NewSnapshot(g *graph.Graph, status Status) *Snapshot {
	snap := &Snapshot{
		Status:  status,
		Targets: make(map[string]TargetDetail),
	}

	names := g.TargetNames()
	snap.Status.Targets = len(names)
	snap.Status.Variables = len(g.VariableNames())
	snap.Status.GeneratedAt = time.Now()

	for _, name := range names {
		t, _ := g.Target(name)
		detail := TargetDetail{
			Name:       name,
			SourceFile: t.SourceFile,
			Commands:   append([]string(nil), t.Commands...),
			Phony:      g.IsPhony(name),
		}

		nodeType := "target"
		if detail.Phony {
			nodeType = "phony"
		}
		snap.Graph.Nodes = append(snap.Graph.Nodes, GraphNode{
			ID:    name,
			Type:  nodeType,
			Phony: detail.Phony,
		})

		if t.SourceFile != "" {
			detail.Deps = append(detail.Deps, t.SourceFile)
			snap.Graph.Edges = append(snap.Graph.Edges, GraphEdge{Source: name, Target: t.SourceFile})
		}
		for _, dep := range sortedDeps(t.Deps) {
			detail.Deps = append(detail.Deps, dep)
			snap.Graph.Edges = append(snap.Graph.Edges, GraphEdge{Source: name, Target: dep})
		}

		snap.Targets[name] = detail
	}

	return snap
}

// Server serves graph snapshots over HTTP
type Server struct {
	router *mux.Router

	mu   sync.RWMutex
	snap *Snapshot
}

// NewServer creates the inspection server with no snapshot yet
func NewServer() *Server {
	s := &Server{router: mux.NewRouter()}
	s.setupRoutes()
	return s
}

// SetSnapshot publishes a new graph snapshot
func (s *Server) SetSnapshot(snap *Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *Server) snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Server) setupRoutes() {
	s.router.Use(mux.MiddlewareFunc(logging.RequestIDMiddleware))
	s.router.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET")
	s.router.HandleFunc("/api/targets", s.handleTargets).Methods("GET")
	s.router.HandleFunc("/api/targets/{name:.*}", s.handleTarget).Methods("GET")
}

// Start runs the HTTP server; it blocks until the listener fails
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logging.Info("inspection server listening", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()
	if snap == nil {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snap.Status)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()
	if snap == nil {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snap.Graph)
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()
	if snap == nil {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	names := make([]string, 0, len(snap.Targets))
	for _, n := range snap.Graph.Nodes {
		names = append(names, n.ID)
	}
	writeJSON(w, names)
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()
	if snap == nil {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	name := mux.Vars(r)["name"]
	detail, ok := snap.Targets[name]
	if !ok {
		http.Error(w, "unknown target", http.StatusNotFound)
		return
	}
	writeJSON(w, detail)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("writing response", "error", err)
	}
}

func sortedDeps(deps map[string]struct{}) []string {
	out := make([]string, 0, len(deps))
	for d := range deps {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
