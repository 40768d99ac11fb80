// Package graph holds the build graph: named build-tool variables and
// named targets with their dependency edges, topologically ordered for
// emission.
package graph

import "sort"

// AssignmentKind selects the build-tool assignment operator a variable is
// emitted with. It is a serialization hint only; the graph engine never
// interprets it.
type AssignmentKind uint8

const (
	Recursive   AssignmentKind = iota // =
	Simple                            // :=
	Conditional                       // ?=
	Append                            // +=
	Shell                             // !=
)

// Operator returns the build-tool spelling of the assignment kind.
func (k AssignmentKind) Operator() string {
	switch k {
	case Recursive:
		return "="
	case Simple:
		return ":="
	case Conditional:
		return "?="
	case Append:
		return "+="
	case Shell:
		return "!="
	}
	panic("unknown assignment kind")
}

// Variable is a named build-tool value.
type Variable struct {
	Value string
	Kind  AssignmentKind
}

// Target is one build step: a filesystem path or phony token, the commands
// that produce it, and its dependency edges. SourceFile is kept apart from
// Deps so the emitter can place it as the first prerequisite.
type Target struct {
	Commands   []string
	SourceFile string // "" when the target has no primary source
	Deps       map[string]struct{}
}

// Graph owns every variable and target of one build invocation. Reverse
// adjacency maps are maintained as edges are declared so both node kinds
// can be topologically sorted at emission time.
type Graph struct {
	variables  map[string]Variable
	varDeps    map[string][]string // dep -> dependents
	targets    map[string]Target
	targetDeps map[string][]string // dep -> dependents
	phony      map[string]struct{}
	all        map[string]struct{}
}

// New creates an empty build graph.
func New() *Graph {
	return &Graph{
		variables:  make(map[string]Variable),
		varDeps:    make(map[string][]string),
		targets:    make(map[string]Target),
		targetDeps: make(map[string][]string),
	}
}

// DefineVar declares a variable and its emission-order dependencies.
func (g *Graph) DefineVar(name string, v Variable, dependsOn ...string) {
	g.variables[name] = v
	for _, dep := range dependsOn {
		// reverse dependency
		g.varDeps[dep] = append(g.varDeps[dep], name)
	}
}

// DefineSimpleVar declares a := variable.
func (g *Graph) DefineSimpleVar(name, value string, dependsOn ...string) {
	g.DefineVar(name, Variable{Value: value, Kind: Simple}, dependsOn...)
}

// DefineCondVar declares a ?= variable.
func (g *Graph) DefineCondVar(name, value string, dependsOn ...string) {
	g.DefineVar(name, Variable{Value: value, Kind: Conditional}, dependsOn...)
}

// DefineTarget declares a target. deps may be nil; sourceFile may be empty.
func (g *Graph) DefineTarget(name string, commands []string, deps map[string]struct{}, sourceFile string) {
	if deps == nil {
		deps = make(map[string]struct{})
	}
	g.targets[name] = Target{
		Commands:   commands,
		SourceFile: sourceFile,
		Deps:       deps,
	}

	if sourceFile != "" {
		g.targetDeps[sourceFile] = append(g.targetDeps[sourceFile], name)
	}
	for dep := range deps {
		// reverse dependency
		g.targetDeps[dep] = append(g.targetDeps[dep], name)
	}
}

// AddPhony registers a target name in the .PHONY set.
func (g *Graph) AddPhony(name string) {
	if g.phony == nil {
		g.phony = make(map[string]struct{})
	}
	g.phony[name] = struct{}{}
}

// SetAll declares the dependencies of the aggregate `all` target.
func (g *Graph) SetAll(deps map[string]struct{}) {
	g.all = deps
}

// Target looks up a declared target.
func (g *Graph) Target(name string) (Target, bool) {
	t, ok := g.targets[name]
	return t, ok
}

// HasTarget reports whether a target with the given name is declared.
func (g *Graph) HasTarget(name string) bool {
	_, ok := g.targets[name]
	return ok
}

// IsPhony reports whether the target name is in the .PHONY set.
func (g *Graph) IsPhony(name string) bool {
	_, ok := g.phony[name]
	return ok
}

// TargetNames returns every declared target name, sorted.
func (g *Graph) TargetNames() []string {
	return sortedKeys(g.targets)
}

// VariableNames returns every declared variable name, sorted.
func (g *Graph) VariableNames() []string {
	return sortedKeys(g.variables)
}

// Variable looks up a declared variable.
func (g *Graph) Variable(name string) (Variable, bool) {
	v, ok := g.variables[name]
	return v, ok
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSet(s map[string]struct{}) []string {
	return sortedKeys(s)
}
