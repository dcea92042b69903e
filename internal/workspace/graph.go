// Package workspace models the packages of a workspace and the dependency
// edges between them.
package workspace

import (
	"sort"

	"github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/types"
)

// Graph is an immutable view of the workspace dependency graph. Edges that
// name a package outside the workspace are dropped at construction.
type Graph struct {
	packages   map[string]types.Package
	deps       map[string][]string
	dependents map[string][]string
	names      []string
}

// NewGraph builds a graph from the package list.
func NewGraph(pkgs []types.Package) (*Graph, error) {
	g := &Graph{
		packages:   make(map[string]types.Package, len(pkgs)),
		deps:       make(map[string][]string, len(pkgs)),
		dependents: make(map[string][]string, len(pkgs)),
		names:      make([]string, 0, len(pkgs)),
	}

	for _, p := range pkgs {
		if _, dup := g.packages[p.Name]; dup {
			return nil, errors.NewValidationError(errors.ErrCodeDuplicatePackage,
				"duplicate package name: "+p.Name).WithPackage(p.Name)
		}
		g.packages[p.Name] = p
		g.names = append(g.names, p.Name)
	}
	sort.Strings(g.names)

	for _, name := range g.names {
		seen := make(map[string]bool)
		for _, dep := range g.packages[name].Dependencies {
			if _, member := g.packages[dep]; !member || seen[dep] {
				continue
			}
			seen[dep] = true
			g.deps[name] = append(g.deps[name], dep)
			g.dependents[dep] = append(g.dependents[dep], name)
		}
		sort.Strings(g.deps[name])
	}
	for name := range g.dependents {
		sort.Strings(g.dependents[name])
	}

	return g, nil
}

// Len returns the number of packages.
func (g *Graph) Len() int {
	return len(g.names)
}

// Names returns every package name in lexicographic order.
func (g *Graph) Names() []string {
	return append([]string(nil), g.names...)
}

// Package returns the package called name.
func (g *Graph) Package(name string) (types.Package, bool) {
	p, ok := g.packages[name]
	return p, ok
}

// Has reports whether name is a workspace member.
func (g *Graph) Has(name string) bool {
	_, ok := g.packages[name]
	return ok
}

// Dependencies returns the intra-workspace dependencies of name.
func (g *Graph) Dependencies(name string) []string {
	return append([]string(nil), g.deps[name]...)
}

// Dependents returns the workspace packages that depend on name.
func (g *Graph) Dependents(name string) []string {
	return append([]string(nil), g.dependents[name]...)
}

// TransitiveDependents returns every package that depends, directly or
// indirectly, on any of roots. Roots themselves are not included unless
// they depend on another root.
func (g *Graph) TransitiveDependents(roots ...string) []string {
	seen := make(map[string]bool)
	queue := append([]string(nil), roots...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, d := range g.dependents[name] {
			if !seen[d] {
				seen[d] = true
				queue = append(queue, d)
			}
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
