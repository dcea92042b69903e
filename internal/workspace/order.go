package workspace

import (
	"sort"

	"github.com/conneroisu/cascade/internal/errors"
)

// Order returns every package so that each one follows all of its
// intra-workspace dependencies.
//
// Each pass emits all packages whose remaining dependency count is zero, in
// lexicographic order, then releases their dependents. A pass that emits
// nothing while packages remain means the rest of the graph is cyclic.
func (g *Graph) Order() ([]string, error) {
	remaining := make(map[string]int, len(g.names))
	for _, name := range g.names {
		remaining[name] = len(g.deps[name])
	}

	order := make([]string, 0, len(g.names))
	for len(remaining) > 0 {
		var ready []string
		for name, n := range remaining {
			if n == 0 {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			left := make([]string, 0, len(remaining))
			for name := range remaining {
				left = append(left, name)
			}
			sort.Strings(left)
			return nil, errors.ErrCyclicDependency(left)
		}

		sort.Strings(ready)
		for _, name := range ready {
			delete(remaining, name)
			for _, d := range g.dependents[name] {
				remaining[d]--
			}
		}
		order = append(order, ready...)
	}

	return order, nil
}

// Sort reorders names into dependency order. Names that are not workspace
// members keep their relative order at the end.
func (g *Graph) Sort(names []string) ([]string, error) {
	order, err := g.Order()
	if err != nil {
		return nil, err
	}

	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}

	out := append([]string(nil), names...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, iok := pos[out[i]]
		pj, jok := pos[out[j]]
		switch {
		case iok && jok:
			return pi < pj
		case iok:
			return true
		default:
			return false
		}
	})
	return out, nil
}
