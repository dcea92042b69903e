//go:build property

package schedule

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/cascade/internal/testutils"
	"github.com/conneroisu/cascade/internal/types"
	"github.com/conneroisu/cascade/internal/workspace"
)

// TestScheduleProperties checks the batch invariant on random workspaces and
// batch sizes, with a random subset of packages being released.
func TestScheduleProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 300

	properties := gopter.NewProperties(parameters)

	build := func(n int, edges []int, skip []bool, size int) (Schedule, *workspace.Graph, []types.ReleaseEntry, bool) {
		g, err := workspace.NewGraph(testutils.RandomDAG(n, edges))
		if err != nil {
			return Schedule{}, nil, nil, false
		}
		order, err := g.Order()
		if err != nil {
			return Schedule{}, nil, nil, false
		}
		var release []types.ReleaseEntry
		for i, name := range order {
			if i < len(skip) && skip[i] {
				continue
			}
			release = append(release, types.ReleaseEntry{Name: name, Publish: true})
		}
		sched, err := Build(release, g.Dependencies, size)
		return sched, g, release, err == nil
	}

	properties.Property("dependencies always sit in an earlier batch", prop.ForAll(
		func(n int, edges []int, skip []bool, size int) bool {
			sched, g, _, ok := build(n, edges, skip, size)
			return ok && Validate(sched, g.Dependencies) == nil
		},
		gen.IntRange(1, 40),
		gen.SliceOfN(80, gen.IntRange(0, 5000)),
		gen.SliceOfN(40, gen.Bool()),
		gen.IntRange(0, 8),
	))

	properties.Property("batches respect the size limit and keep every entry once", prop.ForAll(
		func(n int, edges []int, skip []bool, size int) bool {
			sched, _, release, ok := build(n, edges, skip, size)
			if !ok || sched.Len() != len(release) {
				return false
			}
			seen := make(map[string]bool)
			for _, b := range sched.Batches {
				if len(b.Entries) == 0 || (size > 0 && len(b.Entries) > size) {
					return false
				}
				for _, e := range b.Entries {
					if seen[e.Name] {
						return false
					}
					seen[e.Name] = true
				}
			}
			return true
		},
		gen.IntRange(1, 40),
		gen.SliceOfN(80, gen.IntRange(0, 5000)),
		gen.SliceOfN(40, gen.Bool()),
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}
