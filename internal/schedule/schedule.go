// Package schedule groups release entries into dependency-safe batches.
package schedule

import (
	"fmt"
	"strings"

	"github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/types"
)

// DependencyFunc returns the intra-workspace dependencies of a package.
// *workspace.Graph's Dependencies method satisfies it.
type DependencyFunc func(name string) []string

// Batch is a set of entries that may be released concurrently.
type Batch struct {
	Entries []types.ReleaseEntry
}

// Names returns the package names of the batch in order.
func (b Batch) Names() []string {
	out := make([]string, len(b.Entries))
	for i, e := range b.Entries {
		out[i] = e.Name
	}
	return out
}

// String renders the batch as {a, b}.
func (b Batch) String() string {
	return "{" + strings.Join(b.Names(), ", ") + "}"
}

// Schedule is an ordered sequence of batches. Every dependency of a package
// in batch i that is itself part of the schedule sits in a batch j < i.
type Schedule struct {
	Batches []Batch
}

// Len returns the total number of entries.
func (s Schedule) Len() int {
	n := 0
	for _, b := range s.Batches {
		n += len(b.Entries)
	}
	return n
}

// Names returns the package names per batch.
func (s Schedule) Names() [][]string {
	out := make([][]string, len(s.Batches))
	for i, b := range s.Batches {
		out[i] = b.Names()
	}
	return out
}

// Build walks entries, which must be in dependency order, and packs them
// into batches of at most size entries. size <= 0 means unbounded, which
// yields one batch per layer of the dependency graph.
//
// A candidate joins the current batch when every dependency that is part of
// this release has already been released by an earlier batch. Otherwise the
// current batch is closed and the candidate starts the next one.
func Build(entries []types.ReleaseEntry, deps DependencyFunc, size int) (Schedule, error) {
	pending := make(map[string]bool, len(entries))
	for _, e := range entries {
		pending[e.Name] = true
	}

	var (
		sched    Schedule
		current  []types.ReleaseEntry
		released = make(map[string]bool, len(entries))
	)

	closeCurrent := func() {
		if len(current) == 0 {
			return
		}
		sched.Batches = append(sched.Batches, Batch{Entries: current})
		for _, e := range current {
			released[e.Name] = true
		}
		current = nil
	}

	ready := func(name string) bool {
		for _, d := range deps(name) {
			if pending[d] && !released[d] {
				return false
			}
		}
		return true
	}

	for _, e := range entries {
		if !ready(e.Name) {
			closeCurrent()
			if !ready(e.Name) {
				return Schedule{}, outOfOrder(e.Name, deps(e.Name), released, pending)
			}
		}

		current = append(current, e)
		if size > 0 && len(current) >= size {
			closeCurrent()
		}
	}
	closeCurrent()

	return sched, nil
}

func outOfOrder(name string, deps []string, released, pending map[string]bool) error {
	var missing []string
	for _, d := range deps {
		if pending[d] && !released[d] {
			missing = append(missing, d)
		}
	}
	return errors.NewPlanningError(errors.ErrCodeScheduleOrder,
		fmt.Sprintf("%s is listed before its dependencies %s", name, strings.Join(missing, ", ")), nil).
		WithPackage(name)
}

// Validate checks that every in-schedule dependency of every package sits
// in an earlier batch.
func Validate(s Schedule, deps DependencyFunc) error {
	batchOf := make(map[string]int, s.Len())
	for i, b := range s.Batches {
		for _, e := range b.Entries {
			if _, dup := batchOf[e.Name]; dup {
				return errors.NewInternalError(errors.ErrCodeScheduleOrder,
					e.Name+" is scheduled twice", nil).WithPackage(e.Name)
			}
			batchOf[e.Name] = i
		}
	}

	for i, b := range s.Batches {
		for _, e := range b.Entries {
			for _, d := range deps(e.Name) {
				j, scheduled := batchOf[d]
				if scheduled && j >= i {
					return errors.NewInternalError(errors.ErrCodeScheduleOrder,
						fmt.Sprintf("%s in batch %d depends on %s in batch %d", e.Name, i+1, d, j+1), nil).
						WithPackage(e.Name)
				}
			}
		}
	}
	return nil
}

// Groups splits the schedule into runs of at most n consecutive batches
// that the executor may start together. n <= 1 gives one batch per group.
func Groups(s Schedule, n int) [][]Batch {
	if n < 1 {
		n = 1
	}
	var out [][]Batch
	for start := 0; start < len(s.Batches); start += n {
		end := start + n
		if end > len(s.Batches) {
			end = len(s.Batches)
		}
		out = append(out, s.Batches[start:end])
	}
	return out
}
