// Package registry talks to the remote package index and holds the
// read-only snapshot of it that planning and publishing work from.
package registry

import (
	"context"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/sourcegraph/conc/pool"

	"github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/interfaces"
	"github.com/conneroisu/cascade/internal/types"
)

// Snapshot maps package names to the versions the registry knew about when
// the snapshot was taken. It is never mutated after Fetch returns, so it can
// be read from any number of goroutines.
type Snapshot map[string][]types.VersionRecord

// Fetch queries the registry for every name with at most concurrency
// requests in flight. Any failure aborts the fetch.
func Fetch(ctx context.Context, reg interfaces.Registry, names []string, concurrency int) (Snapshot, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([][]types.VersionRecord, len(names))
	p := pool.New().
		WithMaxGoroutines(concurrency).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for i, name := range names {
		p.Go(func(ctx context.Context) error {
			records, err := reg.Query(ctx, name)
			if err != nil {
				return errors.WrapNetwork(err, errors.ErrCodeRegistryUnavailable,
					"querying registry").WithPackage(name)
			}
			results[i] = records
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}

	snap := make(Snapshot, len(names))
	for i, name := range names {
		snap[name] = results[i]
	}
	return snap, nil
}

// Versions returns the records known for name.
func (s Snapshot) Versions(name string) []types.VersionRecord {
	return s[name]
}

// Highest returns the highest non-prerelease version of name. Yanked
// versions count because their numbers cannot be reused.
func (s Snapshot) Highest(name string) (*semver.Version, bool) {
	var best *semver.Version
	for _, rec := range s[name] {
		v, err := semver.NewVersion(rec.Version)
		if err != nil || v.Prerelease() != "" {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	return best, best != nil
}

// Has reports whether exactly version of name is known.
func (s Snapshot) Has(name, version string) bool {
	want, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	for _, rec := range s[name] {
		v, err := semver.NewVersion(rec.Version)
		if err == nil && v.Equal(want) && v.Prerelease() == want.Prerelease() {
			return true
		}
	}
	return false
}

// Names returns the packages in the snapshot, sorted.
func (s Snapshot) Names() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
