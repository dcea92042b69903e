// Package testutils provides fixtures and fake collaborators shared by the
// package tests.
package testutils

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/cascade/internal/interfaces"
	"github.com/conneroisu/cascade/internal/types"
)

// Pkg builds a publishable package with the given intra-workspace deps.
func Pkg(name, version string, deps ...string) types.Package {
	return types.Package{
		Name:         name,
		Version:      version,
		Dir:          name,
		ManifestPath: name + "/Cargo.toml",
		Publishable:  true,
		Dependencies: deps,
	}
}

// RandomDAG turns generator output into an acyclic package list. Package i
// may only depend on packages with a lower index; names are chosen so that
// lexicographic order differs from index order.
func RandomDAG(n int, edges []int) []types.Package {
	if n <= 0 {
		return nil
	}
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%c-pkg-%d", 'z'-rune(i%26), i)
	}

	deps := make([][]string, n)
	for _, e := range edges {
		if e < 0 {
			e = -e
		}
		from := e % n
		to := (e / n) % n
		if to >= from {
			continue
		}
		deps[from] = append(deps[from], names[to])
	}

	pkgs := make([]types.Package, n)
	for i := range pkgs {
		pkgs[i] = Pkg(names[i], "1.0.0", deps[i]...)
	}
	return pkgs
}

// Registry is an in-memory registry fake.
type Registry struct {
	mu sync.Mutex

	versions     map[string][]types.VersionRecord
	publishErr   map[string]error
	queryErr     map[string]error
	hidden       map[string]bool
	staged       map[string]string
	PublishDelay time.Duration
	// OnPublish, when set, is called with the publish context before the
	// upload is recorded.
	OnPublish func(ctx context.Context, name string)

	published   []string
	dryRuns     []string
	queries     map[string]int
	inFlight    int
	maxInFlight int
}

var _ interfaces.Registry = (*Registry)(nil)

// NewRegistry creates an empty fake registry.
func NewRegistry() *Registry {
	return &Registry{
		versions:   make(map[string][]types.VersionRecord),
		publishErr: make(map[string]error),
		queryErr:   make(map[string]error),
		hidden:     make(map[string]bool),
		staged:     make(map[string]string),
		queries:    make(map[string]int),
	}
}

// Seed adds versions to the index.
func (r *Registry) Seed(name string, versions ...string) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range versions {
		r.versions[name] = append(r.versions[name], types.VersionRecord{Version: v})
	}
	return r
}

// Yank marks an existing version as yanked.
func (r *Registry) Yank(name, version string) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rec := range r.versions[name] {
		if rec.Version == version {
			r.versions[name][i].Yanked = true
		}
	}
	return r
}

// FailPublish makes every publish of name fail with err.
func (r *Registry) FailPublish(name string, err error) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishErr[name] = err
	return r
}

// FailQuery makes every query for name fail with err.
func (r *Registry) FailQuery(name string, err error) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryErr[name] = err
	return r
}

// HideAfterPublish keeps successful publishes of name out of query results,
// simulating a registry that never catches up.
func (r *Registry) HideAfterPublish(name string) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hidden[name] = true
	return r
}

// Query implements interfaces.Registry.
func (r *Registry) Query(ctx context.Context, name string) ([]types.VersionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries[name]++
	if err := r.queryErr[name]; err != nil {
		return nil, err
	}
	return append([]types.VersionRecord(nil), r.versions[name]...), nil
}

// Publish implements interfaces.Registry. A successful publish makes the
// version registered with Stage visible unless the package is hidden.
func (r *Registry) Publish(ctx context.Context, name string, opts types.PublishOptions) error {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.maxInFlight {
		r.maxInFlight = r.inFlight
	}
	delay := r.PublishDelay
	hook := r.OnPublish
	r.mu.Unlock()

	if hook != nil {
		hook(ctx, name)
	}

	if delay > 0 {
		time.Sleep(delay)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight--

	if opts.DryRun {
		r.dryRuns = append(r.dryRuns, name)
		return nil
	}
	if err := r.publishErr[name]; err != nil {
		return err
	}
	r.published = append(r.published, name)
	if v, ok := r.staged[name]; ok && !r.hidden[name] {
		r.versions[name] = append(r.versions[name], types.VersionRecord{Version: v})
	}
	return nil
}

// Stage sets the version a successful publish of name makes visible.
func (r *Registry) Stage(name, version string) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staged[name] = version
	return r
}

// StageEntries stages the target version of every entry.
func (r *Registry) StageEntries(entries []types.ReleaseEntry) *Registry {
	for _, e := range entries {
		r.Stage(e.Name, e.To)
	}
	return r
}

// Published returns the names published so far, in completion order.
func (r *Registry) Published() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.published...)
}

// DryRuns returns the names dry-run published so far.
func (r *Registry) DryRuns() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dryRuns...)
}

// Queries returns how many times name was queried.
func (r *Registry) Queries(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queries[name]
}

// MaxInFlight returns the highest number of concurrent publish calls seen.
func (r *Registry) MaxInFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxInFlight
}

// ChangeDetector returns a fixed change set.
type ChangeDetector struct {
	Changed []string
	Err     error
	Refs    []string
}

var _ interfaces.ChangeDetector = (*ChangeDetector)(nil)

// ChangedSince implements interfaces.ChangeDetector.
func (c *ChangeDetector) ChangedSince(ctx context.Context, ref string) ([]string, error) {
	c.Refs = append(c.Refs, ref)
	if c.Err != nil {
		return nil, c.Err
	}
	return append([]string(nil), c.Changed...), nil
}

// Classifier answers a fixed kind per package and counts calls.
type Classifier struct {
	mu      sync.Mutex
	Kinds   map[string]types.BumpKind
	Default types.BumpKind
	Err     error
	calls   map[string]int
}

var _ interfaces.CompatibilityClassifier = (*Classifier)(nil)

// NewClassifier creates a classifier answering def for unknown packages.
func NewClassifier(def types.BumpKind) *Classifier {
	return &Classifier{Kinds: make(map[string]types.BumpKind), Default: def, calls: make(map[string]int)}
}

// Compare implements interfaces.CompatibilityClassifier.
func (c *Classifier) Compare(ctx context.Context, pkg types.Package, baseline string) (types.BumpKind, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[pkg.Name]++
	if c.Err != nil {
		return types.BumpNone, c.Err
	}
	if k, ok := c.Kinds[pkg.Name]; ok {
		return k, nil
	}
	return c.Default, nil
}

// Calls returns how often pkg was classified.
func (c *Classifier) Calls(pkg string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[pkg]
}

// Editor records manifest edits and fails for selected packages.
type Editor struct {
	mu      sync.Mutex
	Fail    map[string]error
	applied []string
}

var _ interfaces.ManifestEditor = (*Editor)(nil)

// Apply implements interfaces.ManifestEditor.
func (e *Editor) Apply(ctx context.Context, pkg types.Package, entry types.ReleaseEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.Fail[pkg.Name]; err != nil {
		return err
	}
	e.applied = append(e.applied, pkg.Name+"@"+entry.To)
	return nil
}

// Applied returns name@to for each successful edit, sorted.
func (e *Editor) Applied() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := append([]string(nil), e.applied...)
	sort.Strings(out)
	return out
}
