// Package plan decides, per workspace package, whether a release is needed
// and which version it gets.
package plan

import (
	"context"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/interfaces"
	"github.com/conneroisu/cascade/internal/logging"
	"github.com/conneroisu/cascade/internal/registry"
	"github.com/conneroisu/cascade/internal/types"
	"github.com/conneroisu/cascade/internal/workspace"
)

// DefaultSeed is the from version of a package the registry has never seen.
const DefaultSeed = "0.1.0"

// Request selects what a planning run should release.
type Request struct {
	// Packages are released because they were named explicitly.
	Packages []string
	// All releases every publishable package.
	All bool
	// Since releases packages changed since this revision.
	Since string
	// Pre is appended to every computed version as a prerelease suffix.
	Pre string
	// Fresh ignores the prior plan.
	Fresh bool
	// Description is stored in the plan options when non-empty.
	Description string
}

// Planner computes release entries.
type Planner struct {
	graph      *workspace.Graph
	snapshot   registry.Snapshot
	changes    interfaces.ChangeDetector
	classifier interfaces.CompatibilityClassifier
	logger     logging.Logger
	seed       string
}

// Option configures a Planner.
type Option func(*Planner)

// WithSeed overrides DefaultSeed.
func WithSeed(seed string) Option {
	return func(p *Planner) {
		if seed != "" {
			p.seed = seed
		}
	}
}

// WithLogger sets the planner's logger.
func WithLogger(logger logging.Logger) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger.WithComponent("planner")
		}
	}
}

// NewPlanner creates a planner. changes may be nil when change detection is
// never requested.
func NewPlanner(
	graph *workspace.Graph,
	snapshot registry.Snapshot,
	changes interfaces.ChangeDetector,
	classifier interfaces.CompatibilityClassifier,
	opts ...Option,
) *Planner {
	p := &Planner{
		graph:      graph,
		snapshot:   snapshot,
		changes:    changes,
		classifier: classifier,
		logger:     logging.NewNopLogger(),
		seed:       DefaultSeed,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan walks the workspace in dependency order and returns a plan merged
// with prior. prior may be nil.
func (p *Planner) Plan(ctx context.Context, prior *types.Plan, req Request) (*types.Plan, error) {
	order, err := p.graph.Order()
	if err != nil {
		return nil, err
	}

	specified := make(map[string]bool, len(req.Packages))
	for _, name := range req.Packages {
		if !p.graph.Has(name) {
			return nil, errors.ErrUnknownPackage(name)
		}
		specified[name] = true
	}

	changed := make(map[string]bool)
	if req.Since != "" {
		if p.changes == nil {
			return nil, errors.NewPlanningError(errors.ErrCodeChangeDetection,
				"change detection is not configured", nil)
		}
		names, err := p.changes.ChangedSince(ctx, req.Since)
		if err != nil {
			return nil, errors.WrapPlanning(err, errors.ErrCodeChangeDetection,
				"detecting changes since "+req.Since)
		}
		for _, name := range names {
			changed[name] = true
		}
		p.logger.Info(ctx, "Detected changed packages", "since", req.Since, "count", len(names))
	}

	if req.Fresh {
		prior = nil
	}

	out := &types.Plan{}
	if prior != nil {
		out.Options = prior.Options
	}
	if req.Description != "" {
		out.Options.Description = req.Description
	}

	seed, err := parseVersion(p.seed)
	if err != nil {
		return nil, err
	}

	// bumps holds the bump of every package decided to publish so far.
	bumps := make(map[string]types.BumpKind, len(order))
	classified := make(map[string]types.BumpKind)

	for _, name := range order {
		pkg, _ := p.graph.Package(name)

		reason := types.ReasonNone
		if pkg.Publishable {
			reason = p.reason(pkg, req, specified, changed, bumps)
		}

		old, hasOld := prior.Entry(name)
		if hasOld && (!old.Publish && reason != types.ReasonNone) {
			hasOld = false
		}
		if hasOld {
			out.Entries = append(out.Entries, old)
			if old.Publish {
				bumps[name] = old.Bump
			}
			continue
		}

		entry, err := p.decide(ctx, pkg, reason, req.Pre, seed, classified)
		if err != nil {
			return nil, err
		}
		if carried, ok := prior.Entry(name); ok {
			entry.RewriteDeps = carried.RewriteDeps
			entry.RemoveFeatures = carried.RemoveFeatures
			entry.RemoveDeps = carried.RemoveDeps
		}
		if entry.Publish {
			bumps[name] = entry.Bump
		}
		out.Entries = append(out.Entries, entry)
	}

	return out, nil
}

func (p *Planner) reason(
	pkg types.Package,
	req Request,
	specified, changed map[string]bool,
	bumps map[string]types.BumpKind,
) types.Reason {
	switch {
	case req.All:
		return types.ReasonAll
	case specified[pkg.Name]:
		return types.ReasonSpecified
	case changed[pkg.Name]:
		return types.ReasonChanged
	}

	for _, dep := range p.graph.Dependencies(pkg.Name) {
		if kind, ok := bumps[dep]; ok && kind > types.BumpPatch {
			return types.ReasonBumpedByDependency
		}
	}
	return types.ReasonNone
}

func (p *Planner) decide(
	ctx context.Context,
	pkg types.Package,
	reason types.Reason,
	pre string,
	seed *semver.Version,
	classified map[string]types.BumpKind,
) (types.ReleaseEntry, error) {
	from, ok := p.snapshot.Highest(pkg.Name)
	if !ok {
		from = seed
	}

	entry := types.ReleaseEntry{
		Name: pkg.Name,
		From: from.String(),
		To:   from.String(),
		Bump: types.BumpNone,
	}
	if reason == types.ReasonNone {
		return entry, nil
	}

	onDisk, err := parseVersion(pkg.Version)
	if err != nil {
		return entry, errors.Wrap(err, errors.ErrorTypeValidation, errors.ErrCodeInvalidVersion,
			"reading on-disk version").WithPackage(pkg.Name)
	}

	kind, done := classified[pkg.Name]
	if !done {
		kind = p.classify(ctx, pkg, entry.From)
		classified[pkg.Name] = kind
	}

	to, err := Target(from, onDisk, kind, pre)
	if err != nil {
		return entry, err
	}

	if p.snapshot.Has(pkg.Name, to.String()) {
		p.logger.Info(ctx, "Planned version already released, not publishing",
			"package", pkg.Name, "version", to.String())
		entry.From = to.String()
		entry.To = to.String()
		return entry, nil
	}

	entry.To = to.String()
	entry.Bump = kind
	entry.Publish = true
	entry.Reason = reason
	return entry, nil
}

// classify asks the classifier once. Failures fall back to a major bump.
func (p *Planner) classify(ctx context.Context, pkg types.Package, baseline string) types.BumpKind {
	if p.classifier == nil {
		return types.BumpMajor
	}
	kind, err := p.classifier.Compare(ctx, pkg, baseline)
	if err != nil {
		p.logger.Warn(ctx, err, "Compatibility check failed, assuming breaking change",
			"package", pkg.Name)
		return types.BumpMajor
	}
	if kind == types.BumpNone {
		kind = types.BumpPatch
	}
	return kind
}

// Names returns the names of entries, in plan order.
func Names(entries []types.ReleaseEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

// Sorted returns entries reordered into the graph's dependency order.
func Sorted(g *workspace.Graph, entries []types.ReleaseEntry) ([]types.ReleaseEntry, error) {
	order, err := g.Sort(Names(entries))
	if err != nil {
		return nil, err
	}
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	out := append([]types.ReleaseEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool { return pos[out[i].Name] < pos[out[j].Name] })
	return out, nil
}
