package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/conneroisu/cascade/internal/cargo"
	"github.com/conneroisu/cascade/internal/config"
	"github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/plan"
	"github.com/conneroisu/cascade/internal/types"
)

// WorkspaceService answers read-only questions about the workspace.
type WorkspaceService struct {
	*runtime
}

// NewWorkspaceService creates a workspace service.
func NewWorkspaceService(cfg *config.Config, fs afero.Fs, opts ...Option) (*WorkspaceService, error) {
	rt, err := newRuntime(cfg, fs, opts...)
	if err != nil {
		return nil, err
	}
	return &WorkspaceService{runtime: rt}, nil
}

// State compares a local package with the registry.
type State string

const (
	// StateMissing means the registry has no version of the package.
	StateMissing State = "missing"
	// StateUnreleased means the local version was never published.
	StateUnreleased State = "unreleased"
	// StateReleased means the local version is on the registry.
	StateReleased State = "released"
	// StatePrivate marks packages that are not published.
	StatePrivate State = "private"
)

// PackageStatus is one row of `cascade status`.
type PackageStatus struct {
	Name     string `json:"name" yaml:"name"`
	Local    string `json:"local" yaml:"local"`
	Registry string `json:"registry,omitempty" yaml:"registry,omitempty"`
	Planned  string `json:"planned,omitempty" yaml:"planned,omitempty"`
	State    State  `json:"state" yaml:"state"`
}

// Status reports every workspace package next to the highest registry
// version and the planned version, if a plan exists.
func (s *WorkspaceService) Status(ctx context.Context) ([]PackageStatus, error) {
	ws, graph, err := s.loadWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, pkg := range ws.Packages {
		if pkg.Publishable {
			names = append(names, pkg.Name)
		}
	}
	snap, err := s.snapshot(ctx, names)
	if err != nil {
		return nil, err
	}
	p, err := s.store().LoadOrEmpty()
	if err != nil {
		return nil, err
	}

	out := make([]PackageStatus, 0, graph.Len())
	for _, pkg := range ws.Packages {
		st := PackageStatus{Name: pkg.Name, Local: pkg.Version}
		if e, ok := p.Entry(pkg.Name); ok && e.Publish {
			st.Planned = e.To
		}
		switch {
		case !pkg.Publishable:
			st.State = StatePrivate
		case len(snap.Versions(pkg.Name)) == 0:
			st.State = StateMissing
		case snap.Has(pkg.Name, pkg.Version):
			st.State = StateReleased
		default:
			st.State = StateUnreleased
		}
		if v, ok := snap.Highest(pkg.Name); ok {
			st.Registry = v.String()
		}
		out = append(out, st)
	}
	return out, nil
}

// Finding is one problem reported by Check.
type Finding struct {
	Package string
	Path    string
	Message string
	// Fatal findings make the check fail.
	Fatal bool
}

func (f Finding) String() string {
	if f.Path == "" {
		return f.Package + ": " + f.Message
	}
	return fmt.Sprintf("%s: %s (%s)", f.Package, f.Message, f.Path)
}

// Check lints the workspace for publishing and validates the stored plan
// against it. A missing plan is not a finding.
func (s *WorkspaceService) Check(ctx context.Context) ([]Finding, error) {
	ws, graph, err := s.loadWorkspace(ctx)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for _, pkg := range ws.Packages {
		if !pkg.Publishable {
			continue
		}
		rel, _ := filepath.Rel(ws.Root, pkg.ManifestPath)
		md, err := cargo.ReadMetadata(s.fs, pkg)
		if err != nil {
			return nil, errors.WrapIO(err, errors.ErrCodeManifestInvalid, "reading package metadata").
				WithPackage(pkg.Name).WithFile(pkg.ManifestPath)
		}
		if md.Description == "" {
			findings = append(findings, Finding{Package: pkg.Name, Path: rel, Message: "has no description", Fatal: true})
		}
		if md.License == "" && md.LicenseFile == "" {
			findings = append(findings, Finding{Package: pkg.Name, Path: rel, Message: "has no license", Fatal: true})
		}
		if md.MissingReadme(s.fs, pkg) {
			findings = append(findings, Finding{Package: pkg.Name, Path: rel, Message: "specifies a readme that does not exist"})
		}
	}

	// Every package reachable from a publishable one through normal or
	// build dependencies must itself be publishable.
	needed := map[string]bool{}
	var visit func(name string)
	visit = func(name string) {
		for _, dep := range graph.Dependencies(name) {
			if !needed[dep] {
				needed[dep] = true
				visit(dep)
			}
		}
	}
	for _, pkg := range ws.Packages {
		if pkg.Publishable {
			visit(pkg.Name)
		}
	}
	for _, pkg := range ws.Packages {
		if needed[pkg.Name] && !pkg.Publishable {
			rel, _ := filepath.Rel(ws.Root, pkg.ManifestPath)
			findings = append(findings, Finding{Package: pkg.Name, Path: rel,
				Message: "is not published but a publishable package depends on it", Fatal: true})
		}
	}

	p, err := s.store().Load()
	switch {
	case errors.HasCode(err, errors.ErrCodePlanNotFound):
	case err != nil:
		return nil, err
	default:
		verr := plan.Validate(p, graph)
		for _, issue := range plan.Issues(verr) {
			findings = append(findings, Finding{Package: issue.Package, Path: s.store().Path(),
				Message: issue.Message, Fatal: true})
		}
	}

	sort.SliceStable(findings, func(i, j int) bool { return findings[i].Package < findings[j].Package })
	return findings, nil
}

// Failed reports whether any finding is fatal.
func Failed(findings []Finding) bool {
	for _, f := range findings {
		if f.Fatal {
			return true
		}
	}
	return false
}

// Changed lists the packages with changes since ref.
func (s *WorkspaceService) Changed(ctx context.Context, ref string) ([]string, error) {
	if ref == "" {
		return nil, errors.NewValidationError(errors.ErrCodeChangeDetection, "a git revision is required")
	}
	ws, _, err := s.loadWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	return s.changeDetector(ws).ChangedSince(ctx, ref)
}

// Packages returns the loaded workspace members.
func (s *WorkspaceService) Packages(ctx context.Context) ([]types.Package, error) {
	ws, _, err := s.loadWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	return ws.Packages, nil
}

// TokenSet reports whether the registry token variable is non-empty.
func (s *WorkspaceService) TokenSet() bool {
	return s.getenv(s.config.Registry.TokenEnv) != ""
}
