package cargo

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/afero"

	"github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/interfaces"
	"github.com/conneroisu/cascade/internal/logging"
	"github.com/conneroisu/cascade/internal/types"
)

var _ interfaces.ManifestEditor = (*Editor)(nil)

// Editor rewrites member manifests so they match a release plan.
type Editor struct {
	fs       afero.Fs
	versions map[string]string
	logger   logging.Logger
}

// NewEditor creates an editor targeting the versions of plan.
func NewEditor(fs afero.Fs, plan *types.Plan, logger logging.Logger) *Editor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	versions := map[string]string{}
	if plan != nil {
		for _, e := range plan.Entries {
			versions[e.Name] = e.To
		}
	}
	return &Editor{fs: fs, versions: versions, logger: logger.WithComponent("manifest")}
}

// Apply rewrites the manifest of pkg in place.
func (e *Editor) Apply(ctx context.Context, pkg types.Package, entry types.ReleaseEntry) error {
	src, err := afero.ReadFile(e.fs, pkg.ManifestPath)
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeManifestRewrite, "reading manifest").
			WithPackage(pkg.Name).WithFile(pkg.ManifestPath)
	}

	out, err := e.Rewrite(src, pkg, entry)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, errors.ErrCodeManifestRewrite, "rewriting manifest").
			WithPackage(pkg.Name).WithFile(pkg.ManifestPath)
	}
	if bytes.Equal(src, out) {
		return nil
	}

	if err := afero.WriteFile(e.fs, pkg.ManifestPath, out, 0o644); err != nil {
		return errors.WrapIO(err, errors.ErrCodeManifestRewrite, "writing manifest").
			WithPackage(pkg.Name).WithFile(pkg.ManifestPath)
	}
	e.logger.Debug(ctx, "Rewrote manifest", "package", pkg.Name, "version", entry.To)
	return nil
}

// Rewrite returns src edited for entry: the package version, dependency
// requirements on planned packages, and the entry's removals.
func (e *Editor) Rewrite(src []byte, pkg types.Package, entry types.ReleaseEntry) ([]byte, error) {
	doc := parseDocument(src)

	if err := doc.setPackageVersion(pkg, entry.To); err != nil {
		return nil, err
	}
	for _, name := range entry.RemoveDeps {
		doc.removeDependency(name)
	}
	doc.rewriteRequirements(func(decl declaration) (string, bool) {
		return e.requirement(entry, decl)
	})
	for _, rf := range entry.RemoveFeatures {
		doc.removeFeature(rf)
	}

	// Cargo strips dev-dependencies on publish, so features naming them
	// would no longer resolve.
	if dev := doc.devOnly(); len(dev) > 0 {
		doc.editFeatures(func(f feature) ([]string, bool) {
			return filter(f.values, func(v string) bool {
				dep, _ := featureDep(v)
				return v == dep || !dev[dep]
			}), false
		})
	}
	return doc.bytes(), nil
}

// RewriteWorkspace updates `[workspace.dependencies]` of the root manifest
// to the planned versions.
func (e *Editor) RewriteWorkspace(ctx context.Context, path string) error {
	src, err := afero.ReadFile(e.fs, path)
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeManifestRewrite, "reading workspace manifest").WithFile(path)
	}
	doc := parseDocument(src)
	doc.rewriteRequirements(func(decl declaration) (string, bool) {
		if !decl.workspaceTable() {
			return "", false
		}
		return e.requirement(types.ReleaseEntry{}, decl)
	})
	out := doc.bytes()
	if bytes.Equal(src, out) {
		return nil
	}
	if err := afero.WriteFile(e.fs, path, out, 0o644); err != nil {
		return errors.WrapIO(err, errors.ErrCodeManifestRewrite, "writing workspace manifest").WithFile(path)
	}
	e.logger.Debug(ctx, "Rewrote workspace dependencies", "path", path)
	return nil
}

func (e *Editor) requirement(entry types.ReleaseEntry, decl declaration) (string, bool) {
	for _, rd := range entry.RewriteDeps {
		if rd.Name == decl.key || rd.Name == decl.pkg {
			if rd.Version != "" {
				return rd.Version, true
			}
			break
		}
	}
	v, ok := e.versions[decl.pkg]
	if !ok {
		return "", false
	}
	return Requirement(v), true
}

// Requirement returns the dependency requirement pinning version. Prerelease
// versions are pinned exactly since caret requirements skip them.
func Requirement(version string) string {
	if v, err := semver.NewVersion(version); err == nil && v.Prerelease() != "" {
		return "=" + version
	}
	return version
}

func (d declaration) workspaceTable() bool {
	return len(d.sec.key) >= 2 && d.sec.key[0] == "workspace"
}

func (d *document) setPackageVersion(pkg types.Package, version string) error {
	s := d.find("package")
	if s == nil {
		return errors.NewValidationError(errors.ErrCodeManifestInvalid, "manifest has no [package] table")
	}
	nameLine := -1
	for i, line := range s.body {
		k, v, ok := keyValue(line)
		if !ok {
			continue
		}
		switch {
		case len(k) == 1 && k[0] == "name":
			nameLine = i
		case len(k) == 2 && k[0] == "version" && k[1] == "workspace",
			len(k) == 1 && k[0] == "version" && inlineTrue(line, "workspace"):
			if version != pkg.Version {
				return fmt.Errorf("version of %s is inherited from the workspace and cannot be set to %s", pkg.Name, version)
			}
			return nil
		case len(k) == 1 && k[0] == "version" && len(v) > 0 && (v[0] == '"' || v[0] == '\''):
			s.body[i] = setValue(line, version)
			return nil
		}
	}
	line := `version = "` + version + `"`
	at := nameLine + 1
	s.body = append(s.body[:at], append([]string{line}, s.body[at:]...)...)
	return nil
}

func (d *document) rewriteRequirements(req func(declaration) (string, bool)) {
	for _, decl := range d.declarations() {
		if decl.workspace {
			continue
		}
		v, ok := req(decl)
		if !ok {
			continue
		}
		s := decl.sec

		if decl.line < 0 {
			versionLine, hasPath := -1, false
			for i, line := range s.body {
				if k, _, ok := keyValue(line); ok && len(k) == 1 {
					switch k[0] {
					case "version":
						versionLine = i
					case "path":
						hasPath = true
					}
				}
			}
			switch {
			case versionLine >= 0:
				s.body[versionLine] = setValue(s.body[versionLine], v)
			case hasPath && !decl.dev:
				s.body = append([]string{`version = "` + v + `"`}, s.body...)
			}
			continue
		}

		line := s.body[decl.line]
		k, val, _ := keyValue(line)
		switch {
		case len(k) == 1 && len(val) > 0 && (val[0] == '"' || val[0] == '\''):
			s.body[decl.line] = setValue(line, v)
		case len(k) == 1 && len(val) > 0 && val[0] == '{':
			if _, ok := inlineField(line, "version"); ok {
				s.body[decl.line] = setInlineField(line, "version", v)
			} else if _, ok := inlineField(line, "path"); ok && !decl.dev {
				s.body[decl.line] = insertInlineField(line, "version", v)
			}
		default:
			for i, other := range s.body {
				if dottedKey(other, decl.key, "version") {
					s.body[i] = setValue(other, v)
				}
			}
		}
	}
}

func dottedKey(line, key, field string) bool {
	k, _, ok := keyValue(line)
	return ok && len(k) == 2 && k[0] == key && k[1] == field
}

// removeDependency deletes every declaration of name and the features that
// enable it.
func (d *document) removeDependency(name string) {
	drop := map[*section]map[int]bool{}
	removed := map[string]bool{}
	for _, decl := range d.declarations() {
		if decl.key != name && decl.pkg != name {
			continue
		}
		removed[decl.key] = true
		if decl.line < 0 {
			d.removeSection(decl.sec)
			continue
		}
		if drop[decl.sec] == nil {
			drop[decl.sec] = map[int]bool{}
		}
		for i, line := range decl.sec.body {
			if k, _, ok := keyValue(line); ok && k[0] == decl.key {
				drop[decl.sec][i] = true
			}
		}
	}
	for s, lines := range drop {
		body := s.body[:0:0]
		for i, line := range s.body {
			if !lines[i] {
				body = append(body, line)
			}
		}
		s.body = body
	}

	if len(removed) == 0 {
		return
	}
	d.editFeatures(func(f feature) ([]string, bool) {
		keep := make([]string, 0, len(f.values))
		for _, v := range f.values {
			dep, weak := featureDep(v)
			if !removed[dep] {
				keep = append(keep, v)
				continue
			}
			if !weak {
				return nil, true
			}
		}
		return keep, false
	})
}

func (d *document) removeSection(target *section) {
	out := d.sections[:0:0]
	for _, s := range d.sections {
		if s != target {
			out = append(out, s)
		}
	}
	d.sections = out
}

func (d *document) removeFeature(rf types.RemoveFeature) {
	d.editFeatures(func(f feature) ([]string, bool) {
		if f.name != rf.Feature {
			return f.values, false
		}
		if rf.Value == "" {
			return nil, true
		}
		return filter(f.values, func(v string) bool { return v != rf.Value }), false
	})
}
