// Package cargo reads Cargo workspaces and rewrites member manifests for a
// release.
package cargo

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/logging"
	"github.com/conneroisu/cascade/internal/types"
)

// ManifestName is the file name of a package manifest.
const ManifestName = "Cargo.toml"

// Workspace is a loaded Cargo workspace.
type Workspace struct {
	Root         string
	ManifestPath string
	Packages     []types.Package
}

type manifest struct {
	Workspace *struct {
		Members []string `toml:"members"`
		Exclude []string `toml:"exclude"`
		Package struct {
			Version string `toml:"version"`
		} `toml:"package"`
		Dependencies map[string]any `toml:"dependencies"`
	} `toml:"workspace"`
	Package *struct {
		Name    string `toml:"name"`
		Version any    `toml:"version"`
		Publish any    `toml:"publish"`
	} `toml:"package"`
	Dependencies      map[string]any `toml:"dependencies"`
	BuildDependencies map[string]any `toml:"build-dependencies"`
	Target            map[string]struct {
		Dependencies      map[string]any `toml:"dependencies"`
		BuildDependencies map[string]any `toml:"build-dependencies"`
	} `toml:"target"`
}

type member struct {
	pkg  types.Package
	deps []string
}

// LoadWorkspace reads the workspace rooted at root. Dev-dependencies are not
// part of the dependency graph since Cargo drops them on publish.
func LoadWorkspace(ctx context.Context, fs afero.Fs, root string, logger logging.Logger) (*Workspace, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	rootPath := filepath.Join(root, ManifestName)
	rootManifest, err := readManifest(fs, rootPath)
	if err != nil {
		return nil, err
	}

	var dirs []string
	if rootManifest.Package != nil {
		dirs = append(dirs, root)
	}
	var workspaceDeps map[string]any
	inherited := ""
	if ws := rootManifest.Workspace; ws != nil {
		workspaceDeps = ws.Dependencies
		inherited = ws.Package.Version
		excluded := map[string]bool{}
		for _, ex := range ws.Exclude {
			excluded[filepath.Clean(filepath.Join(root, ex))] = true
		}
		for _, pattern := range ws.Members {
			matches, err := afero.Glob(fs, filepath.Join(root, pattern))
			if err != nil {
				return nil, errors.WrapIO(err, errors.ErrCodeManifestInvalid, "expanding workspace members").
					WithContext("pattern", pattern)
			}
			for _, dir := range matches {
				if excluded[filepath.Clean(dir)] {
					continue
				}
				if ok, _ := afero.Exists(fs, filepath.Join(dir, ManifestName)); ok {
					dirs = append(dirs, dir)
				}
			}
		}
	}

	var members []member
	seen := map[string]bool{}
	for _, dir := range dirs {
		dir = filepath.Clean(dir)
		if seen[dir] {
			continue
		}
		seen[dir] = true

		path := filepath.Join(dir, ManifestName)
		m := rootManifest
		if dir != filepath.Clean(root) {
			if m, err = readManifest(fs, path); err != nil {
				return nil, err
			}
		}
		if m.Package == nil {
			logger.Debug(ctx, "Skipping virtual manifest", "path", path)
			continue
		}

		version, err := packageVersion(m, inherited)
		if err != nil {
			return nil, err.WithFile(path)
		}
		members = append(members, member{
			pkg: types.Package{
				Name:         m.Package.Name,
				Version:      version,
				Dir:          dir,
				ManifestPath: path,
				Publishable:  publishable(m.Package.Publish),
			},
			deps: dependencyNames(m, workspaceDeps),
		})
	}

	names := map[string]bool{}
	for _, m := range members {
		names[m.pkg.Name] = true
	}
	ws := &Workspace{Root: root, ManifestPath: rootPath}
	for _, m := range members {
		for _, dep := range m.deps {
			if dep == m.pkg.Name {
				continue
			}
			if names[dep] {
				m.pkg.Dependencies = append(m.pkg.Dependencies, dep)
			} else {
				m.pkg.External = append(m.pkg.External, dep)
			}
		}
		ws.Packages = append(ws.Packages, m.pkg)
	}
	sort.Slice(ws.Packages, func(i, j int) bool { return ws.Packages[i].Name < ws.Packages[j].Name })

	logger.Debug(ctx, "Loaded workspace", "root", root, "members", len(ws.Packages))
	return ws, nil
}

// Package returns the member named name.
func (w *Workspace) Package(name string) (types.Package, bool) {
	for _, p := range w.Packages {
		if p.Name == name {
			return p, true
		}
	}
	return types.Package{}, false
}

func readManifest(fs afero.Fs, path string) (*manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeManifestInvalid, "reading manifest").WithFile(path)
	}
	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, errors.ErrCodeManifestInvalid, "parsing manifest").WithFile(path)
	}
	return &m, nil
}

func packageVersion(m *manifest, inherited string) (string, *errors.CascadeError) {
	switch v := m.Package.Version.(type) {
	case string:
		return v, nil
	case nil:
		return "0.0.0", nil
	case map[string]any:
		if w, _ := v["workspace"].(bool); w && inherited != "" {
			return inherited, nil
		}
	}
	return "", errors.NewValidationError(errors.ErrCodeManifestInvalid,
		"cannot resolve version of "+m.Package.Name).WithPackage(m.Package.Name)
}

// publishable follows Cargo: `publish = false` and registry lists without
// crates-io keep a package off crates.io.
func publishable(v any) bool {
	switch p := v.(type) {
	case bool:
		return p
	case []any:
		for _, r := range p {
			if s, _ := r.(string); s == "crates-io" {
				return true
			}
		}
		return false
	}
	return true
}

func dependencyNames(m *manifest, workspaceDeps map[string]any) []string {
	tables := []map[string]any{m.Dependencies, m.BuildDependencies}
	for _, t := range m.Target {
		tables = append(tables, t.Dependencies, t.BuildDependencies)
	}

	set := map[string]bool{}
	for _, table := range tables {
		for key, spec := range table {
			set[resolveName(key, spec, workspaceDeps)] = true
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// resolveName returns the package a dependency declaration refers to,
// following `package = ...` renames and `workspace = true` inheritance.
func resolveName(key string, spec any, workspaceDeps map[string]any) string {
	t, ok := spec.(map[string]any)
	if !ok {
		return key
	}
	if p, ok := t["package"].(string); ok && p != "" {
		return strings.TrimSpace(p)
	}
	if w, _ := t["workspace"].(bool); w {
		if ws, ok := workspaceDeps[key]; ok {
			return resolveName(key, ws, nil)
		}
	}
	return key
}
