// Package git detects which workspace packages changed since a revision.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/interfaces"
	"github.com/conneroisu/cascade/internal/logging"
	"github.com/conneroisu/cascade/internal/types"
)

// Runner runs git with args in dir and returns its standard output.
type Runner func(ctx context.Context, dir string, args ...string) ([]byte, error)

// ExecRunner runs the git binary.
func ExecRunner(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

var _ interfaces.ChangeDetector = (*Detector)(nil)

// Detector maps changed files to the packages owning them.
type Detector struct {
	fs       afero.Fs
	root     string
	packages []types.Package
	run      Runner
	logger   logging.Logger
}

// NewDetector creates a detector for the workspace at root. A nil run uses
// the git binary.
func NewDetector(fs afero.Fs, root string, packages []types.Package, run Runner, logger logging.Logger) *Detector {
	if run == nil {
		run = ExecRunner
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Detector{
		fs:       fs,
		root:     root,
		packages: packages,
		run:      run,
		logger:   logger.WithComponent("git"),
	}
}

// ChangedSince returns the sorted names of packages with files changed
// between ref and the working tree. A package whose only change is its
// manifest's version or dependency requirements is not reported, so a
// previous release's manifest rewrite does not count as a change.
func (d *Detector) ChangedSince(ctx context.Context, ref string) ([]string, error) {
	out, err := d.run(ctx, d.root, "diff", "--name-only", "--relative", ref)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypePlanning, errors.ErrCodeChangeDetection, "listing changed files").
			WithContext("ref", ref)
	}

	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, filepath.ToSlash(line))
		}
	}

	owned := Owners(d.root, d.packages, files)
	var changed []string
	for _, pkg := range d.packages {
		pkgFiles, ok := owned[pkg.Name]
		if !ok {
			continue
		}
		if len(pkgFiles) == 1 && filepath.Base(pkgFiles[0]) == "Cargo.toml" && !d.manifestChanged(ctx, ref, pkgFiles[0]) {
			d.logger.Debug(ctx, "Ignoring release-only manifest change", "package", pkg.Name)
			continue
		}
		changed = append(changed, pkg.Name)
	}
	sort.Strings(changed)
	return changed, nil
}

// manifestChanged compares the manifest at ref with the working tree,
// ignoring the keys a release rewrites.
func (d *Detector) manifestChanged(ctx context.Context, ref, path string) bool {
	old, err := d.run(ctx, d.root, "show", ref+":./"+path)
	if err != nil {
		// New at ref or unreadable: a real change.
		return true
	}
	current, err := afero.ReadFile(d.fs, filepath.Join(d.root, filepath.FromSlash(path)))
	if err != nil {
		return true
	}
	a, errA := normalizeManifest(old)
	b, errB := normalizeManifest(current)
	if errA != nil || errB != nil {
		return true
	}
	return !reflect.DeepEqual(a, b)
}

func normalizeManifest(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	delete(m, "dependencies")
	delete(m, "build-dependencies")
	delete(m, "dev-dependencies")
	if pkg, ok := m["package"].(map[string]any); ok {
		delete(pkg, "version")
		delete(pkg, "description")
		delete(pkg, "license")
	}
	return m, nil
}

// Owners assigns each file (slash separated, relative to root) to the
// package whose directory is its longest prefix. Files outside every
// package are dropped.
func Owners(root string, packages []types.Package, files []string) map[string][]string {
	type owner struct {
		prefix string
		name   string
	}
	owners := make([]owner, 0, len(packages))
	for _, pkg := range packages {
		rel := filepath.Clean(pkg.Dir)
		if filepath.IsAbs(rel) {
			if r, err := filepath.Rel(root, rel); err == nil {
				rel = r
			}
		}
		rel = filepath.ToSlash(rel)
		prefix := ""
		if rel != "." {
			prefix = rel + "/"
		}
		owners = append(owners, owner{prefix: prefix, name: pkg.Name})
	}
	sort.Slice(owners, func(i, j int) bool { return len(owners[i].prefix) > len(owners[j].prefix) })

	out := map[string][]string{}
	for _, f := range files {
		for _, o := range owners {
			if strings.HasPrefix(f, o.prefix) {
				out[o.name] = append(out[o.name], f)
				break
			}
		}
	}
	return out
}
