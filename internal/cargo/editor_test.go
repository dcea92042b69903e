package cargo

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/cascade/internal/testutils"
	"github.com/conneroisu/cascade/internal/types"
)

func testPlan() *types.Plan {
	return &types.Plan{Entries: []types.ReleaseEntry{
		{Name: "core", From: "0.4.0", To: "0.5.0", Publish: true},
		{Name: "macros", From: "0.1.0", To: "0.1.1-rc.1", Publish: true},
		{Name: "api", From: "1.2.0", To: "2.0.0", Publish: true},
	}}
}

func TestRewriteVersionsAndRequirements(t *testing.T) {
	src := `# api crate
[package]
name = "api"
version = "1.2.0" # bumped by release tooling
edition = "2021"

[dependencies]
core = { path = "../core", version = "0.4.0" }
core-renamed = { path = "../core", package = "core" }
serde = "1"
macros.path = "../macros"
macros.version = "0.1.0"

[dependencies.core-table]
package = "core"
path = "../core"

[dev-dependencies]
core = { path = "../core" }
`
	e := NewEditor(afero.NewMemMapFs(), testPlan(), nil)
	out, err := e.Rewrite([]byte(src), testutils.Pkg("api", "1.2.0"), types.ReleaseEntry{Name: "api", To: "2.0.0"})
	require.NoError(t, err)

	want := `# api crate
[package]
name = "api"
version = "2.0.0" # bumped by release tooling
edition = "2021"

[dependencies]
core = { path = "../core", version = "0.5.0" }
core-renamed = { version = "0.5.0", path = "../core", package = "core" }
serde = "1"
macros.path = "../macros"
macros.version = "=0.1.1-rc.1"

[dependencies.core-table]
version = "0.5.0"
package = "core"
path = "../core"

[dev-dependencies]
core = { path = "../core" }
`
	assert.Equal(t, want, string(out))
}

func TestRewriteExplicitRequirement(t *testing.T) {
	src := "[package]\nname = \"api\"\nversion = \"1.2.0\"\n\n[dependencies]\ncore = { path = \"../core\", version = \"0.4.0\" }\n"
	e := NewEditor(afero.NewMemMapFs(), testPlan(), nil)

	out, err := e.Rewrite([]byte(src), testutils.Pkg("api", "1.2.0"), types.ReleaseEntry{
		Name:        "api",
		To:          "2.0.0",
		RewriteDeps: []types.RewriteDep{{Name: "core", Version: ">=0.4, <0.6"}},
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), `core = { path = "../core", version = ">=0.4, <0.6" }`)
}

func TestRewriteSkipsWorkspaceInheritance(t *testing.T) {
	src := "[package]\nname = \"api\"\nversion.workspace = true\n\n[dependencies]\ncore = { workspace = true }\n"
	e := NewEditor(afero.NewMemMapFs(), testPlan(), nil)

	out, err := e.Rewrite([]byte(src), testutils.Pkg("api", "2.0.0"), types.ReleaseEntry{Name: "api", To: "2.0.0"})
	require.NoError(t, err)
	assert.Equal(t, src, string(out))

	_, err = e.Rewrite([]byte(src), testutils.Pkg("api", "1.2.0"), types.ReleaseEntry{Name: "api", To: "2.0.0"})
	require.Error(t, err)
}

func TestRewriteRemovals(t *testing.T) {
	src := `[package]
name = "api"
version = "1.2.0"

[dependencies]
core = { path = "../core", version = "0.4.0" }
tracing = { version = "0.1", optional = true }
log = { version = "0.4", optional = true }

[dev-dependencies]
criterion = "0.5"

[features]
default = ["std", "log?/std"]
std = []
trace = ["dep:tracing"]
verbose = [
    "trace",
    "log?/kv",
]
bench = ["criterion/html"]
`
	e := NewEditor(afero.NewMemMapFs(), testPlan(), nil)
	out, err := e.Rewrite([]byte(src), testutils.Pkg("api", "1.2.0"), types.ReleaseEntry{
		Name:           "api",
		To:             "2.0.0",
		RemoveDeps:     []string{"tracing", "log"},
		RemoveFeatures: []types.RemoveFeature{{Feature: "verbose", Value: "trace"}},
	})
	require.NoError(t, err)

	want := `[package]
name = "api"
version = "2.0.0"

[dependencies]
core = { path = "../core", version = "0.5.0" }

[dev-dependencies]
criterion = "0.5"

[features]
default = ["std"]
std = []
verbose = []
bench = []
`
	assert.Equal(t, want, string(out))
}

func TestRewriteRemoveWholeFeature(t *testing.T) {
	src := "[package]\nname = \"api\"\nversion = \"1.2.0\"\n\n[features]\nstd = []\nextra = [\"std\"]\n"
	e := NewEditor(afero.NewMemMapFs(), testPlan(), nil)

	out, err := e.Rewrite([]byte(src), testutils.Pkg("api", "1.2.0"), types.ReleaseEntry{
		Name:           "api",
		To:             "1.2.0",
		RemoveFeatures: []types.RemoveFeature{{Feature: "extra"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "[package]\nname = \"api\"\nversion = \"1.2.0\"\n\n[features]\nstd = []\n", string(out))
}

func TestRewriteRequiresPackageTable(t *testing.T) {
	e := NewEditor(afero.NewMemMapFs(), testPlan(), nil)
	_, err := e.Rewrite([]byte("[workspace]\n"), testutils.Pkg("api", "1.2.0"), types.ReleaseEntry{Name: "api", To: "2.0.0"})
	require.Error(t, err)
}

func TestApplyWritesManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	pkg := testutils.Pkg("core", "0.4.0")
	pkg.ManifestPath = "/ws/core/Cargo.toml"
	require.NoError(t, afero.WriteFile(fs, pkg.ManifestPath, []byte("[package]\nname = \"core\"\nversion = \"0.4.0\"\n"), 0o644))

	e := NewEditor(fs, testPlan(), nil)
	require.NoError(t, e.Apply(context.Background(), pkg, types.ReleaseEntry{Name: "core", To: "0.5.0"}))

	data, err := afero.ReadFile(fs, pkg.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, "[package]\nname = \"core\"\nversion = \"0.5.0\"\n", string(data))

	missing := testutils.Pkg("gone", "0.1.0")
	missing.ManifestPath = "/ws/gone/Cargo.toml"
	require.Error(t, e.Apply(context.Background(), missing, types.ReleaseEntry{Name: "gone", To: "0.2.0"}))
}

func TestRewriteWorkspace(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := `[workspace]
members = ["crates/*"]

[workspace.dependencies]
core = { path = "crates/core", version = "0.4.0" }
serde = "1"
`
	require.NoError(t, afero.WriteFile(fs, "/ws/Cargo.toml", []byte(src), 0o644))

	e := NewEditor(fs, testPlan(), nil)
	require.NoError(t, e.RewriteWorkspace(context.Background(), "/ws/Cargo.toml"))

	data, err := afero.ReadFile(fs, "/ws/Cargo.toml")
	require.NoError(t, err)
	assert.Contains(t, string(data), `core = { path = "crates/core", version = "0.5.0" }`)
	assert.Contains(t, string(data), `serde = "1"`)
}

func TestRequirement(t *testing.T) {
	assert.Equal(t, "1.0.0", Requirement("1.0.0"))
	assert.Equal(t, "=1.0.0-rc.1", Requirement("1.0.0-rc.1"))
}
