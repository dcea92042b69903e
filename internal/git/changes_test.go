package git

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/types"
)

func members() []types.Package {
	return []types.Package{
		{Name: "root", Dir: "/ws"},
		{Name: "core", Dir: "/ws/crates/core"},
		{Name: "core-derive", Dir: "/ws/crates/core-derive"},
		{Name: "api", Dir: "/ws/crates/api"},
	}
}

func TestOwners(t *testing.T) {
	got := Owners("/ws", members(), []string{
		"crates/core/src/lib.rs",
		"crates/core-derive/src/lib.rs",
		"crates/core/Cargo.toml",
		"README.md",
	})

	assert.Equal(t, map[string][]string{
		"core":        {"crates/core/src/lib.rs", "crates/core/Cargo.toml"},
		"core-derive": {"crates/core-derive/src/lib.rs"},
		"root":        {"README.md"},
	}, got)
}

func TestOwnersRelativeDirs(t *testing.T) {
	pkgs := []types.Package{{Name: "a", Dir: "a"}, {Name: "b", Dir: "b"}}
	got := Owners(".", pkgs, []string{"b/src/main.rs", "docs/index.md"})
	assert.Equal(t, map[string][]string{"b": {"b/src/main.rs"}}, got)
}

type fakeGit struct {
	diff  string
	shows map[string]string
	err   error
	calls []string
}

func (f *fakeGit) run(_ context.Context, _ string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, strings.Join(args, " "))
	if f.err != nil {
		return nil, f.err
	}
	switch args[0] {
	case "diff":
		return []byte(f.diff), nil
	case "show":
		if s, ok := f.shows[args[1]]; ok {
			return []byte(s), nil
		}
		return nil, fmt.Errorf("no such path %s", args[1])
	}
	return nil, errors.New("unexpected command")
}

func TestChangedSince(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ws/crates/api/Cargo.toml",
		[]byte("[package]\nname = \"api\"\nversion = \"2.0.0\"\n\n[dependencies]\ncore = \"0.5\"\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/ws/crates/core-derive/Cargo.toml",
		[]byte("[package]\nname = \"core-derive\"\nversion = \"0.1.0\"\nedition = \"2021\"\n"), 0o644))

	git := &fakeGit{
		diff: "crates/core/src/lib.rs\ncrates/api/Cargo.toml\ncrates/core-derive/Cargo.toml\n",
		shows: map[string]string{
			"v1:./crates/api/Cargo.toml":         "[package]\nname = \"api\"\nversion = \"1.0.0\"\n\n[dependencies]\ncore = \"0.4\"\n",
			"v1:./crates/core-derive/Cargo.toml": "[package]\nname = \"core-derive\"\nversion = \"0.1.0\"\nedition = \"2018\"\n",
		},
	}
	d := NewDetector(fs, "/ws", members(), git.run, nil)

	changed, err := d.ChangedSince(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"core", "core-derive"}, changed)
	assert.Contains(t, git.calls, "diff --name-only --relative v1")
}

func TestChangedSinceNewManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ws/crates/api/Cargo.toml", []byte("[package]\nname = \"api\"\n"), 0o644))

	git := &fakeGit{diff: "crates/api/Cargo.toml\n"}
	d := NewDetector(fs, "/ws", members(), git.run, nil)

	changed, err := d.ChangedSince(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"api"}, changed)
}

func TestChangedSinceGitFailure(t *testing.T) {
	git := &fakeGit{err: errors.New("fatal: bad revision 'nope'")}
	d := NewDetector(afero.NewMemMapFs(), "/ws", members(), git.run, nil)

	_, err := d.ChangedSince(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, cerrors.HasCode(err, cerrors.ErrCodeChangeDetection))
}
