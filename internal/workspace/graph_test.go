package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/testutils"
	"github.com/conneroisu/cascade/internal/types"
)

func TestNewGraph(t *testing.T) {
	g, err := NewGraph([]types.Package{
		testutils.Pkg("core", "1.0.0"),
		testutils.Pkg("macros", "1.0.0", "core", "serde", "core"),
		testutils.Pkg("cli", "1.0.0", "macros", "core"),
	})
	require.NoError(t, err)

	t.Run("edges to non-members are ignored", func(t *testing.T) {
		assert.Equal(t, []string{"core"}, g.Dependencies("macros"))
	})

	t.Run("dependents are reverse edges", func(t *testing.T) {
		assert.Equal(t, []string{"cli", "macros"}, g.Dependents("core"))
		assert.Empty(t, g.Dependents("cli"))
	})

	t.Run("names are sorted", func(t *testing.T) {
		assert.Equal(t, []string{"cli", "core", "macros"}, g.Names())
		assert.Equal(t, 3, g.Len())
	})

	t.Run("package lookup", func(t *testing.T) {
		p, ok := g.Package("cli")
		require.True(t, ok)
		assert.Equal(t, "1.0.0", p.Version)
		assert.False(t, g.Has("serde"))
	})

	t.Run("transitive dependents", func(t *testing.T) {
		assert.Equal(t, []string{"cli", "macros"}, g.TransitiveDependents("core"))
		assert.Equal(t, []string{"cli"}, g.TransitiveDependents("macros"))
		assert.Empty(t, g.TransitiveDependents("cli"))
	})
}

func TestNewGraphRejectsDuplicates(t *testing.T) {
	_, err := NewGraph([]types.Package{
		testutils.Pkg("a", "1.0.0"),
		testutils.Pkg("a", "2.0.0"),
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeDuplicatePackage))
}
