package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/cascade/internal/testutils"
	"github.com/conneroisu/cascade/internal/types"
	"github.com/conneroisu/cascade/internal/workspace"
)

func TestValidate(t *testing.T) {
	private := testutils.Pkg("private", "0.1.0")
	private.Publishable = false
	g, err := workspace.NewGraph([]types.Package{
		testutils.Pkg("a", "1.0.0"),
		testutils.Pkg("b", "1.0.0", "a", "private"),
		private,
	})
	require.NoError(t, err)

	t.Run("valid plan", func(t *testing.T) {
		p := &types.Plan{Entries: []types.ReleaseEntry{
			{Name: "a", From: "1.0.0", To: "2.0.0", Bump: types.BumpMajor, Publish: true, Reason: types.ReasonSpecified},
			{Name: "private", From: "0.1.0", To: "0.1.0"},
		}}
		assert.NoError(t, Validate(p, g))
	})

	t.Run("every issue is reported", func(t *testing.T) {
		p := &types.Plan{Entries: []types.ReleaseEntry{
			{Name: "b", From: "1.0.0", To: "1.1.0", Publish: true, Reason: "whim"},
			{Name: "a", From: "2.0.0", To: "1.0.0", Publish: true},
			{Name: "a", From: "1.0.0", To: "1.0.0"},
			{Name: "private", From: "0.1.0", To: "0.2.0", Publish: false},
			{Name: "ghost", From: "1.0.0", To: "1.0.0"},
			{Name: "broken", From: "x", To: "1.0.0"},
		}}

		issues := Issues(Validate(p, g))
		byPkg := make(map[string][]string)
		for _, issue := range issues {
			byPkg[issue.Package] = append(byPkg[issue.Package], issue.Message)
		}

		assert.Contains(t, byPkg["b"], `unknown reason "whim"`)
		assert.Contains(t, byPkg["b"], "listed before its dependency a")
		assert.Contains(t, byPkg["b"], "depends on private, which can never be published")
		assert.Contains(t, byPkg["a"], "to 1.0.0 is lower than from 2.0.0")
		assert.Contains(t, byPkg["a"], "listed more than once")
		assert.Contains(t, byPkg["private"], "not published but to 0.2.0 differs from from 0.1.0")
		assert.Contains(t, byPkg["ghost"], "not a workspace package")
		assert.Contains(t, byPkg["broken"], "not a workspace package")
	})
}
